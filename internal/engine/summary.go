package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rohmanhakim/product-crawler/internal/frontier"
	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/internal/sink"
)

// finish writes the end-of-run artifacts: the empty-domain processed.txt
// marker for domains that never produced a product hit, the global
// disallowed/render-timeout URL lists, and crawl_summary.txt.
func (e *Engine) finish(domains []*domainState, elapsed time.Duration) error {
	var summary RunSummary
	var totalProducts int

	for _, d := range domains {
		if serr := d.store.Flush(); serr != nil {
			return serr
		}

		if !d.store.HasEverFlushed() {
			if serr := sink.WriteProcessedMarker(e.cfg.OutputDir(), d.host, d.seedURL.String(), e.metadataSink); serr != nil {
				return serr
			}
		}
		summary.Domains = append(summary.Domains, DomainSummary{
			Host:             d.host,
			SeedURL:          d.seedURL.String(),
			ProductURLFiles:  d.store.TotalFilesWritten(),
			TotalURLsCrawled: d.crawledCount(),
		})
		totalProducts += d.store.TotalProductsAdded()
	}

	e.mu.Lock()
	disallowed := sortedKeys(e.disallowedSet)
	renderTimeouts := sortedKeys(e.renderTimeoutSet)
	summary.TotalUniqueURLs = e.visitSet.Size()
	e.mu.Unlock()

	summary.TotalDisallowedURLs = len(disallowed)
	summary.TotalRenderTimeouts = len(renderTimeouts)

	if serr := sink.WriteLineListFile(e.cfg.OutputDir(), "disallowed_urls.txt", disallowed); serr != nil {
		return serr
	}
	if serr := sink.WriteLineListFile(e.cfg.OutputDir(), "selenium_timeout_urls.txt", renderTimeouts); serr != nil {
		return serr
	}
	if serr := sink.WriteRawFile(e.cfg.OutputDir(), "crawl_summary.txt", renderCrawlSummary(summary)); serr != nil {
		return serr
	}

	e.metadataSink.RecordSummary(metadata.CrawlStats{
		TotalURLsCrawled:    summary.TotalUniqueURLs,
		TotalProductURLs:    totalProducts,
		TotalDisallowedURLs: summary.TotalDisallowedURLs,
		TotalRenderTimeouts: summary.TotalRenderTimeouts,
		Duration:            elapsed,
	})

	return nil
}

// renderCrawlSummary builds crawl_summary.txt's exact layout: one
// four-line block per domain in input order, then a trailing block of
// three run-wide totals.
func renderCrawlSummary(s RunSummary) string {
	var b strings.Builder
	for _, d := range s.Domains {
		fmt.Fprintf(&b, "Domain: %s\n", d.Host)
		fmt.Fprintf(&b, "  Total product URL files: %d\n", d.ProductURLFiles)
		fmt.Fprintf(&b, "  Total URLs crawled: %d\n", d.TotalURLsCrawled)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total unique URLs crawled across all domains: %d\n", s.TotalUniqueURLs)
	fmt.Fprintf(&b, "Total disallowed URLs: %d\n", s.TotalDisallowedURLs)
	fmt.Fprintf(&b, "Total Selenium timeout URLs: %d\n", s.TotalRenderTimeouts)
	return b.String()
}

// sortedKeys returns set's members in lexical order, giving
// disallowed_urls.txt/selenium_timeout_urls.txt deterministic content
// across runs even though traversal order is not deterministic.
func sortedKeys(set frontier.Set[string]) []string {
	keys := make([]string, 0, set.Size())
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
