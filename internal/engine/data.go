package engine

import (
	"net/url"
	"sync"

	"github.com/rohmanhakim/product-crawler/internal/sink"
)

// domainState is the crawl-scoped state for one seed's traversal: its
// product sink and the running count of URLs admitted under that host.
// Shared across every goroutine crawling within that domain.
type domainState struct {
	host       string
	seedURL    url.URL
	seedOrigin url.URL
	store      *sink.ProductStore

	mu      sync.Mutex
	crawled int
}

func (d *domainState) incrCrawled() {
	d.mu.Lock()
	d.crawled++
	d.mu.Unlock()
}

func (d *domainState) crawledCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.crawled
}

// DomainSummary is one domain's contribution to the end-of-run report.
type DomainSummary struct {
	Host             string
	SeedURL          string
	ProductURLFiles  int
	TotalURLsCrawled int
}

// RunSummary aggregates a completed Run invocation, the source for
// final/crawl_summary.txt and the metadata.CrawlStats event.
type RunSummary struct {
	Domains             []DomainSummary
	TotalUniqueURLs     int
	TotalDisallowedURLs int
	TotalRenderTimeouts int
}
