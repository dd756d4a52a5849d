package fetcher

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rohmanhakim/product-crawler/internal/classify"
)

/*
Responsibilities

- Parse an HTML document and enumerate every anchor's href, resolved
  against the page's own URL into an absolute URL
- Drop links that leave the seed's origin or fail the crawlability
  filter (restricted paths, ignored extensions)
- Tolerate malformed HTML: goquery yields whatever it can parse; a
  document with no anchors simply yields zero links, which is how the
  traversal engine decides to escalate to the render tier
*/

// ExtractLinks parses html (the body returned by either fetch tier) and
// returns every <a href> resolved to an absolute URL against pageURL,
// filtered to links that stay within seedOrigin and pass should_crawl.
// Document order is preserved; the caller (the traversal engine) is
// responsible for the priority sort.
func ExtractLinks(pageURL url.URL, seedOrigin url.URL, html []byte) []url.URL {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil
	}

	var links []url.URL
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, ok := resolveAgainst(pageURL, href)
		if !ok {
			return
		}
		if !classify.IsSameOrigin(resolved, seedOrigin) || !classify.ShouldCrawl(resolved) {
			return
		}
		key := resolved.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, resolved)
	})

	return links
}

func resolveAgainst(base url.URL, rawHref string) (url.URL, bool) {
	rawHref = strings.TrimSpace(rawHref)
	if rawHref == "" || strings.HasPrefix(rawHref, "#") || strings.HasPrefix(rawHref, "javascript:") || strings.HasPrefix(rawHref, "mailto:") {
		return url.URL{}, false
	}

	ref, err := url.Parse(rawHref)
	if err != nil {
		return url.URL{}, false
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return url.URL{}, false
	}

	return *resolved, true
}
