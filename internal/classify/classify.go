package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rohmanhakim/product-crawler/pkg/fileutil"
)

/*
Responsibilities

- Decide whether a discovered link stays in scope of the current seed's origin
- Decide whether a URL is worth fetching at all (restricted paths, binary assets)
- Decide whether a URL is a product-detail page

These are pure functions of the URL string; none of them touch the network,
the frontier, or crawl state.
*/

// restrictedPrefixes are path prefixes the crawl never follows, regardless of
// same-origin status: account flows, informational pages, and anything with
// no chance of being a product listing.
var restrictedPrefixes = []string{
	"/about", "/blog", "/news", "/contact", "/faq", "/terms", "/privacy",
	"/account", "/login", "/signup", "/cart", "/checkout", "/order",
	"/career", "/job",
}

// ignoredExtensions are file extensions never worth fetching as HTML, keyed
// without the leading dot to match fileutil.GetFileExtension's return value.
var ignoredExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "pdf": {}, "css": {}, "js": {},
}

// productPatterns are substring-matched (not anchored) against the raw URL.
var productPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/product/`),
	regexp.MustCompile(`/products/`),
	regexp.MustCompile(`/item/`),
	regexp.MustCompile(`/items/`),
	regexp.MustCompile(`/p/`),
	regexp.MustCompile(`/[A-Za-z0-9-]+-p-\d+`),
}

// IsSameOrigin reports whether link and base both carry a non-empty scheme
// and a non-empty host, and their hosts are equal (case-insensitively).
// Scheme equality between the two is not required for admission, only that
// both are present.
func IsSameOrigin(link, base url.URL) bool {
	if link.Scheme == "" || base.Scheme == "" || link.Host == "" || base.Host == "" {
		return false
	}
	return strings.EqualFold(link.Host, base.Host)
}

// ShouldCrawl reports whether the URL's path clears the restricted-prefix and
// ignored-extension filters. It says nothing about scope or product status.
func ShouldCrawl(u url.URL) bool {
	path := u.Path
	for _, restricted := range restrictedPrefixes {
		if strings.HasPrefix(path, restricted) {
			return false
		}
	}
	ext := fileutil.GetFileExtension(path)
	if _, ignored := ignoredExtensions[strings.ToLower(ext)]; ignored {
		return false
	}
	return true
}

// IsProduct reports whether u matches any of the fixed product URL patterns.
// Matching is substring search over the full URL string, not just the path,
// matching the source's behavior of running regexes against the whole URL.
func IsProduct(u url.URL) bool {
	s := u.String()
	for _, pattern := range productPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}
