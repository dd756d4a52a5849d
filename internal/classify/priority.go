package classify

import (
	"net/url"
	"strings"
)

// priorityKeywords bump a non-product URL's score when present in its path.
var priorityKeywords = []string{
	"sale", "new", "best", "hot", "trending", "special", "limited",
	"collectible", "category", "categories", "collection", "shop", "store",
	"buy", "purchase",
}

// Priority scores u in [0,1] given its crawl depth. It is used only to order
// sibling children at scheduling time, never as a global priority queue.
func Priority(u url.URL, depth int) float64 {
	df := 1.0 / (1.0 + float64(depth))

	if IsProduct(u) {
		return 1.0
	}

	path := strings.ToLower(u.Path)
	for _, keyword := range priorityKeywords {
		if strings.Contains(path, keyword) {
			return 0.5 + 0.5*df
		}
	}

	return df
}
