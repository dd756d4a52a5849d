package fetcher

import (
	"context"
	"net/http"

	"github.com/rohmanhakim/product-crawler/pkg/failure"
)

// Fetcher is the HTTP content-fetch boundary. It performs one GET request
// and returns the response body and metadata; it never retries and never
// inspects the body for links.
type Fetcher interface {
	Init(httpClient *http.Client)
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
	) (FetchResult, failure.ClassifiedError)
}
