package robots_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/internal/robots"
	"github.com/rohmanhakim/product-crawler/internal/robots/cache"
)

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestGate_DisallowsMatchingPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /products/\n"))
	}))
	defer server.Close()

	serverURL := mustURL(t, server.URL)
	gate := robots.NewGate(metadata.NewRecorder(), "CustomWebCrawler/1.0", cache.NewMemoryCache())

	disallowed := serverURL
	disallowed.Path = "/products/foo"
	decision := gate.Allowed(context.Background(), disallowed)
	assert.False(t, decision.Allowed)
	assert.Equal(t, robots.DisallowedByRobots, decision.Reason)

	allowed := serverURL
	allowed.Path = "/about"
	decision2 := gate.Allowed(context.Background(), allowed)
	assert.True(t, decision2.Allowed)
}

func TestGate_PermissiveOnMissingRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	serverURL := mustURL(t, server.URL)
	gate := robots.NewGate(metadata.NewRecorder(), "CustomWebCrawler/1.0", cache.NewMemoryCache())

	target := serverURL
	target.Path = "/products/anything"
	decision := gate.Allowed(context.Background(), target)
	assert.True(t, decision.Allowed)
	assert.Equal(t, robots.PermissiveFallback, decision.Reason)
}

func TestGate_CachesPerOrigin(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	serverURL := mustURL(t, server.URL)
	gate := robots.NewGate(metadata.NewRecorder(), "CustomWebCrawler/1.0", cache.NewMemoryCache())

	for i := 0; i < 5; i++ {
		target := serverURL
		target.Path = "/p/1"
		gate.Allowed(context.Background(), target)
	}

	assert.Equal(t, 1, hits)
}
