package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/product-crawler/internal/config"
	"github.com/rohmanhakim/product-crawler/internal/engine"
	"github.com/rohmanhakim/product-crawler/internal/fetcher"
	"github.com/rohmanhakim/product-crawler/internal/metadata"
)

// fakeRenderer lets tests drive render-tier escalation deterministically,
// without a live browser.
type fakeRenderer struct {
	mu    sync.Mutex
	byURL map[string]fetcher.RenderResult
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{byURL: make(map[string]fetcher.RenderResult)}
}

func (f *fakeRenderer) forURL(raw string, result fetcher.RenderResult) *fakeRenderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byURL[raw] = result
	return f
}

func (f *fakeRenderer) Render(_ context.Context, _ int, u url.URL) fetcher.RenderResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byURL[u.String()]; ok {
		return r
	}
	return fetcher.RenderResult{FetchedAt: time.Now()}
}

func buildConfig(t *testing.T, seed string, opts ...func(*config.Config) *config.Config) config.Config {
	t.Helper()
	seedURL, err := url.Parse(seed)
	require.NoError(t, err)

	builder := config.WithDefault([]url.URL{*seedURL}).
		WithMaxWorkers(4).
		WithOutputDir(t.TempDir())

	for _, opt := range opts {
		builder = opt(builder)
	}

	cfg, err := builder.Build()
	require.NoError(t, err)
	return cfg
}

func runEngine(t *testing.T, cfg config.Config, configure func(*engine.Engine) *engine.Engine) {
	t.Helper()
	e := engine.New(cfg, metadata.NewRecorder())
	if configure != nil {
		e = configure(e)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, e.Run(ctx))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestEngine_BasicProductDiscovery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/products/a">A</a></body></html>`))
	})
	mux.HandleFunc("/products/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>product page</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(2).WithProductURLThreshold(1)
	})

	runEngine(t, cfg, nil)

	seedURL, _ := url.Parse(server.URL)
	path := filepath.Join(cfg.OutputDir(), seedURL.Host, "product_urls_0000_0001.txt")
	content := readFile(t, path)
	assert.Equal(t, server.URL+"/products/a\n", content)
}

func TestEngine_RestrictedPathNeverFetched(t *testing.T) {
	var teamHits int32

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
			<html><body>
				<a href="/about/team">Team</a>
				<a href="/products/a">A</a>
			</body></html>
		`))
	})
	mux.HandleFunc("/about/team", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&teamHits, 1)
		_, _ = w.Write([]byte(`<html></html>`))
	})
	mux.HandleFunc("/products/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(2).WithProductURLThreshold(1)
	})

	runEngine(t, cfg, nil)

	assert.Equal(t, int32(0), atomic.LoadInt32(&teamHits))

	seedURL, _ := url.Parse(server.URL)
	path := filepath.Join(cfg.OutputDir(), seedURL.Host, "product_urls_0000_0001.txt")
	content := readFile(t, path)
	assert.Equal(t, server.URL+"/products/a\n", content)
}

func TestEngine_RenderEscalationOnNoAnchors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>dynamic page, rendered client-side</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	renderer := newFakeRenderer().forURL(server.URL+"/", fetcher.RenderResult{
		Html:      `<html><body><a href="/p/x">X</a></body></html>`,
		FetchedAt: time.Now(),
	})

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(2).WithProductURLThreshold(1)
	})

	runEngine(t, cfg, func(e *engine.Engine) *engine.Engine {
		return e.WithRenderFetcherForTest(renderer)
	})

	seedURL, _ := url.Parse(server.URL)
	path := filepath.Join(cfg.OutputDir(), seedURL.Host, "product_urls_0000_0001.txt")
	content := readFile(t, path)
	assert.Equal(t, server.URL+"/p/x\n", content)
}

func TestEngine_RenderTimeoutRecorded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>dynamic page, rendered client-side</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	renderer := newFakeRenderer().forURL(server.URL+"/", fetcher.RenderResult{
		TimedOut:  true,
		FetchedAt: time.Now(),
	})

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(1)
	})

	runEngine(t, cfg, func(e *engine.Engine) *engine.Engine {
		return e.WithRenderFetcherForTest(renderer)
	})

	content := readFile(t, filepath.Join(cfg.OutputDir(), "selenium_timeout_urls.txt"))
	assert.Equal(t, server.URL+"/\n", content)
}

func TestEngine_RobotsDisallowSkipsFetchAndRecords(t *testing.T) {
	var catalogHits int32

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /catalog\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/catalog">Catalog</a></body></html>`))
	})
	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&catalogHits, 1)
		_, _ = w.Write([]byte(`<html></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(2)
	})

	runEngine(t, cfg, nil)

	assert.Equal(t, int32(0), atomic.LoadInt32(&catalogHits))

	content := readFile(t, filepath.Join(cfg.OutputDir(), "disallowed_urls.txt"))
	assert.Equal(t, server.URL+"/catalog\n", content)
}

func TestEngine_MaxDepthZeroCrawlsOnlySeed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/products/a">A</a></body></html>`))
	})
	mux.HandleFunc("/products/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(0)
	})

	runEngine(t, cfg, nil)

	content := readFile(t, filepath.Join(cfg.OutputDir(), "crawl_summary.txt"))
	assert.Contains(t, content, "  Total URLs crawled: 1\n")

	seedURL, _ := url.Parse(server.URL)
	_, err := os.Stat(filepath.Join(cfg.OutputDir(), seedURL.Host, "processed.txt"))
	assert.NoError(t, err, "a domain with zero product hits emits the empty-domain marker")
}

func TestEngine_SeedItselfProductNeverExpanded(t *testing.T) {
	var hits int32

	mux := http.NewServeMux()
	mux.HandleFunc("/products/seed", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`<html><body><a href="/products/child">child</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := buildConfig(t, server.URL+"/products/seed", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(3).WithProductURLThreshold(1)
	})

	runEngine(t, cfg, nil)

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits), "a seed that is itself a product URL is never fetched")

	seedURL, _ := url.Parse(server.URL)
	path := filepath.Join(cfg.OutputDir(), seedURL.Host, "product_urls_0000_0001.txt")
	content := readFile(t, path)
	assert.Equal(t, server.URL+"/products/seed\n", content)
}

func TestEngine_ThresholdOneFlushesAfterEveryHit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
			<html><body>
				<a href="/products/a">A</a>
				<a href="/products/b">B</a>
			</body></html>
		`))
	})
	mux.HandleFunc("/products/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	})
	mux.HandleFunc("/products/b", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(2).WithProductURLThreshold(1)
	})

	runEngine(t, cfg, nil)

	seedURL, _ := url.Parse(server.URL)
	domainDir := filepath.Join(cfg.OutputDir(), seedURL.Host)

	entries, err := os.ReadDir(domainDir)
	require.NoError(t, err)

	var chunkFiles int
	for _, entry := range entries {
		if entry.Name() != "processed.txt" {
			chunkFiles++
		}
	}
	assert.Equal(t, 2, chunkFiles, "two product hits at threshold 1 each trigger their own flush file")
}

func TestEngine_DedupVisitsEachURLOnce(t *testing.T) {
	var homeHits int32

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// This catch-all handler also serves /robots.txt; count only the home page.
		if r.URL.Path == "/" {
			atomic.AddInt32(&homeHits, 1)
		}
		_, _ = w.Write([]byte(`
			<html><body>
				<a href="/">self link</a>
				<a href="/products/a">A</a>
			</body></html>
		`))
	})
	mux.HandleFunc("/products/a", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := buildConfig(t, server.URL+"/", func(c *config.Config) *config.Config {
		return c.WithMaxDepth(3).WithProductURLThreshold(1)
	})

	runEngine(t, cfg, nil)

	assert.Equal(t, int32(1), atomic.LoadInt32(&homeHits), "a self-referencing link is never fetched twice")
}
