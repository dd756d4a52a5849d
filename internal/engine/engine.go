package engine

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rohmanhakim/product-crawler/internal/classify"
	"github.com/rohmanhakim/product-crawler/internal/config"
	"github.com/rohmanhakim/product-crawler/internal/fetcher"
	"github.com/rohmanhakim/product-crawler/internal/frontier"
	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/internal/robots"
	"github.com/rohmanhakim/product-crawler/internal/robots/cache"
	"github.com/rohmanhakim/product-crawler/internal/sink"
	"github.com/rohmanhakim/product-crawler/pkg/hashutil"
	"github.com/rohmanhakim/product-crawler/pkg/urlutil"
)

/*
Responsibilities

- Drive the whole crawl: one goroutine per seed, recursing into children
  per the fixed twelve-step per-URL procedure
- Own every piece of crawl-scoped shared state: VisitSet, ParentChildMap,
  DisallowedSet, RenderTimeoutSet, and the per-domain product sinks
- Bound total concurrency with two independent semaphores, one for the
  HTTP tier and one for the render tier
- Isolate failures at the URL scope; abort the whole run only when the
  sink reports an I/O failure

Per-URL procedure (one goroutine per admitted URL):
 1. depth > max_depth: return.
 2. Strip the fragment (urlutil.Canonicalize).
 3. Atomically check-and-insert into VisitSet; already present: return.
 4. Record parent -> url in ParentChildMap.
 5. No priority is stored per URL; priorities are computed only for the
    sort in step 11.
 6. Product URL: hand to the sink (skipped in a dry run), return without
    fetching.
 7. Consult the robots gate; disallowed: record and return.
 8. Acquire the HTTP semaphore, fetch, release.
 9. Extract links, noting whether any is itself a product URL.
10. No product links among them: re-fetch via the render tier and
    re-extract.
11. Sort extracted links by priority, descending, stable.
12. Spawn one child goroutine per link at depth+1; wait for all of them.
*/

// Engine drives one crawl run across every configured seed domain.
type Engine struct {
	cfg          config.Config
	metadataSink metadata.MetadataSink

	httpFetcher   fetcher.Fetcher
	renderFetcher Renderer
	robotsGate    *robots.Gate

	httpSem   chan struct{}
	renderSem chan struct{}

	mu               sync.Mutex
	visitSet         frontier.Set[string]
	disallowedSet    frontier.Set[string]
	renderTimeoutSet frontier.Set[string]
	parentChildMap   map[string]string

	cancel    context.CancelFunc
	fatalOnce sync.Once
	fatalErr  error
}

// Renderer is the render-tier contract the engine depends on. It is
// satisfied by *fetcher.RenderFetcher in production; tests needing to
// exercise render escalation without a live browser supply a fake.
type Renderer interface {
	Render(ctx context.Context, depth int, u url.URL) fetcher.RenderResult
}

// renderLifecycle is implemented by Renderers that own a real browser
// allocator and need explicit setup/teardown around a run. Fakes that
// don't need it simply aren't type-asserted to this.
type renderLifecycle interface {
	Init(ctx context.Context)
	Close()
}

// New constructs an Engine ready to Run against cfg, recording every
// observability event to sink.
func New(cfg config.Config, metadataSink metadata.MetadataSink) *Engine {
	return &Engine{
		cfg:              cfg,
		metadataSink:     metadataSink,
		httpFetcher:      newHTTPFetcher(cfg, metadataSink),
		renderFetcher:    newRenderFetcher(cfg, metadataSink),
		robotsGate:       robots.NewGate(metadataSink, cfg.UserAgent(), cache.NewMemoryCache()),
		httpSem:          make(chan struct{}, 2*cfg.MaxWorkers()),
		renderSem:        make(chan struct{}, cfg.MaxWorkers()),
		visitSet:         frontier.NewSet[string](),
		disallowedSet:    frontier.NewSet[string](),
		renderTimeoutSet: frontier.NewSet[string](),
		parentChildMap:   make(map[string]string),
	}
}

// newHTTPFetcher wires a single long-lived *http.Client shared across the
// whole run (§9 Design Note 4), with idle-connection capacity bounded by
// the HTTP-tier semaphore rather than left to Go's defaults.
func newHTTPFetcher(cfg config.Config, metadataSink metadata.MetadataSink) fetcher.Fetcher {
	hf := fetcher.NewHtmlFetcher(metadataSink, cfg.Timeout())
	hf.Init(&http.Client{
		Timeout: cfg.Timeout(),
		Transport: &http.Transport{
			MaxIdleConns:        2 * cfg.MaxWorkers(),
			MaxIdleConnsPerHost: 2 * cfg.MaxWorkers(),
		},
	})
	return &hf
}

func newRenderFetcher(cfg config.Config, metadataSink metadata.MetadataSink) Renderer {
	return fetcher.NewRenderFetcher(metadataSink, cfg.UserAgent()).
		WithTimeouts(cfg.RenderNavTimeout(), cfg.RenderBodyWaitTimeout(), cfg.RenderSettleSleep())
}

// WithHTTPFetcherForTest overrides the HTTP tier, letting tests point the
// engine at an httptest.Server-backed fetcher instead of a real client.
func (e *Engine) WithHTTPFetcherForTest(f fetcher.Fetcher) *Engine {
	e.httpFetcher = f
	return e
}

// WithRenderFetcherForTest overrides the render tier with a fake,
// avoiding any dependency on a live headless browser in tests.
func (e *Engine) WithRenderFetcherForTest(r Renderer) *Engine {
	e.renderFetcher = r
	return e
}

// Run crawls every configured seed to completion and writes the terminal
// artifacts (per-domain product chunks already landed during the crawl;
// this emits disallowed_urls.txt, selenium_timeout_urls.txt,
// crawl_summary.txt and any empty-domain processed.txt). It returns a
// non-nil error only when the sink reported a fatal I/O failure.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	if rl, ok := e.renderFetcher.(renderLifecycle); ok {
		rl.Init(runCtx)
		defer rl.Close()
	}

	seeds := e.cfg.SeedURLs()
	domains := make([]*domainState, 0, len(seeds))
	seenHost := make(map[string]bool, len(seeds))

	for _, seed := range seeds {
		if seenHost[seed.Host] {
			continue
		}
		seenHost[seed.Host] = true
		domains = append(domains, &domainState{
			host:       seed.Host,
			seedURL:    seed,
			seedOrigin: seed,
			store: sink.NewProductStore(
				seed.Host,
				e.cfg.OutputDir(),
				e.cfg.MaxChunkBytes(),
				e.cfg.ProductURLThreshold(),
				e.metadataSink,
			),
		})
	}

	var wg sync.WaitGroup
	for _, d := range domains {
		wg.Add(1)
		go func(d *domainState) {
			defer wg.Done()
			e.crawlOne(runCtx, d.seedURL, url.URL{}, false, 0, d)
		}(d)
	}
	wg.Wait()

	if err := e.runFatalErr(); err != nil {
		return err
	}

	if e.cfg.DryRun() {
		return nil
	}

	return e.finish(domains, time.Since(start))
}

// crawlOne implements the twelve-step per-URL procedure. It recurses by
// spawning one goroutine per extracted child link and waiting for all of
// them before returning, so the call tree's shape mirrors the crawl's
// link graph.
func (e *Engine) crawlOne(ctx context.Context, link, parent url.URL, hasParent bool, depth int, domain *domainState) {
	if ctx.Err() != nil {
		return
	}
	if depth > e.cfg.MaxDepth() {
		return
	}

	canonical := urlutil.Canonicalize(link)
	key := visitKey(canonical)

	e.mu.Lock()
	if e.visitSet.Contains(key) {
		e.mu.Unlock()
		return
	}
	e.visitSet.Add(key)
	if hasParent {
		e.parentChildMap[key] = visitKey(urlutil.Canonicalize(parent))
	}
	e.mu.Unlock()

	domain.incrCrawled()

	if classify.IsProduct(canonical) {
		if e.cfg.DryRun() {
			return
		}
		if serr := domain.store.Add(canonical.String()); serr != nil {
			e.abort(serr)
		}
		return
	}

	decision := e.robotsGate.Allowed(ctx, canonical)
	if !decision.Allowed {
		e.mu.Lock()
		e.disallowedSet.Add(canonical.String())
		e.mu.Unlock()
		return
	}

	if !e.acquire(ctx, e.httpSem) {
		return
	}
	fetchResult, ferr := e.httpFetcher.Fetch(ctx, depth, fetcher.NewFetchParam(canonical, e.cfg.UserAgent()))
	<-e.httpSem
	if ferr != nil {
		return
	}

	links := fetcher.ExtractLinks(canonical, domain.seedOrigin, fetchResult.Body())

	if !anyProductLink(links) {
		if !e.acquire(ctx, e.renderSem) {
			return
		}
		renderResult := e.renderFetcher.Render(ctx, depth, canonical)
		<-e.renderSem

		if renderResult.TimedOut {
			e.mu.Lock()
			e.renderTimeoutSet.Add(canonical.String())
			e.mu.Unlock()
		}
		links = fetcher.ExtractLinks(canonical, domain.seedOrigin, []byte(renderResult.Html))
	}

	sortByPriorityDescending(links, depth+1)

	var wg sync.WaitGroup
	for _, child := range links {
		wg.Add(1)
		go func(c url.URL) {
			defer wg.Done()
			e.crawlOne(ctx, c, canonical, true, depth+1, domain)
		}(child)
	}
	wg.Wait()
}

// acquire blocks until either the semaphore has room or ctx is done,
// returning false in the latter case so the caller can abandon the fetch.
func (e *Engine) acquire(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func anyProductLink(links []url.URL) bool {
	for _, l := range links {
		if classify.IsProduct(l) {
			return true
		}
	}
	return false
}

func sortByPriorityDescending(links []url.URL, depth int) {
	sort.SliceStable(links, func(i, j int) bool {
		return classify.Priority(links[i], depth) > classify.Priority(links[j], depth)
	})
}

// visitKey reduces a canonicalized URL to its blake3 digest, bounding
// VisitSet's memory footprint independent of URL length.
func visitKey(canonical url.URL) string {
	digest, err := hashutil.HashBytes([]byte(canonical.String()), hashutil.HashAlgoBLAKE3)
	if err != nil {
		// HashBytes only errors on an unsupported algorithm constant; BLAKE3
		// is always supported, so this path is unreachable in practice.
		return canonical.String()
	}
	return digest
}

// abort records the first fatal (sink I/O) error seen and cancels the run
// so in-flight goroutines stop admitting new work.
func (e *Engine) abort(err error) {
	e.fatalOnce.Do(func() {
		e.fatalErr = err
		if e.cancel != nil {
			e.cancel()
		}
	})
}

func (e *Engine) runFatalErr() error {
	return e.fatalErr
}
