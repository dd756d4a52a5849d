package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/pkg/failure"
)

/*
Responsibilities

- Drive a headless Chrome instance to render client-side content
- Wait for the DOM to settle by scrolling to the bottom and watching
  document.body.scrollHeight stop growing
- Surface render timeouts as a distinct, non-fatal outcome: the caller
  records the URL and moves on with no children

Invoked only when the HTTP tier's static parse yields zero product
links — a page that looks "empty of products" through static HTML,
suggesting client-side rendering.
*/

// Default render-tier timeouts, used when a caller constructs a
// RenderFetcher without overriding them via WithTimeouts.
const (
	DefaultRenderNavigationTimeout = 30 * time.Second
	DefaultRenderBodyWaitTimeout   = 10 * time.Second
	DefaultRenderSettleSleep       = 2 * time.Second
)

// Sleeper abstracts the settle-loop delay so tests can run without
// real wall-clock waits.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

type realSleeper struct{}

func NewRealSleeper() Sleeper {
	return realSleeper{}
}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RenderResult is the outcome of a render-tier fetch.
type RenderResult struct {
	Html      string
	TimedOut  bool
	FetchedAt time.Time
}

// RenderFetcher drives a pool of headless browser contexts, one
// allocator shared across the run and one child context checked out
// per render call.
type RenderFetcher struct {
	metadataSink metadata.MetadataSink
	userAgent    string
	sleeper      Sleeper

	navTimeout      time.Duration
	bodyWaitTimeout time.Duration
	settleSleep     time.Duration

	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewRenderFetcher(metadataSink metadata.MetadataSink, userAgent string) *RenderFetcher {
	return &RenderFetcher{
		metadataSink:    metadataSink,
		userAgent:       userAgent,
		sleeper:         NewRealSleeper(),
		navTimeout:      DefaultRenderNavigationTimeout,
		bodyWaitTimeout: DefaultRenderBodyWaitTimeout,
		settleSleep:     DefaultRenderSettleSleep,
	}
}

// WithTimeouts overrides the render tier's navigation, body-wait and
// settle-sleep durations, wiring config.Config's render knobs through.
func (r *RenderFetcher) WithTimeouts(nav, bodyWait, settle time.Duration) *RenderFetcher {
	r.navTimeout = nav
	r.bodyWaitTimeout = bodyWait
	r.settleSleep = settle
	return r
}

// Init allocates the shared browser-launch context. Must be called once
// before the first Render call and Close must run at crawl end.
func (r *RenderFetcher) Init(ctx context.Context) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(r.userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	r.allocCtx = allocCtx
	r.allocCancel = allocCancel
}

// Close quits every live browser instance associated with this fetcher.
func (r *RenderFetcher) Close() {
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

// Render navigates to u in a fresh tab, waits for the DOM to settle by
// repeated scroll-to-bottom measurement, and returns the serialized
// document HTML. It never returns an error: render failures and
// timeouts both yield an empty-bodied RenderResult, distinguished by
// TimedOut.
func (r *RenderFetcher) Render(ctx context.Context, crawlDepth int, u url.URL) RenderResult {
	callerMethod := "RenderFetcher.Render"
	startTime := time.Now()

	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx)
	defer tabCancel()

	navCtx, navCancel := context.WithTimeout(tabCtx, r.navTimeout)
	defer navCancel()

	var bodyPresent bool
	err := chromedp.Run(navCtx,
		chromedp.Navigate(u.String()),
	)
	if err == nil {
		waitCtx, waitCancel := context.WithTimeout(navCtx, r.bodyWaitTimeout)
		err = chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery))
		waitCancel()
		bodyPresent = err == nil
	}

	duration := time.Since(startTime)

	if err != nil || !bodyPresent {
		timedOut := isDeadlineErr(err)
		r.recordRenderOutcome(callerMethod, u, duration, timedOut, err)
		if timedOut {
			return RenderResult{TimedOut: true, FetchedAt: time.Now()}
		}
		return RenderResult{FetchedAt: time.Now()}
	}

	html, settleErr := r.settleAndExtract(navCtx, u)
	if settleErr != nil {
		timedOut := isDeadlineErr(settleErr)
		r.recordRenderOutcome(callerMethod, u, time.Since(startTime), timedOut, settleErr)
		if timedOut {
			return RenderResult{TimedOut: true, FetchedAt: time.Now()}
		}
		return RenderResult{FetchedAt: time.Now()}
	}

	r.metadataSink.RecordFetch(u.String(), 0, time.Since(startTime), "text/html", crawlDepth)

	return RenderResult{Html: html, FetchedAt: time.Now()}
}

// settleAndExtract loops: measure document.body.scrollHeight, scroll
// to bottom, sleep, re-measure; stops when two consecutive
// measurements are equal, then returns the serialized document HTML.
func (r *RenderFetcher) settleAndExtract(ctx context.Context, u url.URL) (string, error) {
	var previous, current int64

	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &previous)); err != nil {
		return "", err
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		)
		if err != nil {
			return "", err
		}

		r.sleeper.Sleep(ctx, r.settleSleep)

		if err := chromedp.Run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &current)); err != nil {
			return "", err
		}

		if current == previous {
			break
		}
		previous = current
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (r *RenderFetcher) recordRenderOutcome(callerMethod string, u url.URL, duration time.Duration, timedOut bool, err error) {
	r.metadataSink.RecordFetch(u.String(), 0, duration, "", 0)

	if err == nil {
		return
	}

	cause := metadata.CauseNetworkFailure
	if timedOut {
		cause = metadata.CauseContentInvalid
	}

	r.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		cause,
		fmt.Sprintf("render failed: %v", err),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, u.String())},
	)
}

func isDeadlineErr(err error) bool {
	return err == context.DeadlineExceeded
}

var _ failure.ClassifiedError = (*RenderError)(nil)

// RenderError exists for symmetry with the other fetch tiers' error
// taxonomy; the render tier itself never returns one from Render —
// failures degrade to an empty RenderResult — but callers that need to
// classify a render-pool exhaustion or setup failure can wrap one.
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
