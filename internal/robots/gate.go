package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt once per origin
- Cache the parsed policy for the lifetime of the crawl
- Enforce allow/disallow rules before a URL is admitted into the engine

Policy fetch failures never propagate as crawl errors: a missing or
non-200 robots.txt, or any network error, degrades to a permissive policy.
*/

const maxRobotsBodyBytes = 500 * 1024

// Gate answers admission questions for URLs, backed by a per-origin cache of
// parsed robots.txt policies.
type Gate struct {
	httpClient   *http.Client
	userAgent    string
	metadataSink metadata.MetadataSink
	cache        cache.Cache

	mu      sync.Mutex
	parsed  map[Origin]*robotstxt.RobotsData
}

// NewGate constructs a Gate. cache may be nil, in which case every origin is
// still memoized in-process via the internal parsed map (the Cache port
// exists to let callers plug in an alternative backing store; it is not
// required for correctness within a single run).
func NewGate(metadataSink metadata.MetadataSink, userAgent string, robotsCache cache.Cache) *Gate {
	return &Gate{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    userAgent,
		metadataSink: metadataSink,
		cache:        robotsCache,
		parsed:       make(map[Origin]*robotstxt.RobotsData),
	}
}

// Allowed reports whether u may be fetched, fetching and caching the origin's
// robots.txt on first use. It never returns an error: fetch failures degrade
// to "allow".
func (g *Gate) Allowed(ctx context.Context, u url.URL) Decision {
	origin := Origin{Scheme: u.Scheme, Host: u.Host}

	data := g.policyFor(ctx, origin)
	if data == nil {
		return Decision{Url: u, Allowed: true, Reason: PermissiveFallback}
	}

	group := data.FindGroup(g.userAgent)
	if group == nil {
		return Decision{Url: u, Allowed: true, Reason: PermissiveFallback}
	}

	allowed := group.Test(u.Path)
	reason := DisallowedByRobots
	if allowed {
		reason = AllowedByRobots
	}

	var delay *time.Duration
	if group.CrawlDelay > 0 {
		d := group.CrawlDelay
		delay = &d
	}

	return Decision{Url: u, Allowed: allowed, Reason: reason, CrawlDelay: delay}
}

func (g *Gate) policyFor(ctx context.Context, origin Origin) *robotstxt.RobotsData {
	g.mu.Lock()
	if data, ok := g.parsed[origin]; ok {
		g.mu.Unlock()
		return data
	}
	g.mu.Unlock()

	data := g.fetchAndParse(ctx, origin)

	g.mu.Lock()
	g.parsed[origin] = data
	g.mu.Unlock()

	return data
}

func (g *Gate) fetchAndParse(ctx context.Context, origin Origin) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", origin.Scheme, origin.Host)

	if g.cache != nil {
		if cached, found := g.cache.Get(robotsURL); found {
			data, err := robotstxt.FromBytes([]byte(cached))
			if err == nil {
				return data
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		g.recordError("Gate.fetchAndParse", robotsURL, ErrCausePreFetchFailure, err)
		return permissivePolicy()
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.recordError("Gate.fetchAndParse", robotsURL, ErrCauseHttpFetchFailure, err)
		return permissivePolicy()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return permissivePolicy()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes+1))
	if err != nil {
		g.recordError("Gate.fetchAndParse", robotsURL, ErrCauseParseError, err)
		return permissivePolicy()
	}
	if len(body) > maxRobotsBodyBytes {
		body = body[:maxRobotsBodyBytes]
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		g.recordError("Gate.fetchAndParse", robotsURL, ErrCauseParseError, err)
		return permissivePolicy()
	}

	if g.cache != nil {
		g.cache.Put(robotsURL, string(body))
	}

	return data
}

func (g *Gate) recordError(action, robotsURL string, cause RobotsErrorCause, err error) {
	if g.metadataSink == nil {
		return
	}
	robotsErr := &RobotsError{Message: err.Error(), Retryable: true, Cause: cause}
	g.metadataSink.RecordError(
		time.Now(),
		"robots",
		action,
		mapRobotsErrorToMetadataCause(robotsErr),
		robotsErr.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, robotsURL)},
	)
}

// permissivePolicy is the policy installed when robots.txt is missing,
// non-200, unreachable or unparseable. It is nil: Allowed answers "allow"
// for a nil policy and reports PermissiveFallback as the reason.
func permissivePolicy() *robotstxt.RobotsData {
	return nil
}
