package robots

import (
	"net/url"
	"time"
)

// Permission modeling

type DecisionReason string

const (
	AllowedByRobots    DecisionReason = "allowed_by_robots"
	DisallowedByRobots DecisionReason = "disallowed_by_robots"
	PermissiveFallback DecisionReason = "permissive_fallback"
)

type Decision struct {
	Url url.URL

	Allowed bool

	// Why this decision was made (for logging/debugging)
	Reason DecisionReason

	// Optional delay override (robots crawl-delay), informational only —
	// this crawler does not honor crawl-delay per its Non-goals.
	CrawlDelay *time.Duration
}

// Origin is the (scheme, host) pair used as the robots cache key and the
// same-origin predicate.
type Origin struct {
	Scheme string
	Host   string
}
