package metadata

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Crawl depth
- Error causes (observability only, see ErrorCause)
- Terminal crawl artifacts and summary stats

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred: every event is a structured record of
key/value fields, not a free-form message.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Status codes
- Durations
- Identifiers
*/

// MetadataSink is the narrow logging/telemetry surface the crawl engine and
// its collaborators (fetcher, robots gate, sink) write observability events
// to. It never returns an error and never influences control flow.
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, crawlDepth int)
	RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errString string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
	RecordSummary(stats CrawlStats)
}

type ArtifactKind string

const (
	ArtifactProductChunk ArtifactKind = "product_chunk"
	ArtifactProcessedTxt ArtifactKind = "processed_txt"
	ArtifactSummaryTxt   ArtifactKind = "summary_txt"
)

// Recorder is the zerolog-backed MetadataSink. It writes one structured
// event per call to an underlying zerolog.Logger (stdout by default).
type Recorder struct {
	logger zerolog.Logger
}

// NewRecorder returns a Recorder writing JSON events to os.Stdout.
func NewRecorder() *Recorder {
	return &Recorder{
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// NewRecorderWithWriter is exported for tests that want to capture log
// output instead of writing to stdout.
func NewRecorderWithWriter(w io.Writer) *Recorder {
	return &Recorder{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, crawlDepth int) {
	event := NewFetchEvent(fetchUrl, httpStatus, duration, contentType, crawlDepth)
	r.logger.Info().
		Str("component", "fetch").
		Str("url", event.fetchUrl).
		Int("status", event.httpStatus).
		Int64("duration_ms", event.duration.Milliseconds()).
		Str("content_type", event.contentType).
		Int("depth", event.crawlDepth).
		Msg("fetch")
}

func (r *Recorder) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errString string, attrs []Attribute) {
	record := ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: errString,
		observedAt:  observedAt,
		attrs:       attrs,
	}
	evt := r.logger.Error().
		Str("component", record.packageName).
		Str("action", record.action).
		Str("cause", causeLabel(record.cause)).
		Str("error", record.errorString)
	evt = withAttrs(evt, record.attrs)
	evt.Msg("error")
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	evt := r.logger.Info().
		Str("component", "artifact").
		Str("kind", string(kind)).
		Str("path", path)
	evt = withAttrs(evt, attrs)
	evt.Msg("artifact")
}

func (r *Recorder) RecordSummary(stats CrawlStats) {
	r.logger.Info().
		Str("component", "summary").
		Int("crawled", stats.TotalURLsCrawled).
		Int("products", stats.TotalProductURLs).
		Int("disallowed", stats.TotalDisallowedURLs).
		Int("render_timeouts", stats.TotalRenderTimeouts).
		Int64("duration_ms", stats.Duration.Milliseconds()).
		Msg("summary")
}

func causeLabel(cause ErrorCause) string {
	switch cause {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

func withAttrs(evt *zerolog.Event, attrs []Attribute) *zerolog.Event {
	for _, a := range attrs {
		evt = evt.Str(string(a.Key), a.Value)
	}
	return evt
}
