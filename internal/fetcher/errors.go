package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseNetworkFailure        FetchErrorCause = "network issues"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
)

// FetchError reports a transport-level failure: the fetcher could not
// reach the server or could not read its response. It is always fatal
// for the URL being fetched — the fetcher never retries, so there is no
// retryable/non-retryable distinction to carry.
type FetchError struct {
	Message string
	Cause   FetchErrorCause
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNetworkFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseReadResponseBodyError:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
