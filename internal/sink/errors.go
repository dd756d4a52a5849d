package sink

import (
	"fmt"

	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/pkg/failure"
)

type SinkErrorCause string

const (
	ErrCauseWriteFailure SinkErrorCause = "write failed"
	ErrCausePathError    SinkErrorCause = "path error"
)

// SinkError is always fatal: I/O failure on the product sink has no
// recovery defined, and aborts the run.
type SinkError struct {
	Message string
	Cause   SinkErrorCause
	Path    string
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: %s: %s", e.Cause, e.Message)
}

func (e *SinkError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func mapSinkErrorToMetadataCause(err *SinkError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
