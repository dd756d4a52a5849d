package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rohmanhakim/product-crawler/pkg/fileutil"
)

// DefaultMaxChunkBytes is the rollover cap used when a caller does not
// override it (5 MiB).
const DefaultMaxChunkBytes int64 = 5 * 1024 * 1024

// ChunkedWriter is a size-bounded rolling text sink under a filename
// prefix. Size accounting is by byte count of the data passed to write,
// checked before the write lands: a single write is never split across
// chunk files.
type ChunkedWriter struct {
	prefix        string
	maxChunkBytes int64

	file        *os.File
	chunkCount  int
	currentSize int64
	written     []string
}

// NewChunkedWriter constructs a writer rooted at prefix. No file is
// opened until the first write.
func NewChunkedWriter(prefix string, maxChunkBytes int64) *ChunkedWriter {
	if maxChunkBytes <= 0 {
		maxChunkBytes = DefaultMaxChunkBytes
	}
	return &ChunkedWriter{
		prefix:        prefix,
		maxChunkBytes: maxChunkBytes,
	}
}

// Write appends data, rolling to a new chunk file first if none is open
// or if data would push a non-empty current chunk past capacity. A write
// larger than the cap lands whole in a chunk of its own.
func (w *ChunkedWriter) Write(data []byte) *SinkError {
	if w.file == nil || (w.currentSize > 0 && w.currentSize+int64(len(data)) > w.maxChunkBytes) {
		if err := w.roll(); err != nil {
			return err
		}
	}

	n, err := w.file.Write(data)
	if err != nil {
		return &SinkError{
			Message: err.Error(),
			Cause:   ErrCauseWriteFailure,
			Path:    w.file.Name(),
		}
	}
	w.currentSize += int64(n)
	return nil
}

// roll closes the current file, if any, and opens the next one in
// sequence, truncating it if it already exists.
func (w *ChunkedWriter) roll() *SinkError {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return &SinkError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: w.file.Name()}
		}
		w.file = nil
	}

	w.chunkCount++
	path := fmt.Sprintf("%s_%04d.txt", w.prefix, w.chunkCount)

	// The prefix may carry no directory component; guard against handing
	// an empty string to MkdirAll.
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if ferr := fileutil.EnsureDir(dir); ferr != nil {
			return &SinkError{Message: ferr.Error(), Cause: ErrCausePathError, Path: dir}
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &SinkError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: path}
	}

	w.file = f
	w.currentSize = 0
	w.written = append(w.written, path)
	return nil
}

// Filenames returns the paths of every chunk file opened so far, in
// rollover order.
func (w *ChunkedWriter) Filenames() []string {
	names := make([]string, len(w.written))
	copy(names, w.written)
	return names
}

// Close closes the current file, if any. Idempotent.
func (w *ChunkedWriter) Close() *SinkError {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	path := w.file.Name()
	w.file = nil
	if err != nil {
		return &SinkError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: path}
	}
	return nil
}

// ChunkCount reports how many chunk files have been rolled so far.
func (w *ChunkedWriter) ChunkCount() int {
	return w.chunkCount
}
