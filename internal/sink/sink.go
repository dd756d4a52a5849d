package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rohmanhakim/product-crawler/internal/frontier"
	"github.com/rohmanhakim/product-crawler/internal/metadata"
	"github.com/rohmanhakim/product-crawler/pkg/fileutil"
)

/*
Responsibilities
- Buffer product URLs per domain; the in-memory set counts them toward the
  flush threshold (the store itself does not drop repeats — the engine's
  VisitSet keeps a URL from reaching it twice)
- Trigger a chunked-writer flush once the set crosses a threshold
- Emit the empty-domain contract (processed.txt) for domains with no hits

The product-store key confusion flagged against the source (set keyed by
seed URL, buffer keyed by host) is resolved here by keying both
collections by host throughout.
*/

// ProductStore accumulates product URLs for one domain (host). It is
// safe for concurrent use by multiple traversal goroutines.
type ProductStore struct {
	host          string
	outputRoot    string
	maxChunkBytes int64
	threshold     int
	metadataSink  metadata.MetadataSink

	mu                sync.Mutex
	set               frontier.Set[string]
	buffer            frontier.FIFOQueue[string]
	flushSeq          int
	totalFilesWritten int
	totalAdded        int
}

// NewProductStore constructs an empty store for host. outputRoot is the
// root output directory (e.g. "final"); threshold is the product count
// that triggers an automatic flush.
func NewProductStore(host, outputRoot string, maxChunkBytes int64, threshold int, metadataSink metadata.MetadataSink) *ProductStore {
	return &ProductStore{
		host:          host,
		outputRoot:    outputRoot,
		maxChunkBytes: maxChunkBytes,
		threshold:     threshold,
		metadataSink:  metadataSink,
		set:           frontier.NewSet[string](),
	}
}

// Add appends productURL to the set and buffer, flushing if the set has
// reached the configured threshold.
func (s *ProductStore) Add(productURL string) *SinkError {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set.Add(productURL)
	s.buffer.Enqueue(productURL)
	s.totalAdded++

	if s.set.Size() >= s.threshold {
		return s.flushLocked()
	}
	return nil
}

// Flush drains the buffer unconditionally; it is called from Add once
// the threshold is crossed and once more at run end to drain any
// remainder.
func (s *ProductStore) Flush() *SinkError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *ProductStore) flushLocked() *SinkError {
	if s.buffer.Size() == 0 {
		return nil
	}

	prefix := filepath.Join(s.outputRoot, s.host, fmt.Sprintf("product_urls_%04d", s.flushSeq))
	w := NewChunkedWriter(prefix, s.maxChunkBytes)

	for {
		u, ok := s.buffer.Dequeue()
		if !ok {
			break
		}
		if err := w.Write([]byte(u + "\n")); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	for _, path := range w.Filenames() {
		s.metadataSink.RecordArtifact(metadata.ArtifactProductChunk, path, []metadata.Attribute{
			metadata.NewAttr(metadata.AttrHost, s.host),
		})
	}

	s.totalFilesWritten += w.ChunkCount()
	s.flushSeq++
	s.set = frontier.NewSet[string]()
	return nil
}

// ProductCount reports the size of the in-memory dedup set at this
// instant. Per the preserved source behavior, this resets to zero on
// every flush (see DESIGN.md's Open Question 2 resolution).
func (s *ProductStore) ProductCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Size()
}

// TotalFilesWritten reports how many chunk files have been written
// across all flushes so far, for the end-of-run summary.
func (s *ProductStore) TotalFilesWritten() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalFilesWritten
}

// TotalProductsAdded reports how many product URLs have been accepted
// across the whole run, independent of the set/buffer's per-flush reset
// (observability only; §9 Open Question 2 preserves the reset for the
// threshold count itself).
func (s *ProductStore) TotalProductsAdded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalAdded
}

// HasEverFlushed reports whether this store has produced any output
// file, used to decide whether the empty-domain contract applies.
func (s *ProductStore) HasEverFlushed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalFilesWritten > 0
}

// WriteProcessedMarker emits final/<host>/processed.txt for a domain
// that produced zero product URLs over the whole run.
func WriteProcessedMarker(outputRoot, host, seedURL string, metadataSink metadata.MetadataSink) *SinkError {
	content := fmt.Sprintf("Processed domain: %s\nNo product URLs found.\n", seedURL)
	path := filepath.Join(outputRoot, host, "processed.txt")

	if err := writeWholeFile(path, content); err != nil {
		return err
	}

	metadataSink.RecordArtifact(metadata.ArtifactProcessedTxt, path, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrHost, host),
	})
	return nil
}

// WriteLineListFile writes one entry per line to outputRoot/filename,
// used for disallowed_urls.txt and selenium_timeout_urls.txt. These
// files are not subject to chunk rollover.
func WriteLineListFile(outputRoot, filename string, entries []string) *SinkError {
	path := filepath.Join(outputRoot, filename)

	var content string
	for _, e := range entries {
		content += e + "\n"
	}
	return writeWholeFile(path, content)
}

// WriteRawFile writes content verbatim to outputRoot/filename, used for
// crawl_summary.txt whose layout is not a uniform one-entry-per-line list.
func WriteRawFile(outputRoot, filename, content string) *SinkError {
	path := filepath.Join(outputRoot, filename)
	return writeWholeFile(path, content)
}

func writeWholeFile(path, content string) *SinkError {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if ferr := fileutil.EnsureDir(dir); ferr != nil {
			return &SinkError{Message: ferr.Error(), Cause: ErrCausePathError, Path: dir}
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return &SinkError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: path}
	}
	return nil
}
