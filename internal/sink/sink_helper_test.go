package sink_test

import (
	"time"

	"github.com/rohmanhakim/product-crawler/internal/metadata"
)

type mockMetadataSink struct {
	artifacts []recordedArtifact
}

type recordedArtifact struct {
	kind  metadata.ArtifactKind
	path  string
	attrs []metadata.Attribute
}

func (m *mockMetadataSink) RecordFetch(string, int, time.Duration, string, int) {}

func (m *mockMetadataSink) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
}

func (m *mockMetadataSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	m.artifacts = append(m.artifacts, recordedArtifact{kind: kind, path: path, attrs: attrs})
}

func (m *mockMetadataSink) RecordSummary(metadata.CrawlStats) {}
