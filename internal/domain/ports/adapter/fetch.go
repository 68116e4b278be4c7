package adapter

import (
	"context"
	"time"
)

// SourceInfo is the metadata returned by probing a remote source.
type SourceInfo struct {
	Title    string
	Duration time.Duration
}

// SourceFetcher acquires remote long-form sources. Probe is cheap and does
// not download media; Materialize writes the full source to destPath.
type SourceFetcher interface {
	Probe(ctx context.Context, sourceURL string) (SourceInfo, error)
	Materialize(ctx context.Context, sourceURL, destPath string) error
}
