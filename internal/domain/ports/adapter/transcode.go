package adapter

import (
	"context"
	"time"
)

// ClipRequest describes one segment cut. The transcoder writes the 9:16
// clip to ClipPath and a thumbnail to ThumbPath, blocking until the encoder
// finishes. Both paths live in the job's ephemeral directory.
type ClipRequest struct {
	SourcePath  string
	Start       time.Duration
	Duration    time.Duration
	OverlayText string
	ClipPath    string
	ThumbPath   string
}

type Transcoder interface {
	Clip(ctx context.Context, req ClipRequest) error
}
