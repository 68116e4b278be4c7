// Package ffmpeg wraps the ffmpeg binary as the transcode capability.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/domain"
	"clipforge/internal/domain/ports/adapter"
)

var _ adapter.Transcoder = (*Transcoder)(nil)

type Transcoder struct {
	bin string
	log *zerolog.Logger
}

func NewTranscoder(bin string, logger *zerolog.Logger) *Transcoder {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	l := logger.With().Str("component", "ffmpeg").Logger()
	return &Transcoder{bin: bin, log: &l}
}

// Clip cuts one 9:16 segment and extracts its thumbnail. It blocks until
// both encoder invocations finish; any encoder failure is fatal to the job.
func (t *Transcoder) Clip(ctx context.Context, req adapter.ClipRequest) error {
	start := time.Now()
	if err := t.run(ctx, clipArgs(req)); err != nil {
		return fmt.Errorf("%w: segment at %s: %v", domain.ErrTranscode, req.Start, err)
	}
	if err := t.run(ctx, thumbArgs(req.ClipPath, req.ThumbPath)); err != nil {
		return fmt.Errorf("%w: thumbnail for %s: %v", domain.ErrTranscode, req.ClipPath, err)
	}
	t.log.Debug().
		Str("clip", req.ClipPath).
		Dur("took", time.Since(start)).
		Msg("segment encoded")
	return nil
}

func (t *Transcoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 500 {
			msg = "..." + msg[len(msg)-500:]
		}
		return fmt.Errorf("%v: %s", err, msg)
	}
	return nil
}
