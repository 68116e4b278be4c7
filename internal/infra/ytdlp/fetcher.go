// Package ytdlp wraps the yt-dlp binary as the source fetch capability.
package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/domain"
	"clipforge/internal/domain/ports/adapter"
)

var _ adapter.SourceFetcher = (*Fetcher)(nil)

type Fetcher struct {
	bin string
	log *zerolog.Logger
}

func NewFetcher(bin string, logger *zerolog.Logger) *Fetcher {
	if strings.TrimSpace(bin) == "" {
		bin = "yt-dlp"
	}
	l := logger.With().Str("component", "ytdlp").Logger()
	return &Fetcher{bin: bin, log: &l}
}

type probeOutput struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Probe dumps source metadata without downloading any media.
func (f *Fetcher) Probe(ctx context.Context, sourceURL string) (adapter.SourceInfo, error) {
	cmd := exec.CommandContext(ctx, f.bin, "--dump-json", "--no-playlist", "--skip-download", "--", sourceURL)
	out, err := cmd.Output()
	if err != nil {
		return adapter.SourceInfo{}, fmt.Errorf("%w: probe: %s", domain.ErrFetch, commandError(err))
	}
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return adapter.SourceInfo{}, fmt.Errorf("%w: probe output: %v", domain.ErrFetch, err)
	}
	if po.Duration <= 0 {
		return adapter.SourceInfo{}, fmt.Errorf("%w: source reports no duration", domain.ErrFetch)
	}
	return adapter.SourceInfo{
		Title:    po.Title,
		Duration: time.Duration(po.Duration * float64(time.Second)),
	}, nil
}

// Materialize downloads the full source to destPath as a single mp4.
func (f *Fetcher) Materialize(ctx context.Context, sourceURL, destPath string) error {
	start := time.Now()
	cmd := exec.CommandContext(ctx, f.bin,
		"--no-playlist",
		"-f", "bestvideo*+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", destPath,
		"--", sourceURL,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: download: %v: %s", domain.ErrFetch, err, tail(string(out)))
	}
	f.log.Debug().Str("dest", destPath).Dur("took", time.Since(start)).Msg("source materialized")
	return nil
}

// commandError extracts stderr from an exec error when present.
func commandError(err error) string {
	if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
		return tail(string(ee.Stderr))
	}
	return err.Error()
}

// tail keeps error messages bounded; yt-dlp can be very chatty.
func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 500
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}
