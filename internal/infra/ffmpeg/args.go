package ffmpeg

import (
	"fmt"
	"strings"
	"time"

	"clipforge/internal/domain/ports/adapter"
)

// Output geometry for vertical clips and their thumbnails.
const (
	clipWidth   = 1080
	clipHeight  = 1920
	thumbWidth  = 540
	thumbHeight = 960

	// Thumbnails are grabbed this far into the produced clip.
	thumbOffset = 1 * time.Second
)

// clipArgs builds the ffmpeg invocation for one segment cut: seek, trim,
// center-crop to 9:16, scale, optionally burn in overlay text.
func clipArgs(req adapter.ClipRequest) []string {
	filters := []string{
		"crop=ih*9/16:ih",
		fmt.Sprintf("scale=%d:%d", clipWidth, clipHeight),
	}
	if req.OverlayText != "" {
		filters = append(filters, drawtextFilter(req.OverlayText))
	}

	return []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(req.Start),
		"-t", formatSeconds(req.Duration),
		"-i", req.SourcePath,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y", req.ClipPath,
	}
}

// thumbArgs grabs a single scaled frame from the produced clip.
func thumbArgs(clipPath, thumbPath string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(thumbOffset),
		"-i", clipPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", thumbWidth, thumbHeight),
		"-y", thumbPath,
	}
}

// drawtextFilter renders overlay text centered near the bottom of the frame.
func drawtextFilter(text string) string {
	return fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=64:box=1:boxcolor=black@0.5:boxborderw=16:x=(w-text_w)/2:y=h-th-160",
		escapeDrawtext(text))
}

// escapeDrawtext escapes characters that terminate or confuse the drawtext
// filter expression.
func escapeDrawtext(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return r.Replace(s)
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
