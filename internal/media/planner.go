// Package media holds pure media-math helpers with no external dependencies.
package media

import (
	"fmt"
	"time"

	"clipforge/internal/domain"
)

// Window is one planned segment time span over the source.
type Window struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
}

// PlanSegments spreads count windows of segmentLength uniformly over total:
// start(i) = total/count * (i-1). A window running past the end of the
// source is clamped; a window that clamps to nothing means the source is
// too short for the requested configuration and the whole plan is rejected.
func PlanSegments(total time.Duration, count int, segmentLength time.Duration) ([]Window, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: source duration %s", domain.ErrPlan, total)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: segment count %d", domain.ErrPlan, count)
	}
	if segmentLength <= 0 {
		return nil, fmt.Errorf("%w: segment length %s", domain.ErrPlan, segmentLength)
	}

	step := total / time.Duration(count)
	windows := make([]Window, 0, count)
	for i := 1; i <= count; i++ {
		start := step * time.Duration(i-1)
		length := segmentLength
		if start+length > total {
			length = total - start
		}
		if length <= 0 {
			return nil, fmt.Errorf("%w: segment %d starts at %s, past usable source", domain.ErrPlan, i, start)
		}
		windows = append(windows, Window{Index: i, Start: start, Duration: length})
	}
	return windows, nil
}
