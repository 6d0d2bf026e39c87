// Package chunker plans the overlapping time windows a long recording is split into before
// inference.
package chunker

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("overlap must be non-negative and smaller than chunk size")
	ErrNegativeDuration = errors.New("duration must be non-negative")
)

// Window is one [StartMs, EndMs) slice of the original recording.
type Window struct {
	Index   int
	StartMs int64
	EndMs   int64
}

// Duration returns the window length in milliseconds.
func (w Window) Duration() int64 { return w.EndMs - w.StartMs }

// StartSeconds returns the window start on the original timeline.
func (w Window) StartSeconds() float64 { return float64(w.StartMs) / 1000.0 }

// EndSeconds returns the window end on the original timeline.
func (w Window) EndSeconds() float64 { return float64(w.EndMs) / 1000.0 }

func (w Window) String() string {
	return fmt.Sprintf("chunk[%d](%d-%dms)", w.Index, w.StartMs, w.EndMs)
}

// ChunkWindow binds a planned window to the audio file holding its samples.
type ChunkWindow struct {
	Window
	Path string
}

// Plan computes the ordered windows covering durationMs.
//
// A recording no longer than chunkMs yields the single window (0, durationMs). Longer
// recordings advance by chunkMs-overlapMs until a window reaches durationMs. A zero duration
// yields (0, 0); callers that need audio reject it before planning.
func Plan(durationMs, chunkMs, overlapMs int64) ([]Window, error) {
	if chunkMs <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkMs)
	}
	if overlapMs < 0 || overlapMs >= chunkMs {
		return nil, fmt.Errorf("%w: overlap=%d chunk=%d", ErrInvalidOverlap, overlapMs, chunkMs)
	}
	if durationMs < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeDuration, durationMs)
	}

	if durationMs <= chunkMs {
		return []Window{{Index: 0, StartMs: 0, EndMs: durationMs}}, nil
	}

	windows := make([]Window, 0, durationMs/(chunkMs-overlapMs)+1)
	var start int64
	for {
		end := min(start+chunkMs, durationMs)
		if end <= start {
			// next start failed to advance
			break
		}
		windows = append(windows, Window{Index: len(windows), StartMs: start, EndMs: end})
		if end == durationMs {
			break
		}
		next := end - overlapMs
		if next <= start {
			break
		}
		start = next
	}
	return windows, nil
}

// NeedsSlicing reports whether the windows require cutting the audio into separate files.
func NeedsSlicing(windows []Window) bool {
	return len(windows) > 1
}
