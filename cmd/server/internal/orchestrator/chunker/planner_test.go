package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		duration int64
		chunk    int64
		overlap  int64
		want     []Window
	}{
		{
			name:     "three windows with overlap",
			duration: 65000, chunk: 30000, overlap: 1000,
			want: []Window{
				{Index: 0, StartMs: 0, EndMs: 30000},
				{Index: 1, StartMs: 29000, EndMs: 59000},
				{Index: 2, StartMs: 58000, EndMs: 65000},
			},
		},
		{
			name:     "shorter than chunk",
			duration: 20000, chunk: 30000, overlap: 1000,
			want:     []Window{{Index: 0, StartMs: 0, EndMs: 20000}},
		},
		{
			name:     "exactly one chunk",
			duration: 30000, chunk: 30000, overlap: 1000,
			want:     []Window{{Index: 0, StartMs: 0, EndMs: 30000}},
		},
		{
			name:     "no overlap",
			duration: 60001, chunk: 30000, overlap: 0,
			want: []Window{
				{Index: 0, StartMs: 0, EndMs: 30000},
				{Index: 1, StartMs: 30000, EndMs: 60000},
				{Index: 2, StartMs: 60000, EndMs: 60001},
			},
		},
		{
			name:     "zero duration",
			duration: 0, chunk: 30000, overlap: 1000,
			want:     []Window{{Index: 0, StartMs: 0, EndMs: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.duration, tt.chunk, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_InvalidArguments(t *testing.T) {
	_, err := Plan(1000, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = Plan(1000, 100, 100)
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = Plan(1000, 100, -1)
	assert.ErrorIs(t, err, ErrInvalidOverlap)

	_, err = Plan(-1, 100, 10)
	assert.ErrorIs(t, err, ErrNegativeDuration)
}

func TestPlan_Idempotent(t *testing.T) {
	a, err := Plan(123456, 30000, 1500)
	require.NoError(t, err)
	b, err := Plan(123456, 30000, 1500)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlan_LargestOverlapTerminates(t *testing.T) {
	// advances by a single millisecond per window
	windows, err := Plan(1010, 1000, 999)
	require.NoError(t, err)
	require.Len(t, windows, 11)
	assert.Equal(t, int64(1010), windows[len(windows)-1].EndMs)
}

func TestPlan_Properties(t *testing.T) {
	chunks := []int64{1, 7, 1000, 30000}
	for _, chunk := range chunks {
		for _, overlap := range []int64{0, chunk / 3, chunk - 1} {
			for _, duration := range []int64{0, 1, chunk, chunk + 1, 2 * chunk, 3*chunk + 17} {
				windows, err := Plan(duration, chunk, overlap)
				require.NoError(t, err)
				require.NotEmpty(t, windows)

				if duration <= chunk {
					assert.Equal(t, []Window{{StartMs: 0, EndMs: duration}}, windows)
					continue
				}

				first, last := windows[0], windows[len(windows)-1]
				assert.Equal(t, int64(0), first.StartMs)
				assert.Equal(t, duration, last.EndMs)

				for i, w := range windows {
					assert.Equal(t, i, w.Index)
					assert.Less(t, w.StartMs, w.EndMs)
					assert.LessOrEqual(t, w.EndMs, duration)
					if i < len(windows)-1 {
						assert.Equal(t, chunk, w.Duration(), "non-final window %v", w)
						assert.Equal(t, overlap, w.EndMs-windows[i+1].StartMs, "overlap after %v", w)
						assert.Greater(t, windows[i+1].StartMs, w.StartMs)
					}
				}
			}
		}
	}
}

func TestWindowSeconds(t *testing.T) {
	w := Window{StartMs: 29000, EndMs: 59500}
	assert.InDelta(t, 29.0, w.StartSeconds(), 1e-9)
	assert.InDelta(t, 59.5, w.EndSeconds(), 1e-9)
	assert.Equal(t, int64(30500), w.Duration())
}

func TestNeedsSlicing(t *testing.T) {
	single, _ := Plan(20000, 30000, 1000)
	multi, _ := Plan(65000, 30000, 1000)
	assert.False(t, NeedsSlicing(single))
	assert.True(t, NeedsSlicing(multi))
}
