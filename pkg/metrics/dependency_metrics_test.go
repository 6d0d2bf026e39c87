package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, command, mode, status string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, commandExecutionTotal.WithLabelValues(command, mode, status).Write(metric))
	return metric.Counter.GetValue()
}

func TestRecordCommand(t *testing.T) {
	commandExecutionTotal.Reset()
	commandExecutionDuration.Reset()

	RecordCommand("ffmpeg", "local", nil, 200*time.Millisecond)
	RecordCommand("ffmpeg", "local", nil, 300*time.Millisecond)
	RecordCommand("ffprobe", "local", errors.New("exit status 1"), 10*time.Millisecond)

	assert.Equal(t, float64(2), counterValue(t, "ffmpeg", "local", StatusSuccess))
	assert.Equal(t, float64(1), counterValue(t, "ffprobe", "local", StatusFailed))

	metric := &dto.Metric{}
	observer := commandExecutionDuration.WithLabelValues("ffmpeg", "local")
	require.NoError(t, observer.(interface{ Write(*dto.Metric) error }).Write(metric))
	assert.Equal(t, uint64(2), metric.Histogram.GetSampleCount())
	assert.InDelta(t, 0.5, metric.Histogram.GetSampleSum(), 1e-9)
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, StatusSuccess},
		{"deadline", fmt.Errorf("ffmpeg: %w", context.DeadlineExceeded), StatusTimeout},
		{"other", errors.New("boom"), StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFromError(tt.err))
		})
	}
}

func TestRecordFallbackEvent(t *testing.T) {
	fallbackEventsTotal.Reset()

	RecordFallbackEvent("remote", "local")

	metric := &dto.Metric{}
	require.NoError(t, fallbackEventsTotal.WithLabelValues("remote", "local").Write(metric))
	assert.Equal(t, float64(1), metric.Counter.GetValue())
}
