package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestRecordChunkProcessed(t *testing.T) {
	before := counterValue(t, AudioChunksTotal.WithLabelValues("asr", "error"))
	RecordChunkProcessed("asr", false)
	assert.Equal(t, before+1, counterValue(t, AudioChunksTotal.WithLabelValues("asr", "error")))
}

func TestSetModelReadyAndQueueDepth(t *testing.T) {
	SetModelReady(true)
	assert.Equal(t, 1.0, gaugeValue(t, ModelReady))
	SetModelReady(false)
	assert.Equal(t, 0.0, gaugeValue(t, ModelReady))

	SetQueueDepth(7)
	assert.Equal(t, 7.0, gaugeValue(t, InferenceQueueDepth))
}

func TestRecordInferenceJob(t *testing.T) {
	before := counterValue(t, InferenceJobsTotal.WithLabelValues("panic"))
	RecordInferenceJob(50*time.Millisecond, "panic")
	assert.Equal(t, before+1, counterValue(t, InferenceJobsTotal.WithLabelValues("panic")))
}

func TestRecordRequest(t *testing.T) {
	before := counterValue(t, TranscribeRequestsTotal.WithLabelValues("upload", "OK"))
	RecordRequest("upload", "OK")
	RecordRequest("upload", "OK")
	assert.Equal(t, before+2, counterValue(t, TranscribeRequestsTotal.WithLabelValues("upload", "OK")))
}
