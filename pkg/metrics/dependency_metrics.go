// Package metrics provides Prometheus metrics for the external audio tools (ffmpeg, ffprobe)
// driven by the gateway.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
)

var (
	// commandExecutionTotal counts external tool invocations.
	// Labels:
	//   - command: ffmpeg, ffprobe
	//   - mode: local, remote, fallback
	//   - status: success, failed, timeout
	commandExecutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asr",
			Name:      "dependency_command_executions_total",
			Help:      "Total number of external audio tool executions",
		},
		[]string{"command", "mode", "status"},
	)

	// commandExecutionDuration observes how long each tool invocation took.
	commandExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asr",
			Name:      "dependency_command_duration_seconds",
			Help:      "Duration of external audio tool executions in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"command", "mode"},
	)

	// fallbackEventsTotal counts remote -> local executor switches.
	fallbackEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asr",
			Name:      "dependency_fallback_events_total",
			Help:      "Total number of executor fallbacks (e.g., remote -> local)",
		},
		[]string{"from_mode", "to_mode"},
	)
)

func init() {
	prometheus.MustRegister(commandExecutionTotal)
	prometheus.MustRegister(commandExecutionDuration)
	prometheus.MustRegister(fallbackEventsTotal)
}

// StatusFromError maps an execution error onto a status label.
func StatusFromError(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusFailed
	}
}

// RecordCommand records one tool execution: its outcome and its duration.
func RecordCommand(command, mode string, err error, d time.Duration) {
	commandExecutionTotal.WithLabelValues(command, mode, StatusFromError(err)).Inc()
	commandExecutionDuration.WithLabelValues(command, mode).Observe(d.Seconds())
}

// RecordFallbackEvent records an executor mode switch.
func RecordFallbackEvent(fromMode, toMode string) {
	fallbackEventsTotal.WithLabelValues(fromMode, toMode).Inc()
}
