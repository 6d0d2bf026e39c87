// Package health runs periodic readiness probes against the transcription model and the
// audio toolchain.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Probe is anything that can report its own health. *whisper.Model satisfies it.
type Probe interface {
	HealthCheck(ctx context.Context) (bool, error)
	Name() string
}

// ProbeFunc adapts an error-returning check, such as the ffmpeg executor's, to Probe.
type ProbeFunc struct {
	ProbeName string
	Check     func(ctx context.Context) error
}

func (p ProbeFunc) HealthCheck(ctx context.Context) (bool, error) {
	if err := p.Check(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (p ProbeFunc) Name() string { return p.ProbeName }

// ServiceStatus represents the current health state of one probed dependency.
type ServiceStatus struct {
	Name string `json:"name"`

	// IsHealthy indicates whether the service passed recent health checks
	IsHealthy bool `json:"is_healthy"`

	// LastCheckTime is zero until the first check has run
	LastCheckTime time.Time `json:"last_check_time"`

	// ConsecutiveFails counts how many health checks have failed in a row
	ConsecutiveFails int `json:"consecutive_fails"`

	// ErrorMessage contains the last error message if health check failed
	ErrorMessage string `json:"error_message,omitempty"`
}

// HealthChecker performs periodic health checks on a Probe.
// A probe is reported unhealthy until its first check passes, and after failThreshold
// consecutive failures.
//
// Thread-safety: All public methods are thread-safe via sync.RWMutex.
type HealthChecker struct {
	probe         Probe
	status        ServiceStatus
	mu            sync.RWMutex
	checkInterval time.Duration
	checkTimeout  time.Duration
	failThreshold int
	stopChan      chan struct{}
	stopOnce      sync.Once
	logger        *slog.Logger
}

// NewHealthChecker creates a checker for probe. Call Start to begin monitoring.
func NewHealthChecker(probe Probe, checkInterval time.Duration, failThreshold int, logger *slog.Logger) *HealthChecker {
	if failThreshold <= 0 {
		failThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{
		probe:         probe,
		checkInterval: checkInterval,
		checkTimeout:  10 * time.Second,
		failThreshold: failThreshold,
		stopChan:      make(chan struct{}),
		status:        ServiceStatus{Name: probe.Name(), ErrorMessage: "not checked yet"},
		logger:        logger.With("component", "health_checker"),
	}
}

// Start performs an immediate check, then checks every checkInterval until Stop is called
// or ctx ends. It blocks; run it in its own goroutine.
func (hc *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.CheckNow(ctx)

	for {
		select {
		case <-ticker.C:
			hc.CheckNow(ctx)
		case <-hc.stopChan:
			hc.logger.Info("health checker stopped", "probe", hc.probe.Name())
			return
		case <-ctx.Done():
			hc.logger.Info("health checker context cancelled", "probe", hc.probe.Name())
			return
		}
	}
}

// CheckNow runs a single health check, updates the status and returns it.
func (hc *HealthChecker) CheckNow(ctx context.Context) ServiceStatus {
	checkCtx, cancel := context.WithTimeout(ctx, hc.checkTimeout)
	defer cancel()

	isHealthy, err := hc.probe.HealthCheck(checkCtx)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.status.Name = hc.probe.Name()
	hc.status.LastCheckTime = time.Now()

	if isHealthy && err == nil {
		if !hc.status.IsHealthy {
			hc.logger.Info("health check passed", "probe", hc.status.Name)
		}
		hc.status.IsHealthy = true
		hc.status.ConsecutiveFails = 0
		hc.status.ErrorMessage = ""
		return hc.status
	}

	hc.status.ConsecutiveFails++
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	hc.status.ErrorMessage = fmt.Sprintf("Health check failed: %s", errMsg)

	// a probe that never passed is already unhealthy; the threshold only delays the flip
	if hc.status.ConsecutiveFails >= hc.failThreshold {
		if hc.status.IsHealthy {
			hc.logger.Error("marking probe unhealthy",
				"probe", hc.status.Name,
				"consecutive_fails", hc.status.ConsecutiveFails)
		}
		hc.status.IsHealthy = false
	} else {
		hc.logger.Warn("health check failed",
			"probe", hc.status.Name,
			"consecutive_fails", hc.status.ConsecutiveFails,
			"threshold", hc.failThreshold,
			"error", errMsg)
	}
	return hc.status
}

// GetStatus returns a copy of the current health status.
func (hc *HealthChecker) GetStatus() ServiceStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status
}

// Stop terminates the checking goroutine. It is safe to call Stop multiple times.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() { close(hc.stopChan) })
}
