package dependency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/houzhh15/asr-gateway/pkg/metrics"
)

// FallbackExecutor tries remote execution first, then falls back to local on network failure.
// Once local succeeds it stays local until a HealthCheck finds the remote service again.
type FallbackExecutor struct {
	remote      DependencyExecutor
	local       DependencyExecutor
	primaryMode ExecutionMode
	mu          sync.RWMutex
}

// NewFallbackExecutor creates a new FallbackExecutor with remote as the initial primary mode.
func NewFallbackExecutor(config ExecutorConfig) *FallbackExecutor {
	return newFallbackExecutor(NewRemoteExecutor(config), NewLocalExecutor(config))
}

func newFallbackExecutor(remote, local DependencyExecutor) *FallbackExecutor {
	return &FallbackExecutor{
		remote:      remote,
		local:       local,
		primaryMode: ModeRemote,
	}
}

// Mode reports the currently active mode.
func (e *FallbackExecutor) Mode() ExecutionMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.primaryMode
}

// ExecuteCommand executes a command using the current primary mode, with automatic fallback.
func (e *FallbackExecutor) ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	if e.Mode() == ModeLocal {
		return e.local.ExecuteCommand(ctx, req)
	}

	resp, err := e.remote.ExecuteCommand(ctx, req)
	if err == nil || !isNetworkError(err) {
		return resp, err
	}

	slog.Warn("remote execution failed, attempting local fallback",
		"command", req.Command,
		"error", err.Error())

	resp, err = e.local.ExecuteCommand(ctx, req)
	if err == nil && resp.Success {
		e.setPrimaryMode(ModeLocal)
		metrics.RecordFallbackEvent(string(ModeRemote), string(ModeLocal))
		slog.Info("local fallback succeeded, switched primary mode to local", "command", req.Command)
	}
	return resp, err
}

// HealthCheck probes the remote service first and the local binaries second, and selects
// the primary mode accordingly.
func (e *FallbackExecutor) HealthCheck(ctx context.Context) error {
	remoteErr := e.remote.HealthCheck(ctx)
	if remoteErr == nil {
		e.setPrimaryMode(ModeRemote)
		return nil
	}
	slog.Warn("remote dependency service unavailable, trying local fallback", "error", remoteErr.Error())

	if localErr := e.local.HealthCheck(ctx); localErr != nil {
		return fmt.Errorf("both remote and local dependencies unavailable: remote: %v; local: %w", remoteErr, localErr)
	}
	e.setPrimaryMode(ModeLocal)
	return nil
}

func (e *FallbackExecutor) setPrimaryMode(mode ExecutionMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.primaryMode = mode
}

// isNetworkError reports whether err means the deps-service could not be reached at all.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
