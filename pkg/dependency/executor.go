package dependency

import "context"

// DependencyExecutor defines the interface for executing external commands
// in different modes (local, remote, fallback).
//
// Implementations:
//   - LocalExecutor: Executes commands directly using exec.Command
//   - RemoteExecutor: Executes commands via HTTP API calls
//   - FallbackExecutor: Tries remote first, falls back to local on failure
type DependencyExecutor interface {
	// ExecuteCommand executes a command with the given request.
	// If the context is cancelled, the command should be terminated promptly.
	ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error)

	// HealthCheck verifies that the executor is ready to handle requests.
	HealthCheck(ctx context.Context) error

	// Mode reports the execution mode used for metrics labels.
	Mode() ExecutionMode
}

// NewExecutor selects the executor implementation for config.Mode.
func NewExecutor(config ExecutorConfig) (DependencyExecutor, error) {
	switch config.Mode {
	case ModeLocal, "":
		return NewLocalExecutor(config), nil
	case ModeRemote:
		if config.ServiceURL == "" {
			return nil, ErrServiceURLRequired
		}
		return NewRemoteExecutor(config), nil
	case ModeFallback:
		if config.ServiceURL == "" {
			return nil, ErrServiceURLRequired
		}
		return NewFallbackExecutor(config), nil
	default:
		return nil, &InvalidModeError{Mode: config.Mode}
	}
}
