package dependency

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceURLRequired is returned when remote execution is configured without a URL.
	ErrServiceURLRequired = errors.New("dependency service URL is required for remote and fallback modes")

	// ErrCommandNotAllowed is returned for commands outside the whitelist.
	ErrCommandNotAllowed = errors.New("command is not in whitelist")

	// ErrUnsafeArgument is returned for arguments that try to escape the working area.
	ErrUnsafeArgument = errors.New("unsafe command argument")

	// ErrInvalidSegment is returned when a segment has no positive length.
	ErrInvalidSegment = errors.New("segment end must be after start")
)

// InvalidModeError reports an unknown execution mode.
type InvalidModeError struct {
	Mode ExecutionMode
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid execution mode: %s (must be 'local', 'remote', or 'fallback')", e.Mode)
}

// CommandError reports a command that ran but did not succeed.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (exit code %d): %v: %s", e.Command, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed (exit code %d): %s", e.Command, e.ExitCode, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }
