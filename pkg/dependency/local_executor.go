package dependency

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// LocalExecutor executes commands directly on the local system using exec.Command.
// It is suitable for development environments or when ffmpeg is installed on the host.
type LocalExecutor struct {
	config ExecutorConfig
}

// NewLocalExecutor creates a new LocalExecutor with the given configuration.
func NewLocalExecutor(config ExecutorConfig) *LocalExecutor {
	return &LocalExecutor{config: config}
}

// Mode implements DependencyExecutor.
func (e *LocalExecutor) Mode() ExecutionMode { return ModeLocal }

// ExecuteCommand executes a command locally and returns the result.
func (e *LocalExecutor) ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	binaryPath, err := e.resolveBinaryPath(req.Command)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to resolve binary path for %s: %w", req.Command, err)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.config.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binaryPath, req.Args...)
	cmd.Env = append(os.Environ(), buildEnvSlice(req.Env)...)
	// own process group so a timeout kills ffmpeg and anything it spawned
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()

	resp := CommandResponse{
		Success:    err == nil,
		ExitCode:   exitCode(err),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return resp, fmt.Errorf("command execution timeout (%v): %s: %w", timeout, req.Command, context.DeadlineExceeded)
	}

	return resp, err
}

// HealthCheck verifies that all configured local binaries are available.
func (e *LocalExecutor) HealthCheck(ctx context.Context) error {
	for _, command := range []string{"ffmpeg", "ffprobe"} {
		if _, err := e.resolveBinaryPath(command); err != nil {
			return fmt.Errorf("local command %s not available: %w", command, err)
		}
	}
	return nil
}

// resolveBinaryPath resolves the binary path from config or PATH environment.
func (e *LocalExecutor) resolveBinaryPath(command string) (string, error) {
	if path, ok := e.config.LocalBinaryPaths[command]; ok && path != "" {
		return exec.LookPath(path)
	}
	return exec.LookPath(command)
}

func buildEnvSlice(envMap map[string]string) []string {
	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
