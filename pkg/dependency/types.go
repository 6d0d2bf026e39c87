// Package dependency drives the external audio tools (ffmpeg, ffprobe) used to normalize,
// measure and slice recordings, either on the local host or through a remote deps-service.
package dependency

import "time"

// ExecutionMode specifies how commands should be executed.
type ExecutionMode string

const (
	// ModeLocal executes commands directly on the local system using exec.Command.
	ModeLocal ExecutionMode = "local"

	// ModeRemote executes commands by calling a remote dependency service via HTTP.
	ModeRemote ExecutionMode = "remote"

	// ModeFallback tries remote execution first, then falls back to local on network failure.
	ModeFallback ExecutionMode = "fallback"
)

// Canonical waveform produced by NormalizeAudio and ExtractSegment.
const (
	SampleRate   = 16000
	Channels     = 1
	SampleFormat = "s16"
)

// CommandRequest encapsulates all information needed to execute a command.
type CommandRequest struct {
	// Command is the binary alias ("ffmpeg" or "ffprobe").
	Command string `json:"command" yaml:"command"`

	// Args are the command-line arguments.
	Args []string `json:"args" yaml:"args"`

	// Env contains extra environment variables for the process.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Timeout is the maximum execution duration (0 uses the executor default).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// CommandResponse contains the result of a command execution.
type CommandResponse struct {
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`

	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// ExecutorConfig defines the configuration for dependency execution.
type ExecutorConfig struct {
	// Mode specifies the execution strategy: "local", "remote", or "fallback".
	Mode ExecutionMode `json:"mode" yaml:"mode"`

	// ServiceURL is the HTTP endpoint of the remote dependency service
	// (e.g., "http://deps-service:8080"). Required for "remote" and "fallback" modes.
	ServiceURL string `json:"service_url" yaml:"service_url"`

	// OutputDir is where normalized and sliced WAV files are written. In remote mode it must
	// be a volume shared with the deps-service.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// LocalBinaryPaths maps command names to local binary paths
	// (e.g., {"ffmpeg": "/usr/local/bin/ffmpeg"}).
	LocalBinaryPaths map[string]string `json:"local_binary_paths" yaml:"local_binary_paths"`

	// DefaultTimeout is the default execution timeout for all commands.
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`

	// AllowedCommands lists the commands that are permitted to execute.
	// Empty list means allow all.
	AllowedCommands []string `json:"allowed_commands" yaml:"allowed_commands"`
}
