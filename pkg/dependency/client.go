package dependency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/houzhh15/asr-gateway/pkg/metrics"
)

// Client is the audio normalizer facade used by the orchestrator. It builds the ffmpeg and
// ffprobe invocations and hides whether they run locally or in the deps-service.
type Client struct {
	executor DependencyExecutor
	config   ExecutorConfig
}

// NewClient creates a new Client based on the provided configuration.
// It selects the appropriate executor (Local, Remote, or Fallback) based on config.Mode.
func NewClient(config ExecutorConfig) (*Client, error) {
	executor, err := NewExecutor(config)
	if err != nil {
		return nil, err
	}
	return NewClientWithExecutor(executor, config), nil
}

// NewClientWithExecutor wires a Client to an existing executor.
func NewClientWithExecutor(executor DependencyExecutor, config ExecutorConfig) *Client {
	if config.OutputDir == "" {
		config.OutputDir = os.TempDir()
	}
	if len(config.AllowedCommands) == 0 {
		config.AllowedCommands = []string{"ffmpeg", "ffprobe"}
	}
	return &Client{executor: executor, config: config}
}

// HealthCheck reports whether the underlying executor can run ffmpeg.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.executor.HealthCheck(ctx)
}

// NormalizeAudio converts any input audio into a 16 kHz mono 16-bit PCM WAV file and returns
// its path. The caller owns (and must remove) the returned file.
//
// Example:
//
//	wavPath, err := client.NormalizeAudio(ctx, "/tmp/upload-123.m4a")
func (c *Client) NormalizeAudio(ctx context.Context, inputPath string) (string, error) {
	outPath := c.newOutputPath()
	args := []string{"-y", "-i", inputPath}
	args = append(args, canonicalFormatArgs()...)
	args = append(args, outPath)

	if _, err := c.run(ctx, "ffmpeg", args); err != nil {
		removeQuietly(outPath)
		return "", fmt.Errorf("audio normalization failed: %w", err)
	}
	return outPath, nil
}

// DurationMs measures the duration of an audio file in milliseconds. Canonical WAV files are
// measured from their header; anything else is probed with ffprobe.
func (c *Client) DurationMs(ctx context.Context, path string) (float64, error) {
	if ms, err := wavDurationMs(path); err == nil {
		return ms, nil
	}

	resp, err := c.run(ctx, "ffprobe", []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		return 0, fmt.Errorf("duration probe failed: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(resp.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q: %w", strings.TrimSpace(resp.Stdout), err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("ffprobe reported negative duration %v", seconds)
	}
	return seconds * 1000.0, nil
}

// ExtractSegment cuts [startMs, endMs) out of path into a new canonical WAV file.
func (c *Client) ExtractSegment(ctx context.Context, path string, startMs, endMs int64) (string, error) {
	if endMs <= startMs {
		return "", fmt.Errorf("%w: start=%d end=%d", ErrInvalidSegment, startMs, endMs)
	}
	outPath := c.newOutputPath()
	args := []string{
		"-y",
		"-i", path,
		"-ss", formatSeconds(startMs),
		"-t", formatSeconds(endMs - startMs),
	}
	args = append(args, canonicalFormatArgs()...)
	args = append(args, outPath)

	if _, err := c.run(ctx, "ffmpeg", args); err != nil {
		removeQuietly(outPath)
		return "", fmt.Errorf("segment extraction failed [%d,%d): %w", startMs, endMs, err)
	}
	return outPath, nil
}

func (c *Client) run(ctx context.Context, command string, args []string) (CommandResponse, error) {
	req := CommandRequest{
		Command: command,
		Args:    args,
		Timeout: c.config.DefaultTimeout,
	}
	if err := ValidateCommandRequest(req, c.config); err != nil {
		return CommandResponse{}, fmt.Errorf("command validation failed: %w", err)
	}

	mode := string(c.executor.Mode())
	start := time.Now()
	resp, err := c.executor.ExecuteCommand(ctx, req)
	if err == nil && (!resp.Success || resp.ExitCode != 0) {
		err = &CommandError{Command: command, ExitCode: resp.ExitCode, Stderr: lastLines(resp.Stderr, 5)}
	} else if err != nil {
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			err = &CommandError{Command: command, ExitCode: resp.ExitCode, Stderr: lastLines(resp.Stderr, 5), Err: err}
		}
	}
	metrics.RecordCommand(command, mode, err, time.Since(start))
	return resp, err
}

func (c *Client) newOutputPath() string {
	return filepath.Join(c.config.OutputDir, uuid.NewString()+".wav")
}

func canonicalFormatArgs() []string {
	return []string{
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-sample_fmt", SampleFormat,
	}
}

// formatSeconds renders milliseconds as the decimal seconds ffmpeg expects.
func formatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000.0, 'f', 3, 64)
}

func wavDurationMs(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Duration comes from the data chunk alone; the RIFF size also counts
	// the fmt and LIST chunks.
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return 0, err
	}
	if dec.NumChans < 1 || dec.BitDepth < 8 {
		return 0, errors.New("not a valid wav file")
	}
	if dec.AvgBytesPerSec == 0 {
		return 0, errors.New("wav header has no byte rate")
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, err
	}
	return float64(dec.PCMLen()) / float64(dec.AvgBytesPerSec) * 1000, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
