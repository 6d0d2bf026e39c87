package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// LocalWhisperImpl implements WhisperTranscriber by invoking a whisper CLI binary
// (whisper.cpp / go-whisper command line) on the same host.
type LocalWhisperImpl struct {
	programPath string // e.g. /app/bin/whisper
	modelPath   string // directory holding GGML model files
	device      string
	logger      *slog.Logger
}

// NewLocalWhisperImpl validates that programPath exists and is executable.
func NewLocalWhisperImpl(programPath, modelPath, device string, logger *slog.Logger) (*LocalWhisperImpl, error) {
	if err := checkProgram(programPath); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalWhisperImpl{
		programPath: programPath,
		modelPath:   modelPath,
		device:      device,
		logger:      logger.With("backend", "local-whisper"),
	}, nil
}

// modelName normalizes "base", "base.bin" and "ggml-base" to "ggml-base".
func modelName(model string) string {
	if model == "" {
		return "ggml-base"
	}
	model = strings.TrimSuffix(model, ".bin")
	if !strings.HasPrefix(model, "ggml-") {
		model = "ggml-" + model
	}
	return model
}

func (l *LocalWhisperImpl) buildArgs(audioPath string, options *TranscribeOptions) []string {
	var opts TranscribeOptions
	if options != nil {
		opts = *options
	}

	var args []string
	if l.modelPath != "" {
		args = append(args, "--dir", l.modelPath)
	}
	args = append(args, "transcribe", modelName(opts.Model), audioPath, "--format", "json")
	args = append(args, "--temperature", strconv.FormatFloat(opts.Temperature, 'f', 1, 64))
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Prompt != "" {
		args = append(args, "--prompt", opts.Prompt)
	}
	return args
}

// environ hides GPUs from the CLI when the cpu device is requested.
func (l *LocalWhisperImpl) environ() []string {
	env := os.Environ()
	if l.device == "cpu" {
		env = append(env, "CUDA_VISIBLE_DEVICES=")
	}
	return env
}

// Transcribe runs `whisper transcribe <model> <audio> --format json` and parses the stream of
// JSON segment objects the CLI prints to stdout.
func (l *LocalWhisperImpl) Transcribe(ctx context.Context, audioPath string, options *TranscribeOptions) (*TranscriptionResult, error) {
	args := l.buildArgs(audioPath, options)

	cmd := exec.CommandContext(ctx, l.programPath, args...)
	cmd.Env = l.environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("executing whisper CLI", "program", l.programPath, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		l.logger.Error("whisper CLI failed", "error", err, "stderr", stderr.String())
		return nil, fmt.Errorf("CLI execution failed: %w, stderr: %s", err, stderr.String())
	}

	segments, err := parseSegments(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	l.logger.Debug("whisper CLI finished", "segments", len(segments))
	return &TranscriptionResult{Segments: segments}, nil
}

// parseSegments decodes consecutive (possibly pretty-printed) JSON objects.
// Empty output means silence and yields no segments.
func parseSegments(output []byte) ([]TranscriptionSegment, error) {
	segments := []TranscriptionSegment{}
	decoder := json.NewDecoder(bytes.NewReader(output))
	for {
		var segment TranscriptionSegment
		err := decoder.Decode(&segment)
		if errors.Is(err, io.EOF) {
			return segments, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON segment: %w", err)
		}
		segments = append(segments, segment)
	}
}

// HealthCheck verifies the program is still installed and executable. It never starts the
// binary, so it cannot run beside a transcription holding the inference lane.
func (l *LocalWhisperImpl) HealthCheck(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := checkProgram(l.programPath); err != nil {
		return false, err
	}
	return true, nil
}

func checkProgram(programPath string) error {
	info, err := os.Stat(programPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("whisper program not found: %s", programPath)
	}
	if err != nil {
		return fmt.Errorf("failed to stat whisper program: %w", err)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("whisper program is not executable: %s (mode: %s)", programPath, info.Mode())
	}
	return nil
}

func (l *LocalWhisperImpl) Name() string {
	return "local-whisper"
}
