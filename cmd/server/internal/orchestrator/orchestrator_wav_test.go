package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houzhh15/asr-gateway/pkg/dependency"
)

// wavNormalizer writes a real canonical WAV and measures it with the
// dependency client, so the header reader and the planner run together.
type wavNormalizer struct {
	*fakeNormalizer
	lengthMs int
	client   *dependency.Client
}

func (n *wavNormalizer) NormalizeAudio(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input missing: %w", err)
	}
	out := filepath.Join(n.dir, "normalized.wav")
	return out, writeCanonicalWAV(out, n.lengthMs)
}

func (n *wavNormalizer) DurationMs(ctx context.Context, path string) (float64, error) {
	return n.client.DurationMs(ctx, path)
}

func writeCanonicalWAV(path string, lengthMs int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, dependency.SampleRate, 16, dependency.Channels, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: dependency.Channels, SampleRate: dependency.SampleRate},
		Data:           make([]int, dependency.SampleRate*lengthMs/1000),
		SourceBitDepth: 16,
	}); err != nil {
		return err
	}
	return enc.Close()
}

// noProcesses fails the test if the client ever reaches for ffprobe.
type noProcesses struct{ t *testing.T }

func (e noProcesses) ExecuteCommand(ctx context.Context, req dependency.CommandRequest) (dependency.CommandResponse, error) {
	e.t.Errorf("unexpected %s invocation", req.Command)
	return dependency.CommandResponse{}, fmt.Errorf("%s not available", req.Command)
}

func (e noProcesses) HealthCheck(ctx context.Context) error { return nil }

func (e noProcesses) Mode() dependency.ExecutionMode { return dependency.ModeLocal }

func newWAVHarness(t *testing.T, lengthMs int) *harness {
	t.Helper()
	h := newHarness(t, 0)
	norm := &wavNormalizer{
		fakeNormalizer: h.normalizer,
		lengthMs:       lengthMs,
		client: dependency.NewClientWithExecutor(noProcesses{t: t}, dependency.ExecutorConfig{
			OutputDir:      h.dir,
			DefaultTimeout: 5 * time.Second,
		}),
	}
	h.orch.normalizer = norm
	return h
}

func TestTranscribe_WAVLengthDrivesWindows(t *testing.T) {
	tests := []struct {
		name     string
		lengthMs int
		calls    []string
		chunks   []Segment
	}{
		{
			name:     "exactly one window",
			lengthMs: 30000,
			calls:    []string{"normalized.wav"},
			chunks:   []Segment{{Start: 0, End: 30, Text: "ok"}},
		},
		{
			name:     "just over one window",
			lengthMs: 30500,
			calls:    []string{"seg-0.wav", "seg-29000.wav"},
			chunks: []Segment{
				{Start: 0, End: 30, Text: "ok"},
				{Start: 29, End: 30.5, Text: "ok"},
			},
		},
		{
			name:     "one minute",
			lengthMs: 60000,
			calls:    []string{"seg-0.wav", "seg-29000.wav", "seg-58000.wav"},
			chunks: []Segment{
				{Start: 0, End: 30, Text: "ok"},
				{Start: 29, End: 59, Text: "ok"},
				{Start: 58, End: 60, Text: "ok"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWAVHarness(t, tt.lengthMs)

			res, err := h.orch.Transcribe(context.Background(), upload("audio"))
			require.NoError(t, err)

			assert.Equal(t, float64(tt.lengthMs)/1000.0, res.DurationSeconds)
			assert.Equal(t, tt.chunks, res.Chunks)
			assert.Equal(t, tt.calls, h.model.calls)
			h.assertClean(t)
		})
	}
}

func TestTranscribe_HeaderOnlyWAVIsEmptyAudio(t *testing.T) {
	h := newWAVHarness(t, 0)

	_, err := h.orch.Transcribe(context.Background(), upload("audio"))
	assert.Equal(t, EMPTY_AUDIO, CodeOf(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.Empty(t, h.model.calls)
	h.assertClean(t)
}
