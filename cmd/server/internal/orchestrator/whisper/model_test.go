package whisper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	healthy bool
	calls   atomic.Int32

	mu      sync.Mutex
	lastOpt *TranscribeOptions
}

func (c *countingBackend) Transcribe(ctx context.Context, audioPath string, options *TranscribeOptions) (*TranscriptionResult, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.lastOpt = options
	c.mu.Unlock()
	return &TranscriptionResult{Text: "ok " + audioPath}, nil
}

func (c *countingBackend) HealthCheck(ctx context.Context) (bool, error) { return c.healthy, nil }
func (c *countingBackend) Name() string                                   { return "counting" }

func TestModel_LoadsOnce(t *testing.T) {
	var loads atomic.Int32
	backend := &countingBackend{healthy: true}
	model := NewModelWithFactory(TranscribeOptions{Model: "vinai/PhoWhisper-small"}, func() (WhisperTranscriber, error) {
		loads.Add(1)
		time.Sleep(5 * time.Millisecond)
		return backend, nil
	}, nil)

	assert.False(t, model.Loaded())
	assert.Equal(t, "unloaded", model.Name())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := model.Transcribe(context.Background(), "a.wav")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, int32(8), backend.calls.Load())
	assert.True(t, model.Loaded())
	assert.Equal(t, "counting", model.Name())
	assert.Equal(t, "vinai/PhoWhisper-small", model.ID())
}

func TestModel_FailedLoadIsRetried(t *testing.T) {
	attempts := 0
	model := NewModelWithFactory(TranscribeOptions{Model: "m"}, func() (WhisperTranscriber, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("weights missing")
		}
		return &countingBackend{healthy: true}, nil
	}, nil)

	_, err := model.Transcribe(context.Background(), "a.wav")
	require.Error(t, err)
	assert.False(t, model.Loaded())

	res, err := model.Transcribe(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "ok a.wav", res.FullText())
	assert.Equal(t, 2, attempts)
}

func TestModel_UnhealthyBackendNotMemoized(t *testing.T) {
	model := NewModelWithFactory(TranscribeOptions{}, func() (WhisperTranscriber, error) {
		return &countingBackend{healthy: false}, nil
	}, nil)

	_, err := model.Load(context.Background())
	assert.Error(t, err)
	assert.False(t, model.Loaded())

	healthy, err := model.HealthCheck(context.Background())
	assert.False(t, healthy)
	assert.Error(t, err)
}

func TestModel_FixedOptionsPassedToBackend(t *testing.T) {
	backend := &countingBackend{healthy: true}
	model := NewModel(BackendConfig{Backend: BackendMock, Device: DeviceCPU}, TranscribeOptions{Model: "small", Language: "vi"}, nil)
	model.factory = func() (WhisperTranscriber, error) { return backend, nil }

	_, err := model.Transcribe(context.Background(), "x.wav")
	require.NoError(t, err)
	require.NotNil(t, backend.lastOpt)
	assert.Equal(t, "small", backend.lastOpt.Model)
	assert.Equal(t, "vi", backend.lastOpt.Language)
	assert.Equal(t, DeviceCPU, backend.lastOpt.Device)
	assert.Equal(t, DeviceCPU, model.Device())
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(BackendConfig{Backend: BackendMock}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", b.Name())

	b, err = NewBackend(BackendConfig{Backend: BackendGoWhisper, APIURL: "http://whisper:80"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "go-whisper", b.Name())

	_, err = NewBackend(BackendConfig{Backend: BackendGoWhisper}, nil)
	assert.Error(t, err)

	_, err = NewBackend(BackendConfig{Backend: BackendLocal, ProgramPath: "/nonexistent/whisper"}, nil)
	assert.Error(t, err)

	_, err = NewBackend(BackendConfig{Backend: "onnx"}, nil)
	assert.Error(t, err)
}
