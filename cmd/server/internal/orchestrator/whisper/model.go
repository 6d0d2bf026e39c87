package whisper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/houzhh15/asr-gateway/cmd/server/internal/metrics"
)

// Backend names accepted by NewBackend.
const (
	BackendGoWhisper = "go-whisper"
	BackendLocal     = "local"
	BackendMock      = "mock"
)

// Device preferences.
const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// BackendConfig selects and configures one transcription backend.
type BackendConfig struct {
	Backend     string
	APIURL      string
	ProgramPath string
	ModelPath   string
	Device      string
	MockText    string
}

// NewBackend builds the backend named by cfg.Backend.
func NewBackend(cfg BackendConfig, logger *slog.Logger) (WhisperTranscriber, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendGoWhisper, "":
		if cfg.APIURL == "" {
			return nil, fmt.Errorf("go-whisper backend requires an API URL")
		}
		return NewGoWhisperImpl(cfg.APIURL, logger), nil
	case BackendLocal:
		return NewLocalWhisperImpl(cfg.ProgramPath, cfg.ModelPath, cfg.Device, logger)
	case BackendMock:
		return NewMockTranscriber(cfg.MockText, logger), nil
	default:
		return nil, fmt.Errorf("unknown whisper backend %q", cfg.Backend)
	}
}

// Model is the process-wide transcription model. The backend is created and verified on the
// first call and shared afterwards; a failed load is retried by the next caller.
//
// Model does not serialize Transcribe calls. Callers run it inside the inference worker.
type Model struct {
	options TranscribeOptions
	factory func() (WhisperTranscriber, error)
	logger  *slog.Logger

	mu      sync.Mutex
	backend WhisperTranscriber
}

// NewModel creates a lazily loaded model for cfg with fixed options.
func NewModel(cfg BackendConfig, options TranscribeOptions, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	options.Device = cfg.Device
	return NewModelWithFactory(options, func() (WhisperTranscriber, error) {
		return NewBackend(cfg, logger)
	}, logger)
}

// NewModelWithFactory creates a model whose backend is produced by factory on first use.
func NewModelWithFactory(options TranscribeOptions, factory func() (WhisperTranscriber, error), logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	if options.Device == "" {
		options.Device = DeviceAuto
	}
	return &Model{
		options: options,
		factory: factory,
		logger:  logger.With("component", "asr_model"),
	}
}

// ID returns the configured model identifier.
func (m *Model) ID() string {
	return m.options.Model
}

// Device returns the configured device preference.
func (m *Model) Device() string {
	return m.options.Device
}

// Loaded reports whether a backend has been loaded successfully.
func (m *Model) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend != nil
}

// Load creates and health-checks the backend once. Concurrent callers wait for the first load.
func (m *Model) Load(ctx context.Context) (WhisperTranscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend, nil
	}

	start := time.Now()
	backend, err := m.factory()
	if err != nil {
		metrics.SetModelReady(false)
		return nil, fmt.Errorf("failed to create whisper backend: %w", err)
	}
	healthy, err := backend.HealthCheck(ctx)
	if err != nil || !healthy {
		metrics.SetModelReady(false)
		if err == nil {
			err = fmt.Errorf("backend %s reported unhealthy", backend.Name())
		}
		return nil, fmt.Errorf("failed to load model %s: %w", m.options.Model, err)
	}

	m.backend = backend
	metrics.SetModelReady(true)
	m.logger.Info("model loaded",
		"model", m.options.Model,
		"backend", backend.Name(),
		"device", m.options.Device,
		"duration_ms", time.Since(start).Milliseconds())
	return backend, nil
}

// Transcribe loads the model if needed and transcribes the WAV file at path.
func (m *Model) Transcribe(ctx context.Context, path string) (*TranscriptionResult, error) {
	backend, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}

	if m.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.options.Timeout)
		defer cancel()
	}

	opts := m.options
	result, err := backend.Transcribe(ctx, path, &opts)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	return result, nil
}

// HealthCheck reports whether the loaded backend is healthy. An unloaded model attempts a load.
// It runs outside the inference worker; backend checks never start a transcription.
func (m *Model) HealthCheck(ctx context.Context) (bool, error) {
	backend, err := m.Load(ctx)
	if err != nil {
		return false, err
	}
	return backend.HealthCheck(ctx)
}

// Name returns the backend name, or "unloaded" before the first successful load.
func (m *Model) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return "unloaded"
	}
	return m.backend.Name()
}
