package whisper

import (
	"context"
	"log/slog"
)

// MockTranscriber returns a fixed text for every file. It backs WHISPER_BACKEND=mock for
// local development without a model.
type MockTranscriber struct {
	text   string
	logger *slog.Logger
}

// NewMockTranscriber creates a MockTranscriber that answers every call with text.
func NewMockTranscriber(text string, logger *slog.Logger) *MockTranscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockTranscriber{text: text, logger: logger.With("backend", "mock")}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath string, options *TranscribeOptions) (*TranscriptionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.logger.Warn("mock transcription, no model is loaded", "audio", audioPath)

	result := &TranscriptionResult{
		Segments: []TranscriptionSegment{},
		Text:     m.text,
		Language: "unknown",
	}
	if options != nil && options.Language != "" {
		result.Language = options.Language
	}
	return result, nil
}

// HealthCheck always succeeds.
func (m *MockTranscriber) HealthCheck(ctx context.Context) (bool, error) {
	return true, nil
}

func (m *MockTranscriber) Name() string {
	return "mock"
}
