// Package whisper provides the transcription backends behind the ASR model adapter.
// Backends talk to a go-whisper HTTP service, a local whisper CLI, or a mock used in
// development and tests.
package whisper

import (
	"context"
	"strings"
	"time"
)

// TranscriptionSegment represents a single segment of transcribed audio with timing information.
type TranscriptionSegment struct {
	// ID is the sequential identifier of this segment within the transcription
	ID int `json:"id"`

	// Start is the beginning time of this segment in seconds from the audio start
	Start float64 `json:"start"`

	// End is the ending time of this segment in seconds from the audio start
	End float64 `json:"end"`

	// Text is the transcribed text content of this segment
	Text string `json:"text"`
}

// TranscriptionResult represents the complete result of one backend call.
type TranscriptionResult struct {
	Segments []TranscriptionSegment `json:"segments"`

	// Text is the complete transcribed text. Some backends leave it empty and only fill Segments.
	Text string `json:"text"`

	// Language is the detected or specified language code (e.g., "vi", "en")
	Language string `json:"language"`

	// Duration is the total duration of the audio in seconds
	Duration float64 `json:"duration"`
}

// FullText returns Text, or the trimmed segment texts joined by spaces when Text is empty.
func (r *TranscriptionResult) FullText() string {
	if r == nil {
		return ""
	}
	if text := strings.TrimSpace(r.Text); text != "" {
		return text
	}
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// WhisperTranscriber is implemented by every transcription backend.
//
// Backends are not assumed to be safe for concurrent use; the inference worker guarantees
// a single in-flight call.
type WhisperTranscriber interface {
	// Transcribe performs audio transcription on the given WAV file.
	//
	// Implementation notes:
	//   - Must respect context timeout and cancellation
	//   - Should wrap external errors with context: fmt.Errorf("transcription failed: %w", err)
	//   - Silence should return a valid TranscriptionResult with empty Segments, not an error
	Transcribe(ctx context.Context, audioPath string, options *TranscribeOptions) (*TranscriptionResult, error)

	// HealthCheck verifies that the transcription service is operational.
	// It should be lightweight: an HTTP ping or a file check. It must not start inference
	// work, since it runs outside the single-flight worker.
	HealthCheck(ctx context.Context) (bool, error)

	// Name returns the backend identifier used in logs and metrics
	// (e.g., "go-whisper", "local-whisper", "mock").
	Name() string
}

// TranscribeOptions are fixed per process and resolved when the model is constructed.
type TranscribeOptions struct {
	// Model specifies the Whisper model (e.g., "ggml-base", "vinai/PhoWhisper-small").
	Model string

	// Language forces transcription in a specific language (ISO 639-1 code).
	// Empty string means auto-detection.
	Language string

	// Prompt provides context to improve transcription accuracy (optional).
	Prompt string

	// Temperature is the sampling temperature; 0 reduces hallucinated repetitions.
	Temperature float64

	// Device is the hardware preference: "auto", "cuda" or "cpu".
	Device string

	// Timeout bounds one Transcribe call. Zero means no extra bound.
	Timeout time.Duration
}
