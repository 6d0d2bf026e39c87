package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GoWhisperImpl implements WhisperTranscriber for a go-whisper HTTP service
// (ghcr.io/mutablelogic/go-whisper). Model weights and GPU binding live in that service.
type GoWhisperImpl struct {
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGoWhisperImpl creates a new GoWhisperImpl for the service at apiURL
// (e.g. "http://whisper:80").
//
// The HTTP client timeout is 10 minutes; a chunk transcribes in roughly its own duration on CPU.
func NewGoWhisperImpl(apiURL string, logger *slog.Logger) *GoWhisperImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoWhisperImpl{
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger.With("backend", "go-whisper"),
	}
}

// Transcribe uploads the WAV file to POST {apiURL}/api/whisper/transcribe and parses the
// JSON response.
func (g *GoWhisperImpl) Transcribe(ctx context.Context, audioPath string, options *TranscribeOptions) (*TranscriptionResult, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// go-whisper expects the file under the 'audio' field
	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}

	model := "ggml-base"
	if options != nil && options.Model != "" {
		model = options.Model
	}
	fields := map[string]string{
		"model":           model,
		"response_format": "json",
		"temperature":     "0.0",
	}
	if options != nil {
		if options.Temperature > 0 {
			fields["temperature"] = strconv.FormatFloat(options.Temperature, 'f', 1, 64)
		}
		if options.Language != "" {
			fields["language"] = options.Language
		}
		if options.Prompt != "" {
			fields["prompt"] = options.Prompt
		}
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	endpoint := g.apiURL + "/api/whisper/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	g.logger.Debug("sending transcription request", "endpoint", endpoint, "audio", audioPath, "model", model)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.logger.Warn("transcription request rejected", "status", resp.StatusCode, "body", string(bodyBytes))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result TranscriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return &result, nil
}

// HealthCheck sends GET /api/whisper/model and reports whether the service answered 200.
func (g *GoWhisperImpl) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/api/whisper/model", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true, nil
	}
	return false, fmt.Errorf("health check failed: status %d", resp.StatusCode)
}

func (g *GoWhisperImpl) Name() string {
	return "go-whisper"
}
