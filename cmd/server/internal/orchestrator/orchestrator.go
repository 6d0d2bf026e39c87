// Package orchestrator drives one transcription request end to end: acquire the input,
// normalize it, plan and slice chunks, run each chunk through the inference worker, stitch
// the text, optionally upload the audio for playback and remove every temp artifact.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/houzhh15/asr-gateway/cmd/server/internal/fetch"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/metrics"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/chunker"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/worker"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/storage"
	"github.com/houzhh15/asr-gateway/pkg/logger"
)

// AudioNormalizer converts, measures and slices audio. *dependency.Client implements it.
type AudioNormalizer interface {
	NormalizeAudio(ctx context.Context, inputPath string) (string, error)
	DurationMs(ctx context.Context, path string) (float64, error)
	ExtractSegment(ctx context.Context, path string, startMs, endMs int64) (string, error)
}

// Transcriber runs the model on one chunk. *whisper.Model implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*whisper.TranscriptionResult, error)
	ID() string
}

// Fetcher downloads a remote source. *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Config holds the immutable pipeline settings.
type Config struct {
	TempDir          string
	MaxUploadBytes   int64
	ChunkMs          int64
	ChunkOverlapMs   int64
	SliceConcurrency int
}

// Request is one transcription job. Exactly one of Upload or RemoteURL must be set.
type Request struct {
	Upload        io.Reader
	Filename      string
	Size          int64
	RemoteURL     string
	StorePlayback bool
}

// Source labels the request input for logs and metrics.
func (r Request) Source() string {
	if r.Upload != nil {
		return "upload"
	}
	return "remote"
}

// Segment is one chunk's text on the original recording's timeline.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the response body of a successful transcription.
type Result struct {
	Text                  string    `json:"text"`
	DurationSeconds       float64   `json:"duration_seconds"`
	Model                 string    `json:"model"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	Chunks                []Segment `json:"chunks"`
	PlaybackURL           *string   `json:"playback_url"`
}

// Orchestrator is built once at startup and shared by all requests.
type Orchestrator struct {
	cfg        Config
	normalizer AudioNormalizer
	model      Transcriber
	worker     *worker.Worker
	fetcher    Fetcher
	uploader   storage.Uploader
	logger     *slog.Logger
}

// New wires an Orchestrator. uploader may be nil, which disables playback storage.
func New(cfg Config, normalizer AudioNormalizer, model Transcriber, w *worker.Worker, fetcher Fetcher, uploader storage.Uploader, log *slog.Logger) *Orchestrator {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.SliceConcurrency <= 0 {
		cfg.SliceConcurrency = 2
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		normalizer: normalizer,
		model:      model,
		worker:     w,
		fetcher:    fetcher,
		uploader:   uploader,
		logger:     log.With("component", "orchestrator"),
	}
}

// artifacts tracks temp files owned by one request.
type artifacts struct {
	mu    sync.Mutex
	paths []string
}

func (a *artifacts) add(path string) {
	if path == "" {
		return
	}
	a.mu.Lock()
	a.paths = append(a.paths, path)
	a.mu.Unlock()
}

// removeAll deletes every tracked file. Each removal is independent.
func (a *artifacts) removeAll(log *slog.Logger) {
	a.mu.Lock()
	paths := a.paths
	a.paths = nil
	a.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove temp artifact", "path", p, "error", err)
		}
	}
}

// Transcribe runs the whole pipeline for req.
func (o *Orchestrator) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	log := o.logger.With("job_id", jobID, "source", req.Source())
	tmp := &artifacts{}
	defer tmp.removeAll(log)

	inputPath, err := o.acquire(ctx, req, tmp)
	if err != nil {
		return nil, err
	}

	normStart := time.Now()
	wavPath, err := o.normalizer.NormalizeAudio(ctx, inputPath)
	if err != nil {
		return nil, NewFFmpegError("failed to normalize audio", err)
	}
	tmp.add(wavPath)
	metrics.RecordDuration("normalize", time.Since(normStart))

	durationMs, err := o.normalizer.DurationMs(ctx, wavPath)
	if err != nil {
		return nil, NewFFmpegError("failed to measure audio duration", err)
	}
	// truncate to whole milliseconds
	totalMs := int64(durationMs)
	if totalMs <= 0 {
		return nil, NewEmptyAudioError()
	}

	windows, err := chunker.Plan(totalMs, o.cfg.ChunkMs, o.cfg.ChunkOverlapMs)
	if err != nil {
		return nil, NewOrchError(INTERNAL, "invalid chunk configuration", err)
	}

	chunks, err := o.slice(ctx, wavPath, windows, tmp)
	if err != nil {
		return nil, err
	}
	log.Info("audio prepared", "duration_ms", totalMs, "chunks", len(chunks))

	inferStart := time.Now()
	segments, err := o.infer(ctx, log, chunks)
	if err != nil {
		return nil, err
	}
	processing := time.Since(inferStart)
	metrics.RecordDuration("inference", processing)

	result := &Result{
		Text:                  Stitch(segments),
		DurationSeconds:       durationMs / 1000.0,
		Model:                 o.model.ID(),
		ProcessingTimeSeconds: processing.Seconds(),
		Chunks:                segments,
	}

	if req.StorePlayback {
		result.PlaybackURL = o.storePlayback(ctx, log, wavPath)
	}

	log.Info("transcription finished",
		"chunks", len(segments),
		"text_chars", len(result.Text),
		"processing_ms", processing.Milliseconds())
	return result, nil
}

func (o *Orchestrator) validate(req Request) error {
	hasUpload := req.Upload != nil
	hasRemote := strings.TrimSpace(req.RemoteURL) != ""
	switch {
	case !hasUpload && !hasRemote:
		return NewInvalidInputError("provide 'file' or 'cloudinary_url'")
	case hasUpload && hasRemote:
		return NewInvalidInputError("provide only one of 'file' or 'cloudinary_url'")
	}
	if hasUpload && o.cfg.MaxUploadBytes > 0 && req.Size > o.cfg.MaxUploadBytes {
		return NewPayloadTooLargeError(o.cfg.MaxUploadBytes)
	}
	return nil
}

// acquire writes the upload (or downloads the remote source) into a temp file.
func (o *Orchestrator) acquire(ctx context.Context, req Request, tmp *artifacts) (string, error) {
	if req.Upload == nil {
		path, err := o.fetcher.Fetch(ctx, strings.TrimSpace(req.RemoteURL))
		if err != nil {
			if errors.Is(err, fetch.ErrTooLarge) {
				return "", NewOrchError(PAYLOAD_TOO_LARGE, "remote audio exceeds the size limit", err)
			}
			if errors.Is(err, fetch.ErrInvalidURL) {
				return "", NewOrchError(INVALID_INPUT, "cloudinary_url is not a valid http(s) url", err)
			}
			return "", NewFetchError(err)
		}
		tmp.add(path)
		return path, nil
	}

	f, err := os.CreateTemp(o.cfg.TempDir, "upload-*"+sanitizeExt(req.Filename))
	if err != nil {
		return "", NewOrchError(INTERNAL, "failed to create temp file", err)
	}
	tmp.add(f.Name())

	var src io.Reader = req.Upload
	if o.cfg.MaxUploadBytes > 0 {
		src = io.LimitReader(req.Upload, o.cfg.MaxUploadBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil {
		var maxErr *http.MaxBytesError
		if errors.As(copyErr, &maxErr) {
			return "", NewPayloadTooLargeError(o.cfg.MaxUploadBytes)
		}
		return "", NewOrchError(INVALID_INPUT, "failed to read uploaded file", copyErr)
	}
	if closeErr != nil {
		return "", NewOrchError(INTERNAL, "failed to write temp file", closeErr)
	}
	if o.cfg.MaxUploadBytes > 0 && n > o.cfg.MaxUploadBytes {
		return "", NewPayloadTooLargeError(o.cfg.MaxUploadBytes)
	}
	return f.Name(), nil
}

// slice materializes each window as its own file on a bounded pool, keeping window order.
func (o *Orchestrator) slice(ctx context.Context, wavPath string, windows []chunker.Window, tmp *artifacts) ([]chunker.ChunkWindow, error) {
	chunks := make([]chunker.ChunkWindow, len(windows))
	if !chunker.NeedsSlicing(windows) {
		chunks[0] = chunker.ChunkWindow{Window: windows[0], Path: wavPath}
		return chunks, nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.SliceConcurrency)
	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			path, err := o.normalizer.ExtractSegment(gctx, wavPath, w.StartMs, w.EndMs)
			metrics.RecordChunkProcessed("slice", err == nil)
			if err != nil {
				return fmt.Errorf("%s: %w", w, err)
			}
			tmp.add(path)
			chunks[i] = chunker.ChunkWindow{Window: w, Path: path}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, NewFFmpegError("failed to slice audio", err)
	}
	metrics.RecordDuration("slice", time.Since(start))
	return chunks, nil
}

// infer submits the chunks in order and awaits each before submitting the next.
func (o *Orchestrator) infer(ctx context.Context, log *slog.Logger, chunks []chunker.ChunkWindow) ([]Segment, error) {
	segments := make([]Segment, 0, len(chunks))
	for _, c := range chunks {
		start := time.Now()
		res, err := worker.Submit(ctx, o.worker, c.String(), func(runCtx context.Context) (*whisper.TranscriptionResult, error) {
			return o.model.Transcribe(runCtx, c.Path)
		})
		if err != nil {
			metrics.RecordChunkProcessed("asr", false)
			metrics.RecordError("asr", string(INFERENCE_FAILED))
			logger.LogAudioProcessing(log, "asr", "chunk_failed", c.Index, time.Since(start).Milliseconds(), string(INFERENCE_FAILED))
			return nil, NewInferenceError(c.Index, err)
		}
		metrics.RecordChunkProcessed("asr", true)
		logger.LogAudioProcessing(log, "asr", "chunk_done", c.Index, time.Since(start).Milliseconds(), "")

		segments = append(segments, Segment{
			Start: c.StartSeconds(),
			End:   c.EndSeconds(),
			Text:  norm.NFC.String(res.FullText()),
		})
	}
	return segments, nil
}

// storePlayback uploads the normalized audio. Any failure yields nil.
func (o *Orchestrator) storePlayback(ctx context.Context, log *slog.Logger, wavPath string) *string {
	if o.uploader == nil {
		log.Warn("playback requested but no storage provider is configured")
		return nil
	}
	obj, err := o.uploader.Upload(ctx, wavPath)
	if err != nil {
		metrics.RecordError("storage", "UPLOAD_FAILED")
		log.Warn("playback upload failed", "provider", o.uploader.Name(), "error", err)
		return nil
	}
	return &obj.URL
}

// Stitch joins segment texts with single spaces and trims the result.
func Stitch(segments []Segment) string {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

// sanitizeExt keeps a short extension from a client-supplied filename.
func sanitizeExt(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}
