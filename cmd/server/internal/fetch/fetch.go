// Package fetch downloads remote audio (typically a Cloudinary asset URL) to a local temp file.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidURL = errors.New("remote url must be an absolute http or https url")
	ErrBadStatus  = errors.New("remote server returned a non-200 status")
	ErrTooLarge   = errors.New("remote file exceeds the size limit")
)

// Config controls a Fetcher.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	TempDir  string
}

// Fetcher downloads remote audio files.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Fetcher. A zero Timeout defaults to 60 seconds.
func New(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "fetch"),
	}
}

// Fetch downloads rawURL into a new temp file and returns its path. The caller removes it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	if f.cfg.MaxBytes > 0 && resp.ContentLength > f.cfg.MaxBytes {
		return "", fmt.Errorf("%w: content-length %d > %d", ErrTooLarge, resp.ContentLength, f.cfg.MaxBytes)
	}

	out, err := os.CreateTemp(f.cfg.TempDir, "remote-"+uuid.NewString()+"-*"+path.Ext(u.Path))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	outPath := out.Name()

	var body io.Reader = resp.Body
	if f.cfg.MaxBytes > 0 {
		// one extra byte distinguishes "exactly at the limit" from "over it"
		body = io.LimitReader(resp.Body, f.cfg.MaxBytes+1)
	}
	n, copyErr := io.Copy(out, body)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("download interrupted: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("failed to write temp file: %w", closeErr)
	case f.cfg.MaxBytes > 0 && n > f.cfg.MaxBytes:
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.cfg.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(outPath)
		return "", err
	}

	f.logger.Info("remote audio downloaded",
		"host", u.Host,
		"bytes", n,
		"duration_ms", time.Since(start).Milliseconds())
	return outPath, nil
}
