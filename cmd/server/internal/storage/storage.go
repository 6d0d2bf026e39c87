// Package storage uploads normalized audio for later playback.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Providers accepted by New.
const (
	ProviderNone       = "none"
	ProviderCloudinary = "cloudinary"
	ProviderS3         = "s3"
)

// Object is the stored artifact as seen by clients.
type Object struct {
	// URL is the playback reference returned to the caller.
	URL string `json:"url"`
	// Key is the provider-side identifier (public id or object key).
	Key string `json:"key"`
}

// Uploader stores a local file and returns a playback reference.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (*Object, error)
	Name() string
}

// Config selects an Uploader.
type Config struct {
	Provider string
	// Folder is the Cloudinary folder or the S3 key prefix.
	Folder string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PresignTTL      time.Duration
}

// New returns the configured uploader, or nil when Provider is "none" or empty.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Folder == "" {
		cfg.Folder = "phowhisper/raw"
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return nil, nil
	case ProviderCloudinary:
		u, err := NewCloudinaryUploader(cfg, logger)
		if err != nil {
			return nil, err
		}
		return u, nil
	case ProviderS3:
		u, err := NewS3Uploader(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// objectKey builds "<folder>/<uuid><ext>" for localPath.
func objectKey(folder, localPath string) string {
	return path.Join(folder, uuid.NewString()+filepath.Ext(localPath))
}
