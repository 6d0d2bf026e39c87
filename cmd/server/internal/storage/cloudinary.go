package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryUploadFunc func(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)

// CloudinaryUploader uploads files with resource_type "auto" into a fixed folder.
type CloudinaryUploader struct {
	folder string
	upload cloudinaryUploadFunc
	logger *slog.Logger
}

// NewCloudinaryUploader creates an uploader from API credentials.
func NewCloudinaryUploader(cfg Config, logger *slog.Logger) (*CloudinaryUploader, error) {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, errors.New("cloudinary storage requires cloud name, api key and api secret")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to init cloudinary client: %w", err)
	}
	return newCloudinaryUploader(cfg.Folder, cld.Upload.Upload, logger), nil
}

func newCloudinaryUploader(folder string, upload cloudinaryUploadFunc, logger *slog.Logger) *CloudinaryUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudinaryUploader{
		folder: folder,
		upload: upload,
		logger: logger.With("component", "storage", "provider", ProviderCloudinary),
	}
}

func (u *CloudinaryUploader) Name() string { return ProviderCloudinary }

// Upload sends localPath to Cloudinary and returns its secure URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, localPath string) (*Object, error) {
	resp, err := u.upload(ctx, localPath, uploader.UploadParams{
		Folder:       u.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if resp == nil {
		return nil, errors.New("cloudinary upload returned no result")
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload rejected: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return nil, errors.New("cloudinary upload returned no secure_url")
	}

	u.logger.Info("audio uploaded", "public_id", resp.PublicID, "bytes", resp.Bytes)
	return &Object{URL: resp.SecureURL, Key: resp.PublicID}, nil
}
