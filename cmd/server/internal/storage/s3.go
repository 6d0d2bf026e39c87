package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader stores files in an S3-compatible bucket and returns presigned GET URLs.
type S3Uploader struct {
	bucket  string
	prefix  string
	ttl     time.Duration
	client  *s3.Client
	presign *s3.PresignClient
	logger  *slog.Logger
}

// NewS3Uploader loads AWS configuration (static keys when provided, otherwise the default
// credential chain) and builds the client. A custom endpoint switches to path-style
// addressing for MinIO-like servers.
func NewS3Uploader(ctx context.Context, cfg Config, logger *slog.Logger) (*S3Uploader, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.S3PresignTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &S3Uploader{
		bucket:  cfg.S3Bucket,
		prefix:  cfg.Folder,
		ttl:     ttl,
		client:  client,
		presign: s3.NewPresignClient(client),
		logger:  logger.With("component", "storage", "provider", ProviderS3),
	}, nil
}

func (u *S3Uploader) Name() string { return ProviderS3 }

// Upload puts localPath under a fresh key and presigns a GET for it.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (*Object, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	key := objectKey(u.prefix, localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("audio/wav"),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put object failed: %w", err)
	}

	req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.ttl))
	if err != nil {
		return nil, fmt.Errorf("s3 presign failed: %w", err)
	}

	u.logger.Info("audio uploaded", "bucket", u.bucket, "key", key, "bytes", info.Size())
	return &Object{URL: req.URL, Key: key}, nil
}
