package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/houzhh15/asr-gateway/cmd/server/internal/api"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/config"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/fetch"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/health"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/worker"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/storage"
	"github.com/houzhh15/asr-gateway/pkg/dependency"
	"github.com/houzhh15/asr-gateway/pkg/logger"
)

const (
	healthCheckInterval = 30 * time.Second
	healthFailThreshold = 3
	inferenceTimeout    = 5 * time.Minute
	shutdownTimeout     = 30 * time.Second
)

func main() {
	// .env 可选，已存在的环境变量优先
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logInstance, err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Environment: loggerEnv(cfg),
		WithSource:  !cfg.IsProduction(),
		FilePath:    cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	appLogger := logInstance.With("component", "asr-server")

	// Validate configuration
	if err := config.ValidateConfig(cfg); err != nil {
		appLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	appLogger.Info(cfg.PrintConfig())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := os.MkdirAll(cfg.Audio.TempDir, 0o755); err != nil {
		appLogger.Error("failed to create temp dir", "path", cfg.Audio.TempDir, "error", err)
		os.Exit(1)
	}

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	// Audio toolchain
	audio, err := dependency.NewClient(dependency.ExecutorConfig{
		Mode:       dependency.ExecutionMode(cfg.Dependency.Mode),
		ServiceURL: cfg.Dependency.ServiceURL,
		OutputDir:  cfg.Audio.TempDir,
		LocalBinaryPaths: map[string]string{
			"ffmpeg":  cfg.Dependency.FFmpegBin,
			"ffprobe": cfg.Dependency.FFprobeBin,
		},
		DefaultTimeout:  cfg.Dependency.Timeout,
		AllowedCommands: []string{"ffmpeg", "ffprobe"},
	})
	if err != nil {
		appLogger.Error("failed to create audio client", "error", err)
		os.Exit(1)
	}

	// Model, loaded lazily on first use or first health check
	model := whisper.NewModel(whisper.BackendConfig{
		Backend:     cfg.Whisper.Backend,
		APIURL:      cfg.Whisper.APIURL,
		ProgramPath: cfg.Whisper.ProgramPath,
		ModelPath:   cfg.Whisper.ModelPath,
		Device:      cfg.Whisper.Device,
	}, whisper.TranscribeOptions{
		Model:       cfg.Whisper.Model,
		Language:    cfg.Whisper.Language,
		Temperature: cfg.Whisper.Temperature,
		Timeout:     inferenceTimeout,
	}, logInstance)

	inference := worker.New(worker.Config{
		Concurrency: cfg.Whisper.InferenceWorkers,
		QueueSize:   cfg.Whisper.QueueSize,
	}, logInstance)
	inference.Start(rootCtx)

	modelHealth := health.NewHealthChecker(model, healthCheckInterval, healthFailThreshold, logInstance)
	ffmpegHealth := health.NewHealthChecker(health.ProbeFunc{
		ProbeName: "ffmpeg",
		Check:     audio.HealthCheck,
	}, healthCheckInterval, healthFailThreshold, logInstance)
	go modelHealth.Start(rootCtx)
	go ffmpegHealth.Start(rootCtx)

	uploader, err := storage.New(rootCtx, storage.Config{
		Provider:            cfg.Storage.Provider,
		Folder:              cfg.Storage.Folder,
		CloudinaryCloudName: cfg.Storage.Cloudinary.CloudName,
		CloudinaryAPIKey:    cfg.Storage.Cloudinary.APIKey,
		CloudinaryAPISecret: cfg.Storage.Cloudinary.APISecret,
		S3Bucket:            cfg.Storage.S3.Bucket,
		S3Region:            cfg.Storage.S3.Region,
		S3Endpoint:          cfg.Storage.S3.Endpoint,
		S3AccessKeyID:       cfg.Storage.S3.AccessKeyID,
		S3SecretAccessKey:   cfg.Storage.S3.SecretAccessKey,
		S3PresignTTL:        cfg.Storage.S3.PresignTTL,
	}, logInstance)
	if err != nil {
		appLogger.Error("failed to create playback storage", "provider", cfg.Storage.Provider, "error", err)
		os.Exit(1)
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:  cfg.Audio.FetchTimeout,
		MaxBytes: cfg.MaxUploadBytes(),
		TempDir:  cfg.Audio.TempDir,
	}, logInstance)

	orch := orchestrator.New(orchestrator.Config{
		TempDir:          cfg.Audio.TempDir,
		MaxUploadBytes:   cfg.MaxUploadBytes(),
		ChunkMs:          cfg.Audio.ChunkMs,
		ChunkOverlapMs:   cfg.Audio.ChunkOverlapMs,
		SliceConcurrency: cfg.Audio.SliceConcurrency,
	}, audio, model, inference, fetcher, uploader, logInstance)

	r := api.NewRouter(api.RouterDeps{
		Transcriber:    orch,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		ModelID:        model.ID(),
		Worker:         inference,
		Checks:         []api.StatusSource{modelHealth, ffmpegHealth},
		JWTSecret:      cfg.Security.JWTSecret,
	})

	// Create HTTP server with graceful shutdown
	serverAddr := cfg.GetServerAddr()
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("server starting", "addr", serverAddr, "env", cfg.Server.Env, "model", model.ID())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	appLogger.Info("shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// in-flight requests finish before the worker stops
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
	}
	modelHealth.Stop()
	ffmpegHealth.Stop()
	inference.Stop()
	stopRoot()
	appLogger.Info("server shutdown complete")
}

// loggerEnv 将 ENV 映射为 logger 的环境名，生产环境输出 JSON
func loggerEnv(cfg *config.Config) string {
	if cfg.IsProduction() {
		return "prod"
	}
	return cfg.Server.Env
}
