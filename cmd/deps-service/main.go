package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/houzhh15/asr-gateway/pkg/dependency"
	"github.com/houzhh15/asr-gateway/pkg/logger"
)

func main() {
	configPath := flag.String("config", "/app/config/commands.yaml", "Path to config file")
	port := flag.Int("port", 8080, "HTTP server port")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Command Executor Service v%s\n", Version)
		os.Exit(0)
	}

	log, err := logger.Init(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: os.Getenv("ENV"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	log = log.With("component", "deps-service")

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	if os.Getenv("ENV") == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	executor := dependency.NewLocalExecutor(config.ExecutorConfig())
	auditPath := config.Security.AuditLogPath
	if auditPath == "" {
		auditPath = "/var/log/deps-service/audit.log"
	}
	handler := NewHandler(config, executor, NewAuditLogger(auditPath), NewConcurrencyLimiter(config))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Info("starting command executor service", "port", *port, "commands", len(config.Commands))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-stopChan

	log.Info("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	log.Info("server stopped")
}
