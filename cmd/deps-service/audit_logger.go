package main

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/houzhh15/asr-gateway/pkg/dependency"
)

// AuditLogger records every execution attempt as one JSON line.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger writes to logPath with size based rotation.
func NewAuditLogger(logPath string) *AuditLogger {
	return newAuditLogger(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	})
}

func newAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// LogExecution records a command that was run, successfully or not.
func (a *AuditLogger) LogExecution(req dependency.CommandRequest, resp dependency.CommandResponse, err error, sourceIP string) {
	result := "success"
	if err != nil || resp.ExitCode != 0 {
		result = "failed"
	}
	attrs := []any{
		"command", req.Command,
		"args", req.Args,
		"result", result,
		"exit_code", resp.ExitCode,
		"duration_ms", resp.DurationMs,
		"source_ip", sourceIP,
	}
	if err != nil {
		attrs = append(attrs, "error_message", err.Error())
	}
	a.logger.Info("audit", attrs...)
}

// LogRejection records a request refused before execution.
func (a *AuditLogger) LogRejection(req dependency.CommandRequest, reason string, sourceIP string) {
	a.logger.Warn("audit",
		"command", req.Command,
		"args", req.Args,
		"result", "rejected",
		"rejection_reason", reason,
		"source_ip", sourceIP,
	)
}
