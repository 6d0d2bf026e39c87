package main

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/houzhh15/asr-gateway/pkg/dependency"
	"github.com/houzhh15/asr-gateway/pkg/logger"
)

const Version = "1.1.0"

// Handler serves the remote execution API consumed by dependency.RemoteExecutor.
type Handler struct {
	config      *Config
	execConfig  dependency.ExecutorConfig
	executor    dependency.DependencyExecutor
	auditLogger *AuditLogger
	limiter     *ConcurrencyLimiter
}

// NewHandler registers POST /api/v1/execute and GET /api/v1/health.
func NewHandler(config *Config, executor dependency.DependencyExecutor, auditLogger *AuditLogger, limiter *ConcurrencyLimiter) *gin.Engine {
	h := &Handler{
		config:      config,
		execConfig:  config.ExecutorConfig(),
		executor:    executor,
		auditLogger: auditLogger,
		limiter:     limiter,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/api/v1/execute", h.HandleExecute)
	r.GET("/api/v1/health", h.HandleHealth)
	return r
}

// HandleExecute validates, throttles, runs and audits one command.
// A command that ran and exited non-zero is reported with 200 and success=false.
func (h *Handler) HandleExecute(c *gin.Context) {
	var req dependency.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "failed to decode JSON: "+err.Error())
		return
	}

	cmdConfig, err := h.validate(req)
	if err != nil {
		h.auditLogger.LogRejection(req, err.Error(), c.ClientIP())
		respondError(c, http.StatusBadRequest, "invalid_arguments", err.Error())
		return
	}
	if req.Timeout <= 0 || req.Timeout > cmdConfig.Timeout {
		req.Timeout = cmdConfig.Timeout
	}

	if err := h.limiter.Acquire(c.Request.Context(), req.Command); err != nil {
		respondError(c, http.StatusServiceUnavailable, "service_busy", "max concurrent executions reached")
		return
	}
	defer h.limiter.Release(req.Command)

	resp, err := h.executor.ExecuteCommand(c.Request.Context(), req)
	h.auditLogger.LogExecution(req, resp, err, c.ClientIP())

	if err != nil && resp.ExitCode <= 0 {
		logger.L().Error("command failed to run", "command", req.Command, "error", err)
		respondError(c, http.StatusInternalServerError, "command_failed", err.Error())
		return
	}

	resp.Success = resp.ExitCode == 0 && err == nil
	c.JSON(http.StatusOK, resp)
}

// HandleHealth reports whether every whitelisted binary resolves.
func (h *Handler) HandleHealth(c *gin.Context) {
	if err := h.executor.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "command-executor",
			"version": Version,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "command-executor",
		"version": Version,
	})
}

func (h *Handler) validate(req dependency.CommandRequest) (*CommandConfig, error) {
	cmdConfig, err := h.config.GetCommandConfig(req.Command)
	if err != nil {
		return nil, err
	}
	if len(req.Args) > h.config.Security.MaxArgs {
		return nil, fmt.Errorf("too many arguments: %d (max %d)", len(req.Args), h.config.Security.MaxArgs)
	}
	if err := dependency.ValidateCommandRequest(req, h.execConfig); err != nil {
		return nil, err
	}

	volume := filepath.Clean(h.config.Security.SharedVolumePath)
	for _, arg := range req.Args {
		if !filepath.IsAbs(arg) {
			continue
		}
		clean := filepath.Clean(arg)
		if clean != volume && !strings.HasPrefix(clean, volume+string(filepath.Separator)) {
			return nil, fmt.Errorf("%w: %s is outside %s", dependency.ErrUnsafeArgument, arg, volume)
		}
	}
	return cmdConfig, nil
}

// respondError keeps the CommandResponse shape so remote clients can surface the reason.
func respondError(c *gin.Context, statusCode int, errorType, detail string) {
	c.JSON(statusCode, gin.H{
		"success":   false,
		"exit_code": -1,
		"stderr":    detail,
		"error":     errorType,
	})
}
