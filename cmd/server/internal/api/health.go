package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/health"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/worker"
)

// StatusSource 提供某个依赖的最新健康状态。*health.HealthChecker 实现该接口
type StatusSource interface {
	GetStatus() health.ServiceStatus
}

// ReadinessResponse /readiness 响应
type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Model       string                 `json:"model"`
	WorkerState string                 `json:"worker_state"`
	QueueDepth  int                    `json:"queue_depth"`
	Checks      []health.ServiceStatus `json:"checks"`
}

// HandleHealth 存活检查，只要进程能响应即返回 200
func HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// HandleReadiness 就绪检查：推理队列已启动且所有探针健康时返回 200，否则 503
//
// 响应格式:
//
//	{
//	  "ready": true,
//	  "model": "vinai/PhoWhisper-base",
//	  "worker_state": "idle",
//	  "queue_depth": 0,
//	  "checks": [{"name": "go-whisper", "is_healthy": true, ...}]
//	}
func HandleReadiness(modelID string, w *worker.Worker, sources ...StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := ReadinessResponse{
			Ready:  w != nil && w.Started(),
			Model:  modelID,
			Checks: make([]health.ServiceStatus, 0, len(sources)),
		}
		if w != nil {
			resp.WorkerState = string(w.State())
			resp.QueueDepth = w.QueueDepth()
		}

		for _, s := range sources {
			status := s.GetStatus()
			if !status.IsHealthy {
				resp.Ready = false
			}
			resp.Checks = append(resp.Checks, status)
		}

		code := http.StatusOK
		if !resp.Ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	}
}
