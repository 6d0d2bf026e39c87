package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/houzhh15/asr-gateway/cmd/server/internal/middleware"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator/worker"
)

// RouterDeps 路由所需的依赖
type RouterDeps struct {
	Transcriber    Transcriber
	MaxUploadBytes int64
	ModelID        string
	Worker         *worker.Worker
	Checks         []StatusSource
	JWTSecret      string // 为空时 /transcribe 不需要鉴权
}

// NewRouter 注册全部路由
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", HandleHealth())
	r.GET("/readiness", HandleReadiness(deps.ModelID, deps.Worker, deps.Checks...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/transcribe",
		middleware.JWTAuth(deps.JWTSecret),
		HandleTranscribe(deps.Transcriber, deps.MaxUploadBytes))

	return r
}
