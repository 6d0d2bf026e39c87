package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/houzhh15/asr-gateway/cmd/server/internal/metrics"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/middleware"
	"github.com/houzhh15/asr-gateway/cmd/server/internal/orchestrator"
	"github.com/houzhh15/asr-gateway/pkg/logger"
)

// multipartSlack 为 multipart 边界和其他表单字段预留的空间
const multipartSlack = 1 << 20

// Transcriber 运行一次转写任务。*orchestrator.Orchestrator 实现该接口
type Transcriber interface {
	Transcribe(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// HandleTranscribe POST /transcribe
//
// 表单字段:
//
//	file            音频文件（与 cloudinary_url 二选一）
//	cloudinary_url  远程音频地址
//	store_playback  是否保存回放音频，默认 false
func HandleTranscribe(svc Transcriber, maxUploadBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+multipartSlack)

		req, cleanup, err := parseTranscribeRequest(c, maxUploadBytes)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			writeTranscribeError(c, req.Source(), err)
			return
		}

		result, err := svc.Transcribe(c.Request.Context(), req)
		if err != nil {
			writeTranscribeError(c, req.Source(), err)
			return
		}

		metrics.RecordRequest(req.Source(), "OK")
		successResponse(c, result)
	}
}

// parseTranscribeRequest 读取表单。返回的 cleanup 关闭已打开的上传文件
func parseTranscribeRequest(c *gin.Context, maxUploadBytes int64) (orchestrator.Request, func(), error) {
	var req orchestrator.Request

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, nil, orchestrator.NewPayloadTooLargeError(maxUploadBytes)
		}
		return req, nil, orchestrator.NewInvalidInputError("malformed form data")
	}

	storePlayback := strings.TrimSpace(c.PostForm("store_playback"))
	if storePlayback != "" {
		v, err := strconv.ParseBool(storePlayback)
		if err != nil {
			return req, nil, orchestrator.NewInvalidInputError("store_playback must be a boolean")
		}
		req.StorePlayback = v
	}

	req.RemoteURL = strings.TrimSpace(c.PostForm("cloudinary_url"))

	header, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return req, nil, nil
	case err != nil:
		return req, nil, orchestrator.NewInvalidInputError("malformed file field")
	case header.Filename == "" && header.Size == 0:
		// 空文件字段按未提供处理
		return req, nil, nil
	case header.Size == 0:
		return req, nil, orchestrator.NewInvalidInputError("uploaded file is empty")
	}

	file, err := header.Open()
	if err != nil {
		return req, nil, orchestrator.NewOrchError(orchestrator.INTERNAL, "failed to open upload", err)
	}
	req.Upload = file
	req.Filename = header.Filename
	req.Size = header.Size
	return req, closer(file), nil
}

func closer(f multipart.File) func() {
	return func() { _ = f.Close() }
}

func writeTranscribeError(c *gin.Context, source string, err error) {
	status := orchestrator.HTTPStatus(err)
	code := string(orchestrator.CodeOf(err))
	metrics.RecordRequest(source, code)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		logger.L().Error("transcription failed",
			"rid", c.GetString(middleware.RequestIDKey),
			"source", source,
			"code", code,
			"error", err)
		internalErrorResponse(c, code)
		return
	}

	var oe *orchestrator.OrchError
	message := err.Error()
	if errors.As(err, &oe) {
		message = oe.Message
	}
	codedErrorResponse(c, status, message, code)
}
