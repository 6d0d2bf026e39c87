package orchestrator

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode 表示转写流水线错误类型代码
type ErrorCode string

const (
	// INVALID_INPUT 请求缺少音频来源、同时提供两种来源或远程地址无效
	INVALID_INPUT ErrorCode = "INVALID_INPUT"

	// PAYLOAD_TOO_LARGE 上传或下载的音频超过大小限制
	PAYLOAD_TOO_LARGE ErrorCode = "PAYLOAD_TOO_LARGE"

	// FETCH_FAILED 远程音频下载失败（非 200、网络错误、超时）
	FETCH_FAILED ErrorCode = "FETCH_FAILED"

	// FFMPEG_FAILED 音频标准化、时长探测或切片失败
	FFMPEG_FAILED ErrorCode = "FFMPEG_FAILED"

	// EMPTY_AUDIO 标准化后的音频时长为 0
	EMPTY_AUDIO ErrorCode = "EMPTY_AUDIO"

	// INFERENCE_FAILED 模型推理失败（任一切片失败即整个请求失败）
	INFERENCE_FAILED ErrorCode = "INFERENCE_FAILED"

	// INTERNAL 其他服务端错误（临时目录、上下文取消等）
	INTERNAL ErrorCode = "INTERNAL"
)

// OrchError 表示转写流水线错误
type OrchError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error 实现 error 接口
func (e *OrchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现错误链支持
func (e *OrchError) Unwrap() error {
	return e.Cause
}

// IsClientError 是否为调用方错误（4xx）
func (e *OrchError) IsClientError() bool {
	switch e.Code {
	case INVALID_INPUT, PAYLOAD_TOO_LARGE, FETCH_FAILED, EMPTY_AUDIO:
		return true
	}
	return false
}

// NewOrchError 创建新的流水线错误
func NewOrchError(code ErrorCode, message string, cause error) *OrchError {
	return &OrchError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewInvalidInputError 创建输入错误
func NewInvalidInputError(message string) *OrchError {
	return NewOrchError(INVALID_INPUT, message, nil)
}

// NewPayloadTooLargeError 创建超限错误
func NewPayloadTooLargeError(limit int64) *OrchError {
	return NewOrchError(PAYLOAD_TOO_LARGE, fmt.Sprintf("audio exceeds the %d byte limit", limit), nil)
}

// NewFetchError 创建远程下载错误
func NewFetchError(cause error) *OrchError {
	return NewOrchError(FETCH_FAILED, "failed to fetch remote audio", cause)
}

// NewFFmpegError 创建 FFmpeg 错误
func NewFFmpegError(message string, cause error) *OrchError {
	return NewOrchError(FFMPEG_FAILED, message, cause)
}

// NewEmptyAudioError 创建空音频错误
func NewEmptyAudioError() *OrchError {
	return NewOrchError(EMPTY_AUDIO, "audio contains no samples", nil)
}

// NewInferenceError 创建推理错误
func NewInferenceError(chunk int, cause error) *OrchError {
	return NewOrchError(INFERENCE_FAILED, fmt.Sprintf("transcription of chunk %d failed", chunk), cause)
}

// CodeOf 返回错误码；非 OrchError 视为 INTERNAL
func CodeOf(err error) ErrorCode {
	var oe *OrchError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return INTERNAL
}

// HTTPStatus 将错误映射为 HTTP 状态码
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case INVALID_INPUT, FETCH_FAILED, EMPTY_AUDIO:
		return http.StatusBadRequest
	case PAYLOAD_TOO_LARGE:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
