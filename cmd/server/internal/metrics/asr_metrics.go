package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AudioChunksTotal 音频切片处理总数计数器
	// Labels: component (slice/asr), status (success/error)
	AudioChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asr_audio_chunks_total",
			Help: "Total number of audio chunks processed by component",
		},
		[]string{"component", "status"},
	)

	// AudioErrorsTotal 音频处理错误总数计数器
	// Labels: component, error_code (FFMPEG_FAILED/INFERENCE_FAILED/...)
	AudioErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asr_audio_errors_total",
			Help: "Total number of audio processing errors by component and error code",
		},
		[]string{"component", "error_code"},
	)

	// ModelReady 模型就绪状态（0=未加载，1=已加载）
	ModelReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asr_model_ready",
			Help: "Transcription model load status (0=not loaded, 1=loaded)",
		},
	)

	// AudioProcessingDuration 音频处理耗时直方图（秒）
	// Labels: component (normalize/slice/inference/request)
	AudioProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asr_audio_processing_duration_seconds",
			Help:    "Audio processing duration in seconds by component",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"component"},
	)

	// InferenceQueueDepth 推理队列中等待的任务数
	InferenceQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asr_inference_queue_depth",
			Help: "Number of inference jobs waiting for the worker",
		},
	)

	// InferenceQueueWait 任务从入队到开始执行的等待时间（秒）
	InferenceQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asr_inference_queue_wait_seconds",
			Help:    "Time inference jobs spent queued before running",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	// InferenceJobsTotal 推理任务执行结果计数
	// Labels: status (success/error/panic)
	InferenceJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asr_inference_jobs_total",
			Help: "Total number of inference jobs executed by status",
		},
		[]string{"status"},
	)

	// TranscribeRequestsTotal /transcribe 请求结果计数
	// Labels: source (upload/remote), code (OK/INVALID_INPUT/...)
	TranscribeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asr_transcribe_requests_total",
			Help: "Total number of transcription requests by source and result code",
		},
		[]string{"source", "code"},
	)
)

// RecordChunkProcessed 记录音频切片处理完成
func RecordChunkProcessed(component string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	AudioChunksTotal.WithLabelValues(component, status).Inc()
}

// RecordError 记录音频处理错误
func RecordError(component, errorCode string) {
	AudioErrorsTotal.WithLabelValues(component, errorCode).Inc()
}

// SetModelReady 设置模型就绪状态
func SetModelReady(ready bool) {
	if ready {
		ModelReady.Set(1)
	} else {
		ModelReady.Set(0)
	}
}

// RecordDuration 记录音频处理耗时
func RecordDuration(component string, d time.Duration) {
	AudioProcessingDuration.WithLabelValues(component).Observe(d.Seconds())
}

// SetQueueDepth 更新推理队列深度
func SetQueueDepth(depth int) {
	InferenceQueueDepth.Set(float64(depth))
}

// RecordInferenceJob 记录一次推理任务（等待时间 + 结果状态）
func RecordInferenceJob(wait time.Duration, status string) {
	InferenceQueueWait.Observe(wait.Seconds())
	InferenceJobsTotal.WithLabelValues(status).Inc()
}

// RecordRequest 记录一次转写请求
func RecordRequest(source, code string) {
	TranscribeRequestsTotal.WithLabelValues(source, code).Inc()
}
