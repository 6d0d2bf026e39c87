package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 统一配置结构，启动时加载一次，之后只读
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Audio      AudioConfig      `yaml:"audio"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	Dependency DependencyConfig `yaml:"dependency"`
	Storage    StorageConfig    `yaml:"storage"`
	Security   SecurityConfig   `yaml:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Env  string `yaml:"env"` // dev, staging, prod
	Port string `yaml:"port"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // 可选滚动日志文件
}

// AudioConfig 上传、切片与下载配置
type AudioConfig struct {
	TempDir          string        `yaml:"temp_dir"`
	MaxUploadMB      int64         `yaml:"max_upload_mb"`
	ChunkMs          int64         `yaml:"chunk_ms"`
	ChunkOverlapMs   int64         `yaml:"chunk_overlap_ms"`
	SliceConcurrency int           `yaml:"slice_concurrency"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
}

// WhisperConfig 模型与推理队列配置
type WhisperConfig struct {
	Backend          string  `yaml:"backend"` // go-whisper, local, mock
	Model            string  `yaml:"model"`
	APIURL           string  `yaml:"api_url"`
	ProgramPath      string  `yaml:"program_path"`
	ModelPath        string  `yaml:"model_path"`
	Language         string  `yaml:"language"`
	Temperature      float64 `yaml:"temperature"`
	Device           string  `yaml:"device"` // auto, cuda, cpu
	InferenceWorkers int     `yaml:"inference_workers"`
	QueueSize        int     `yaml:"queue_size"`
}

// DependencyConfig ffmpeg/ffprobe 执行配置
type DependencyConfig struct {
	Mode       string        `yaml:"mode"` // local, remote, fallback
	ServiceURL string        `yaml:"service_url"`
	FFmpegBin  string        `yaml:"ffmpeg_bin"`
	FFprobeBin string        `yaml:"ffprobe_bin"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StorageConfig 回放音频存储配置
type StorageConfig struct {
	Provider   string           `yaml:"provider"` // none, cloudinary, s3
	Folder     string           `yaml:"folder"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	S3         S3Config         `yaml:"s3"`
}

// CloudinaryConfig Cloudinary 凭证
type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// S3Config S3 兼容存储配置
type S3Config struct {
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	PresignTTL      time.Duration `yaml:"presign_ttl"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // 为空时不启用鉴权
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Env: "dev", Port: "8000"},
		Log:    LogConfig{Level: "info"},
		Audio: AudioConfig{
			TempDir:          os.TempDir(),
			MaxUploadMB:      50,
			ChunkMs:          30000,
			ChunkOverlapMs:   1000,
			SliceConcurrency: 2,
			FetchTimeout:     60 * time.Second,
		},
		Whisper: WhisperConfig{
			Backend:          "go-whisper",
			Model:            "vinai/PhoWhisper-base",
			APIURL:           "http://localhost:8082",
			Language:         "vi",
			Device:           "auto",
			InferenceWorkers: 1,
			QueueSize:        64,
		},
		Dependency: DependencyConfig{
			Mode:       "local",
			FFmpegBin:  "ffmpeg",
			FFprobeBin: "ffprobe",
			Timeout:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Provider: "none",
			Folder:   "phowhisper/raw",
			S3:       S3Config{PresignTTL: 24 * time.Hour},
		},
	}
}

// LoadConfig 加载配置：默认值 → YAML 文件（ASR_CONFIG_FILE，可选）→ 环境变量
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ASR_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile 读取 YAML 文件覆盖默认值
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv 用已设置的环境变量覆盖配置
func (c *Config) applyEnv() error {
	e := &envReader{}

	e.setString("ENV", &c.Server.Env)
	e.setString("PORT", &c.Server.Port)
	e.setString("LOG_LEVEL", &c.Log.Level)
	e.setString("LOG_FILE", &c.Log.File)

	e.setString("TMP_DIR", &c.Audio.TempDir)
	e.setInt64("MAX_UPLOAD_MB", &c.Audio.MaxUploadMB)
	e.setInt64("CHUNK_MS", &c.Audio.ChunkMs)
	e.setInt64("CHUNK_OVERLAP_MS", &c.Audio.ChunkOverlapMs)
	e.setInt("SLICE_CONCURRENCY", &c.Audio.SliceConcurrency)
	e.setDuration("FETCH_TIMEOUT", &c.Audio.FetchTimeout)

	e.setString("WHISPER_BACKEND", &c.Whisper.Backend)
	e.setString("WHISPER_MODEL", &c.Whisper.Model)
	e.setString("WHISPER_API_URL", &c.Whisper.APIURL)
	e.setString("WHISPER_PROGRAM_PATH", &c.Whisper.ProgramPath)
	e.setString("WHISPER_MODEL_PATH", &c.Whisper.ModelPath)
	e.setString("WHISPER_LANGUAGE", &c.Whisper.Language)
	e.setFloat("WHISPER_TEMPERATURE", &c.Whisper.Temperature)
	e.setInt("INFERENCE_WORKERS", &c.Whisper.InferenceWorkers)
	e.setInt("INFERENCE_QUEUE_SIZE", &c.Whisper.QueueSize)

	// USE_GPU=0 强制 CPU；DEVICE 显式设置时优先
	useGPU := true
	if e.setBool("USE_GPU", &useGPU) && !useGPU {
		c.Whisper.Device = "cpu"
	}
	e.setString("DEVICE", &c.Whisper.Device)

	e.setString("DEPENDENCY_MODE", &c.Dependency.Mode)
	e.setString("DEPS_SERVICE_URL", &c.Dependency.ServiceURL)
	e.setString("FFMPEG_BIN", &c.Dependency.FFmpegBin)
	e.setString("FFPROBE_BIN", &c.Dependency.FFprobeBin)
	e.setDuration("FFMPEG_TIMEOUT", &c.Dependency.Timeout)

	e.setString("STORAGE_PROVIDER", &c.Storage.Provider)
	e.setString("PLAYBACK_FOLDER", &c.Storage.Folder)
	e.setString("CLOUDINARY_CLOUD_NAME", &c.Storage.Cloudinary.CloudName)
	e.setString("CLOUDINARY_API_KEY", &c.Storage.Cloudinary.APIKey)
	e.setString("CLOUDINARY_API_SECRET", &c.Storage.Cloudinary.APISecret)
	e.setString("S3_BUCKET", &c.Storage.S3.Bucket)
	e.setString("S3_REGION", &c.Storage.S3.Region)
	e.setString("S3_ENDPOINT", &c.Storage.S3.Endpoint)
	e.setString("S3_ACCESS_KEY_ID", &c.Storage.S3.AccessKeyID)
	e.setString("S3_SECRET_ACCESS_KEY", &c.Storage.S3.SecretAccessKey)
	e.setDuration("S3_PRESIGN_TTL", &c.Storage.S3.PresignTTL)

	e.setString("AUTH_JWT_SECRET", &c.Security.JWTSecret)

	if len(e.errs) > 0 {
		return fmt.Errorf("invalid environment:\n  - %s", strings.Join(e.errs, "\n  - "))
	}
	return nil
}

// ValidateConfig 验证配置的有效性
func ValidateConfig(cfg *Config) error {
	var errors []string
	add := func(format string, args ...any) {
		errors = append(errors, fmt.Sprintf(format, args...))
	}

	// 1. 端口与环境
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		add("invalid PORT value: %s (must be 1-65535)", cfg.Server.Port)
	}
	if !slices.Contains([]string{"dev", "development", "staging", "prod", "production"}, cfg.Server.Env) {
		add("invalid ENV: %s (must be: dev, development, staging, prod, production)", cfg.Server.Env)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.Log.Level) {
		add("invalid LOG_LEVEL: %s (must be: debug, info, warn, error)", cfg.Log.Level)
	}

	// 2. 音频切片
	if cfg.Audio.MaxUploadMB <= 0 {
		add("MAX_UPLOAD_MB must be positive, got %d", cfg.Audio.MaxUploadMB)
	}
	if cfg.Audio.ChunkMs <= 0 {
		add("CHUNK_MS must be positive, got %d", cfg.Audio.ChunkMs)
	}
	if cfg.Audio.ChunkOverlapMs < 0 || cfg.Audio.ChunkOverlapMs >= cfg.Audio.ChunkMs {
		add("CHUNK_OVERLAP_MS must be in [0, CHUNK_MS), got %d", cfg.Audio.ChunkOverlapMs)
	}
	if cfg.Audio.SliceConcurrency < 1 {
		add("SLICE_CONCURRENCY must be at least 1, got %d", cfg.Audio.SliceConcurrency)
	}
	if cfg.Audio.FetchTimeout <= 0 {
		add("FETCH_TIMEOUT must be positive")
	}

	// 3. 模型
	switch cfg.Whisper.Backend {
	case "go-whisper":
		if cfg.Whisper.APIURL == "" {
			add("WHISPER_API_URL is required for the go-whisper backend")
		}
	case "local":
		if cfg.Whisper.ProgramPath == "" {
			add("WHISPER_PROGRAM_PATH is required for the local backend")
		}
	case "mock":
	default:
		add("invalid WHISPER_BACKEND: %s (must be: go-whisper, local, mock)", cfg.Whisper.Backend)
	}
	if cfg.Whisper.Model == "" {
		add("WHISPER_MODEL is required")
	}
	if !slices.Contains([]string{"auto", "cuda", "cpu"}, cfg.Whisper.Device) {
		add("invalid DEVICE: %s (must be: auto, cuda, cpu)", cfg.Whisper.Device)
	}
	if cfg.Whisper.Temperature < 0 || cfg.Whisper.Temperature > 1 {
		add("WHISPER_TEMPERATURE must be in [0, 1], got %v", cfg.Whisper.Temperature)
	}
	if cfg.Whisper.InferenceWorkers < 1 {
		add("INFERENCE_WORKERS must be at least 1, got %d", cfg.Whisper.InferenceWorkers)
	}
	if cfg.Whisper.QueueSize < 1 {
		add("INFERENCE_QUEUE_SIZE must be at least 1, got %d", cfg.Whisper.QueueSize)
	}

	// 4. ffmpeg 执行模式
	switch cfg.Dependency.Mode {
	case "local":
	case "remote", "fallback":
		if cfg.Dependency.ServiceURL == "" {
			add("DEPS_SERVICE_URL is required for DEPENDENCY_MODE=%s", cfg.Dependency.Mode)
		}
	default:
		add("invalid DEPENDENCY_MODE: %s (must be: local, remote, fallback)", cfg.Dependency.Mode)
	}
	if cfg.Dependency.Timeout <= 0 {
		add("FFMPEG_TIMEOUT must be positive")
	}

	// 5. 存储
	switch cfg.Storage.Provider {
	case "", "none":
	case "cloudinary":
		cl := cfg.Storage.Cloudinary
		if cl.CloudName == "" || cl.APIKey == "" || cl.APISecret == "" {
			add("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for STORAGE_PROVIDER=cloudinary")
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			add("S3_BUCKET is required for STORAGE_PROVIDER=s3")
		}
	default:
		add("invalid STORAGE_PROVIDER: %s (must be: none, cloudinary, s3)", cfg.Storage.Provider)
	}

	// 6. 鉴权（可选）
	if s := cfg.Security.JWTSecret; s != "" && len(s) < 32 {
		add("AUTH_JWT_SECRET must be at least 32 characters long")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// IsProduction 判断是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Server.Env == "prod" || c.Server.Env == "production"
}

// GetServerAddr 获取服务器监听地址
func (c *Config) GetServerAddr() string {
	return ":" + c.Server.Port
}

// MaxUploadBytes 上传大小上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	return c.Audio.MaxUploadMB * 1024 * 1024
}

// PrintConfig 打印配置（脱敏）
func (c *Config) PrintConfig() string {
	return fmt.Sprintf(`Configuration Loaded:
  Environment: %s
  Server Port: %s
  Logging:
    - Level: %s
    - File: %s
  Audio:
    - Temp Dir: %s
    - Max Upload: %d MB
    - Chunk: %d ms (overlap %d ms)
    - Slice Concurrency: %d
  Whisper:
    - Backend: %s
    - Model: %s
    - API URL: %s
    - Device: %s
    - Workers: %d (queue %d)
  Dependency:
    - Mode: %s
    - Service URL: %s
  Storage:
    - Provider: %s
    - Folder: %s
    - Cloudinary Secret: %s
    - S3 Secret: %s
  Security:
    - JWT Secret: %s`,
		c.Server.Env,
		c.Server.Port,
		c.Log.Level,
		orNotSet(c.Log.File),
		c.Audio.TempDir,
		c.Audio.MaxUploadMB,
		c.Audio.ChunkMs, c.Audio.ChunkOverlapMs,
		c.Audio.SliceConcurrency,
		c.Whisper.Backend,
		c.Whisper.Model,
		c.Whisper.APIURL,
		c.Whisper.Device,
		c.Whisper.InferenceWorkers, c.Whisper.QueueSize,
		c.Dependency.Mode,
		orNotSet(c.Dependency.ServiceURL),
		c.Storage.Provider,
		c.Storage.Folder,
		maskSecret(c.Storage.Cloudinary.APISecret),
		maskSecret(c.Storage.S3.SecretAccessKey),
		maskSecret(c.Security.JWTSecret),
	)
}

// 辅助函数

// envReader 读取环境变量并收集解析错误
type envReader struct {
	errs []string
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a number", key, v))
			return
		}
		*dst = f
	}
}

// setBool 返回变量是否已设置
func (e *envReader) setBool(key string, dst *bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return false
	}
	*dst = b
	return true
}

// setDuration 支持 "90s" 形式，纯数字按秒处理
func (e *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}

func orNotSet(v string) string {
	if v == "" {
		return "<not set>"
	}
	return v
}

// maskSecret 对敏感信息进行脱敏
func maskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}
