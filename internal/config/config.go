package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/estudioia/timeline-render/internal/model"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Render    RenderConfig
	Renderer  ServiceConfig
	Encoder   ServiceConfig
	Storage   StorageConfig
	R2        R2Config
	MinIO     MinIOConfig
	Queue     QueueConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	RenderPerHour int
	ConvertPerMin int
}

type RenderConfig struct {
	MaxConcurrentJobs int
	DefaultFPS        float64
	FrameTickMs       int
	WorkDir           string
	RetentionHours    int
	SnapshotTTLHours  int
	Resolutions       map[string]string // quality tier -> "WxH"
	Compositions      map[string]string // export format -> composition id
}

// ServiceConfig points at an external HTTP collaborator
type ServiceConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type StorageConfig struct {
	Provider  string // local, r2, minio
	LocalRoot string
	PublicURL string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	PublicURL       string
}

type QueueConfig struct {
	Enabled     bool
	Concurrency int
}

func Load() (*Config, error) {
	// Docker secrets
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("MINIO_ACCESS_KEY_ID")
	readSecret("MINIO_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("ratelimit.render_per_hour", "RATELIMIT_RENDER_PER_HOUR")
	_ = v.BindEnv("ratelimit.convert_per_min", "RATELIMIT_CONVERT_PER_MIN")
	_ = v.BindEnv("render.max_concurrent_jobs", "RENDER_MAX_CONCURRENT_JOBS")
	_ = v.BindEnv("render.default_fps", "RENDER_DEFAULT_FPS")
	_ = v.BindEnv("render.frame_tick_ms", "RENDER_FRAME_TICK_MS")
	_ = v.BindEnv("render.work_dir", "RENDER_WORK_DIR")
	_ = v.BindEnv("render.retention_hours", "RENDER_RETENTION_HOURS")
	_ = v.BindEnv("render.snapshot_ttl_hours", "RENDER_SNAPSHOT_TTL_HOURS")
	_ = v.BindEnv("renderer.service_url", "RENDERER_SERVICE_URL")
	_ = v.BindEnv("renderer.timeout", "RENDERER_SERVICE_TIMEOUT")
	_ = v.BindEnv("encoder.service_url", "ENCODER_SERVICE_URL")
	_ = v.BindEnv("encoder.timeout", "ENCODER_SERVICE_TIMEOUT")
	_ = v.BindEnv("storage.provider", "STORAGE_PROVIDER")
	_ = v.BindEnv("storage.local_root", "STORAGE_LOCAL_ROOT")
	_ = v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	_ = v.BindEnv("minio.access_key_id", "MINIO_ACCESS_KEY_ID")
	_ = v.BindEnv("minio.secret_access_key", "MINIO_SECRET_ACCESS_KEY")
	_ = v.BindEnv("minio.bucket_name", "MINIO_BUCKET_NAME")
	_ = v.BindEnv("minio.use_ssl", "MINIO_USE_SSL")
	_ = v.BindEnv("minio.public_url", "MINIO_PUBLIC_URL")
	_ = v.BindEnv("queue.enabled", "QUEUE_ENABLED")
	_ = v.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")

	// Defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.render_per_hour", 20)
	v.SetDefault("ratelimit.convert_per_min", 60)

	// Render defaults
	v.SetDefault("render.max_concurrent_jobs", 2)
	v.SetDefault("render.default_fps", 30)
	v.SetDefault("render.frame_tick_ms", 0)
	v.SetDefault("render.work_dir", os.TempDir()+"/timeline-render")
	v.SetDefault("render.retention_hours", 24)
	v.SetDefault("render.snapshot_ttl_hours", 24)

	// Collaborators
	v.SetDefault("renderer.timeout", 30)
	v.SetDefault("encoder.timeout", 300)

	// Storage defaults
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_root", "./data/renders")
	v.SetDefault("storage.public_url", "http://localhost:3000/files")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.concurrency", 4)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			LogFormat: v.GetString("server.log_format"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			RenderPerHour: v.GetInt("ratelimit.render_per_hour"),
			ConvertPerMin: v.GetInt("ratelimit.convert_per_min"),
		},
		Render: RenderConfig{
			MaxConcurrentJobs: v.GetInt("render.max_concurrent_jobs"),
			DefaultFPS:        v.GetFloat64("render.default_fps"),
			FrameTickMs:       v.GetInt("render.frame_tick_ms"),
			WorkDir:           v.GetString("render.work_dir"),
			RetentionHours:    v.GetInt("render.retention_hours"),
			SnapshotTTLHours:  v.GetInt("render.snapshot_ttl_hours"),
			Resolutions:       v.GetStringMapString("render.resolutions"),
			Compositions:      v.GetStringMapString("render.compositions"),
		},
		Renderer: ServiceConfig{
			ServiceURL: v.GetString("renderer.service_url"),
			Timeout:    v.GetInt("renderer.timeout"),
		},
		Encoder: ServiceConfig{
			ServiceURL: v.GetString("encoder.service_url"),
			Timeout:    v.GetInt("encoder.timeout"),
		},
		Storage: StorageConfig{
			Provider:  v.GetString("storage.provider"),
			LocalRoot: v.GetString("storage.local_root"),
			PublicURL: v.GetString("storage.public_url"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		MinIO: MinIOConfig{
			Endpoint:        v.GetString("minio.endpoint"),
			AccessKeyID:     v.GetString("minio.access_key_id"),
			SecretAccessKey: v.GetString("minio.secret_access_key"),
			BucketName:      v.GetString("minio.bucket_name"),
			UseSSL:          v.GetBool("minio.use_ssl"),
			PublicURL:       v.GetString("minio.public_url"),
		},
		Queue: QueueConfig{
			Enabled:     v.GetBool("queue.enabled"),
			Concurrency: v.GetInt("queue.concurrency"),
		},
	}

	if cfg.Render.MaxConcurrentJobs <= 0 {
		return nil, fmt.Errorf("render.max_concurrent_jobs must be positive, got %d", cfg.Render.MaxConcurrentJobs)
	}

	return cfg, nil
}

// ResolutionOverrides parses the "tier: WxH" table
func (c RenderConfig) ResolutionOverrides() (map[int]model.Resolution, error) {
	out := make(map[int]model.Resolution, len(c.Resolutions))
	for tier, size := range c.Resolutions {
		q, err := strconv.Atoi(tier)
		if err != nil || q < 1 || q > 10 {
			return nil, fmt.Errorf("invalid quality tier %q", tier)
		}
		w, h, ok := strings.Cut(strings.ToLower(size), "x")
		if !ok {
			return nil, fmt.Errorf("invalid resolution %q for tier %s", size, tier)
		}
		width, errW := strconv.Atoi(strings.TrimSpace(w))
		height, errH := strconv.Atoi(strings.TrimSpace(h))
		if errW != nil || errH != nil || width <= 0 || height <= 0 {
			return nil, fmt.Errorf("invalid resolution %q for tier %s", size, tier)
		}
		out[q] = model.Resolution{Width: width, Height: height}
	}
	return out, nil
}

// CompositionOverrides returns the "format: composition" table
func (c RenderConfig) CompositionOverrides() map[model.ExportFormat]string {
	out := make(map[model.ExportFormat]string, len(c.Compositions))
	for format, id := range c.Compositions {
		out[model.ExportFormat(strings.ToLower(format))] = id
	}
	return out
}
