package config

import (
	"time"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	App         AppConfig         `yaml:"app"`
	Upload      UploadConfig      `yaml:"upload"`
	Compression CompressionConfig `yaml:"compression"`
	Storage     StorageConfig     `yaml:"storage"`
	Describer   DescriberConfig   `yaml:"describer"`
	History     HistoryConfig     `yaml:"history"`
	MCP         MCPConfig         `yaml:"mcp"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type AppConfig struct {
	Env         string `yaml:"env"`
	ServiceName string `yaml:"service_name"`
}

type UploadConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size"`
	MaxBodySize       int64    `yaml:"max_body_size"`
	AllowedMimeTypes  []string `yaml:"allowed_mime_types"`
	Languages         []string `yaml:"languages"`
	DefaultLanguage   string   `yaml:"default_language"`
	StrictLanguage    bool     `yaml:"strict_language"`
	VerifyDecodedSize bool     `yaml:"verify_decoded_size"`
}

type CompressionConfig struct {
	Driver      string `yaml:"driver"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

type StorageConfig struct {
	Driver              string            `yaml:"driver"`
	Namespace           string            `yaml:"namespace"`
	DevNamespace        string            `yaml:"dev_namespace"`
	PublicBaseURL       string            `yaml:"public_base_url"`
	CacheControl        string            `yaml:"cache_control"`
	Timeout             time.Duration     `yaml:"timeout"`
	CompensateOnFailure bool              `yaml:"compensate_on_failure"`
	Filesystem          FilesystemStorage `yaml:"filesystem"`
	S3                  S3Storage         `yaml:"s3"`
}

type FilesystemStorage struct {
	Root  string `yaml:"root"`
	Route string `yaml:"route"`
}

type S3Storage struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

type DescriberConfig struct {
	Type             string        `yaml:"type"`
	ModelName        string        `yaml:"model_name"`
	BaseURL          string        `yaml:"url"`
	APIKey           string        `yaml:"api_key"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float32       `yaml:"temperature"`
	Timeout          time.Duration `yaml:"timeout"`
	FallbackLanguage string        `yaml:"fallback_language"`
	KeywordMinLength int           `yaml:"keyword_min_length"`
	KeywordLimit     int           `yaml:"keyword_limit"`
}

type HistoryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Driver   string        `yaml:"driver"`
	Capacity int           `yaml:"capacity"`
	SQLite   HistorySQLite `yaml:"sqlite"`
	Redis    HistoryRedis  `yaml:"redis"`
}

type HistorySQLite struct {
	DSN string `yaml:"dsn"`
}

type HistoryRedis struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsDevelopment reports whether the deployment flag selects the development
// environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}
