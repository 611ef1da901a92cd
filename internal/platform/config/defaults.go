package config

import "time"

const (
	DriverMock       = "mock"
	DriverFilesystem = "filesystem"
	DriverS3         = "s3"

	DescriberOpenAI = "openai"
	DescriberOllama = "ollama"

	HistoryDriverMemory = "memory"
	HistoryDriverSQLite = "sqlite"
	HistoryDriverRedis  = "redis"

	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llava"

	CompressionPassthrough = "passthrough"
	CompressionReencode    = "reencode"
)

// DefaultConfig returns the built-in configuration every other source
// overrides.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		App: AppConfig{
			Env:         EnvProduction,
			ServiceName: "AI Images Agent",
		},
		Upload: UploadConfig{
			MaxFileSize:      10 * 1024 * 1024,
			MaxBodySize:      15 * 1024 * 1024,
			AllowedMimeTypes: []string{"image/png", "image/jpeg", "image/jpg", "image/webp"},
			Languages:        []string{"en", "zh", "es", "fr", "de", "ja"},
			DefaultLanguage:  "zh",
		},
		Compression: CompressionConfig{
			Driver:      CompressionPassthrough,
			JPEGQuality: 85,
		},
		Storage: StorageConfig{
			Namespace:     "images",
			DevNamespace:  "dev",
			PublicBaseURL: "https://images.example.com",
			CacheControl:  "public, max-age=31536000",
			Timeout:       30 * time.Second,
			Filesystem: FilesystemStorage{
				Root:  "data/images",
				Route: "/files",
			},
			S3: S3Storage{
				Region:       "auto",
				UsePathStyle: true,
				MaxAttempts:  3,
			},
		},
		Describer: DescriberConfig{
			Type:             DescriberOpenAI,
			MaxTokens:        500,
			Timeout:          60 * time.Second,
			FallbackLanguage: "en",
			KeywordMinLength: 4,
			KeywordLimit:     10,
		},
		History: HistoryConfig{
			Enabled:  true,
			Driver:   HistoryDriverMemory,
			Capacity: 5,
			SQLite: HistorySQLite{
				DSN: "data/history.db",
			},
			Redis: HistoryRedis{
				Addr: "127.0.0.1:6379",
				Key:  "ai-images:history",
			},
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
