package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ai-images-server-go/internal/platform/errors"
)

const (
	// PathEnv selects the YAML file to load.
	PathEnv     = "AI_IMAGES_CONFIG"
	DefaultPath = "config.yaml"
)

// Loader layers defaults, the YAML file, .env and environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the YAML path, bypassing AI_IMAGES_CONFIG.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv replaces the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path. Path is
// empty when no file was found.
type Result struct {
	Config *Config
	Path   string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is normal outside local development
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path := l.path
	if path == "" {
		if v, ok := l.lookupEnv(PathEnv); ok && v != "" {
			path = v
		} else {
			path = DefaultPath
		}
	}

	loadedFrom := ""
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, errors.Wrap(errors.KindConfig, "config.load", "parse "+path, err)
		}
		loadedFrom = path
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(errors.KindConfig, "config.load", "read "+path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	ResolveDrivers(cfg)

	return &Result{Config: cfg, Path: loadedFrom}, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := l.lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("APP_ENV", &cfg.App.Env)
	str("AI_API_KEY", &cfg.Describer.APIKey)
	str("AI_BASE_URL", &cfg.Describer.BaseURL)
	str("AI_MODEL", &cfg.Describer.ModelName)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_PUBLIC_BASE_URL", &cfg.Storage.PublicBaseURL)
	str("R2_ENDPOINT", &cfg.Storage.S3.Endpoint)
	str("R2_BUCKET", &cfg.Storage.S3.Bucket)
	str("R2_ACCESS_KEY_ID", &cfg.Storage.S3.AccessKeyID)
	str("R2_SECRET_ACCESS_KEY", &cfg.Storage.S3.SecretAccessKey)
	str("HISTORY_DRIVER", &cfg.History.Driver)
	str("REDIS_ADDR", &cfg.History.Redis.Addr)
	str("LOG_LEVEL", &cfg.Log.Level)

	if v, ok := l.lookupEnv("SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.KindConfig, "config.env", "SERVER_PORT must be an integer", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// ResolveDrivers fixes the storage driver once at configuration time: an
// explicit setting wins, otherwise development runs use the mock publisher.
func ResolveDrivers(cfg *Config) {
	cfg.App.Env = strings.ToLower(strings.TrimSpace(cfg.App.Env))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		if cfg.IsDevelopment() {
			cfg.Storage.Driver = DriverMock
		} else {
			cfg.Storage.Driver = DriverS3
		}
	}
	cfg.History.Driver = strings.ToLower(strings.TrimSpace(cfg.History.Driver))
	cfg.Describer.Type = strings.ToLower(strings.TrimSpace(cfg.Describer.Type))
	resolveDescriberEndpoint(&cfg.Describer)
	cfg.Compression.Driver = strings.ToLower(strings.TrimSpace(cfg.Compression.Driver))
}

// resolveDescriberEndpoint fills the URL and model the selected describer
// type expects when the config leaves them empty.
func resolveDescriberEndpoint(cfg *DescriberConfig) {
	var url, model string
	switch cfg.Type {
	case DescriberOpenAI:
		url, model = DefaultOpenAIURL, DefaultOpenAIModel
	case DescriberOllama:
		url, model = DefaultOllamaURL, DefaultOllamaModel
	default:
		return
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = url
	}
	if strings.TrimSpace(cfg.ModelName) == "" {
		cfg.ModelName = model
	}
}

// Validate fails fast on configuration that would make every request fail.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		add("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Upload.MaxFileSize <= 0 {
		add("upload.max_file_size must be positive")
	}
	if cfg.Upload.MaxBodySize <= 0 {
		add("upload.max_body_size must be positive")
	}
	if len(cfg.Upload.AllowedMimeTypes) == 0 {
		add("upload.allowed_mime_types must not be empty")
	}
	if len(cfg.Upload.Languages) == 0 {
		add("upload.languages must not be empty")
	}

	switch cfg.Compression.Driver {
	case CompressionPassthrough, CompressionReencode:
	default:
		add("unknown compression.driver %q", cfg.Compression.Driver)
	}

	switch cfg.Storage.Driver {
	case DriverMock:
	case DriverFilesystem:
		if cfg.Storage.Filesystem.Root == "" {
			add("storage.filesystem.root is required")
		}
	case DriverS3:
		s3 := cfg.Storage.S3
		if s3.Endpoint == "" || s3.Bucket == "" || s3.AccessKeyID == "" || s3.SecretAccessKey == "" {
			add("storage.s3 requires endpoint, bucket, access_key_id and secret_access_key")
		}
	default:
		add("unknown storage.driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Timeout <= 0 {
		add("storage.timeout must be positive")
	}

	switch cfg.Describer.Type {
	case DescriberOpenAI:
		if cfg.Describer.APIKey == "" {
			add("describer.api_key (AI_API_KEY) is required for the openai describer")
		}
	case DescriberOllama:
		if cfg.Describer.BaseURL == "" {
			add("describer.url is required for the ollama describer")
		}
	default:
		add("unknown describer.type %q", cfg.Describer.Type)
	}
	if cfg.Describer.Timeout <= 0 {
		add("describer.timeout must be positive")
	}
	if cfg.Describer.KeywordLimit <= 0 {
		add("describer.keyword_limit must be positive")
	}

	if cfg.History.Enabled {
		switch cfg.History.Driver {
		case HistoryDriverMemory, HistoryDriverSQLite, HistoryDriverRedis:
		default:
			add("unknown history.driver %q", cfg.History.Driver)
		}
		if cfg.History.Capacity <= 0 {
			add("history.capacity must be positive")
		}
	}

	if len(problems) > 0 {
		return errors.New(errors.KindConfig, "config.validate", strings.Join(problems, "; "))
	}
	return nil
}
