package system

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/logging"
	httptransport "ai-images-server-go/internal/transport/http"
)

// Service reports the effective runtime configuration without secrets.
type Service struct {
	logger *logging.Logger
	config *config.Config
}

func NewService(cfg *config.Config, logger *logging.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "system.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "system.new", "logger is required")
	}
	return &Service{logger: logger, config: cfg}, nil
}

// Register 注册系统信息路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/system", s.handleSystemGet)
	s.logger.DebugTag("HTTP", "system路由注册完成")
	return nil
}

// SystemInfo 系统运行配置摘要
type SystemInfo struct {
	Env               string   `json:"env"`
	Service           string   `json:"service"`
	StorageDriver     string   `json:"storageDriver"`
	Namespace         string   `json:"namespace"`
	CompressionDriver string   `json:"compressionDriver"`
	Describer         string   `json:"describer"`
	Model             string   `json:"model"`
	Languages         []string `json:"languages"`
	DefaultLanguage   string   `json:"defaultLanguage"`
	AllowedMimeTypes  []string `json:"allowedMimeTypes"`
	MaxFileSize       int64    `json:"maxFileSize"`
	HistoryDriver     string   `json:"historyDriver,omitempty"`
	MCPEnabled        bool     `json:"mcpEnabled"`
}

func describeConfig(cfg *config.Config) SystemInfo {
	info := SystemInfo{
		Env:               cfg.App.Env,
		Service:           cfg.App.ServiceName,
		StorageDriver:     cfg.Storage.Driver,
		Namespace:         cfg.Storage.Namespace,
		CompressionDriver: cfg.Compression.Driver,
		Describer:         cfg.Describer.Type,
		Model:             cfg.Describer.ModelName,
		Languages:         cfg.Upload.Languages,
		DefaultLanguage:   cfg.Upload.DefaultLanguage,
		AllowedMimeTypes:  cfg.Upload.AllowedMimeTypes,
		MaxFileSize:       cfg.Upload.MaxFileSize,
		MCPEnabled:        cfg.MCP.Enabled,
	}
	if cfg.Storage.Driver == config.DriverMock {
		info.Namespace = cfg.Storage.DevNamespace
	}
	if cfg.History.Enabled {
		info.HistoryDriver = cfg.History.Driver
	}
	return info
}

// handleSystemGet 获取系统配置
// @Summary 获取系统配置
// @Description 返回生效的驱动、语言与上传限制，不包含任何密钥
// @Tags System
// @Produce json
// @Success 200 {object} SystemInfo
// @Router /system [get]
func (s *Service) handleSystemGet(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, describeConfig(s.config), "System configuration retrieved successfully")
}
