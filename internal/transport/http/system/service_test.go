package system

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/logging"
)

func newEngine(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := NewService(cfg, logging.Discard())
	require.NoError(t, err)
	engine := gin.New()
	require.NoError(t, svc.Register(context.Background(), engine.Group("/api")))
	return engine
}

func TestSystemInfoOmitsSecrets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.App.Env = config.EnvDevelopment
	cfg.Describer.APIKey = "sk-secret"
	cfg.Storage.S3.SecretAccessKey = "r2-secret"
	config.ResolveDrivers(cfg)

	rec := httptest.NewRecorder()
	newEngine(t, cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "sk-secret")
	assert.NotContains(t, body, "r2-secret")
	assert.Contains(t, body, `"storageDriver":"mock"`)
	assert.Contains(t, body, `"namespace":"dev"`)
	assert.Contains(t, body, `"historyDriver":"memory"`)
}

func TestDescribeConfigProductionNamespace(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.History.Enabled = false
	config.ResolveDrivers(cfg)

	info := describeConfig(cfg)
	assert.Equal(t, config.DriverS3, info.StorageDriver)
	assert.Equal(t, "images", info.Namespace)
	assert.Empty(t, info.HistoryDriver)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, logging.Discard())
	assert.Error(t, err)
	_, err = NewService(config.DefaultConfig(), nil)
	assert.Error(t, err)
}
