package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/logging"
	"ai-images-server-go/internal/platform/observability"
)

// Service registers its routes on the API group.
type Service interface {
	Register(ctx context.Context, router *gin.RouterGroup) error
}

// Options configures the HTTP router builder.
type Options struct {
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *observability.Metrics
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with recovery, tracing,
// logging, CORS and metrics middlewares.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	cfg := opts.Config

	if strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(traceMiddleware())
	engine.Use(recoveryMiddleware(logger))
	engine.Use(loggingMiddleware(logger))
	engine.Use(observabilityMiddleware())
	if opts.Metrics != nil {
		engine.Use(opts.Metrics.GinMiddleware())
	}

	_ = engine.SetTrustedProxies(nil)
	engine.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	if cfg.Storage.Driver == config.DriverFilesystem {
		route := cfg.Storage.Filesystem.Route
		if route == "" {
			route = "/files"
		}
		engine.Use(static.Serve(route, static.LocalFile(cfg.Storage.Filesystem.Root, false)))
	}

	if opts.Metrics != nil && cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}, nil
}

// Register mounts every service on the API group.
func (r *Router) Register(ctx context.Context, services ...Service) error {
	for _, svc := range services {
		if err := svc.Register(ctx, r.API); err != nil {
			return err
		}
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", TraceHeader},
		ExposeHeaders: []string{"Content-Length", TraceHeader},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.InfoTrace("HTTP", TraceID(c), "%s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

func recoveryMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorTrace("HTTP", TraceID(c), "panic serving %s: %v", c.Request.URL.Path, recovered)
		RespondError(c, http.StatusInternalServerError, "internal server error", nil)
		c.Abort()
	})
}

func observabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		reqCtx, spanEnd := observability.StartSpan(c.Request.Context(), "http.server", path)
		c.Request = c.Request.WithContext(reqCtx)

		start := time.Now()
		c.Next()

		var spanErr error
		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		} else if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		spanEnd(spanErr)

		observability.RecordMetric(reqCtx, "http.request.duration_ms", float64(time.Since(start).Milliseconds()), map[string]string{
			"component": "http.server",
			"method":    c.Request.Method,
			"path":      path,
			"status":    strconv.Itoa(c.Writer.Status()),
		})
	}
}
