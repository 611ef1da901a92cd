package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	_ "ai-images-server-go/docs"
	"ai-images-server-go/internal/domain/compress"
	"ai-images-server-go/internal/domain/describe"
	"ai-images-server-go/internal/domain/eventbus"
	"ai-images-server-go/internal/domain/history"
	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/domain/pipeline"
	"ai-images-server-go/internal/domain/publish"
	platformconfig "ai-images-server-go/internal/platform/config"
	platformerrors "ai-images-server-go/internal/platform/errors"
	platformlogging "ai-images-server-go/internal/platform/logging"
	platformobservability "ai-images-server-go/internal/platform/observability"
	httptransport "ai-images-server-go/internal/transport/http"
	httphistory "ai-images-server-go/internal/transport/http/history"
	httpsystem "ai-images-server-go/internal/transport/http/system"
	httpupload "ai-images-server-go/internal/transport/http/upload"
	mcptransport "ai-images-server-go/internal/transport/mcp"
	"ai-images-server-go/internal/transport/ws"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>AI Images Agent API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

const (
	eventWorkers   = 2
	eventQueueSize = 256
	shutdownGrace  = 15 * time.Second
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	loader                *platformconfig.Loader
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	metrics               *platformobservability.Metrics
	bus                   *eventbus.AsyncEventBus
	history               history.Store
	recorder              *history.Recorder
	stages                pipeline.Stages
	orchestrator          *pipeline.Orchestrator
	wsHub                 *ws.Hub
	mcp                   *mcptransport.Server
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	return run(ctx, &appState{})
}

func run(ctx context.Context, state *appState) error {
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return err
	}
	defer state.close()

	logger := state.logger
	logBootstrapGraph(steps, logger)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCtx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	// groupCtx ends on a signal, on cancellation of ctx, or when any service fails.
	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return platformerrors.Wrap(platformerrors.KindTransport, "http:start", "failed to start http server", err)
	}

	return waitForShutdown(groupCtx, cancel, logger, group)
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "init graph")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("Bootstrap", "  %s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("Bootstrap", "  %s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:start",
			Title:     "Start event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   startEventBusStep,
		},
		{
			ID:        "history:init-store",
			Title:     "Initialise history store",
			DependsOn: []string{"eventbus:start"},
			Kind:      platformerrors.KindStorage,
			Execute:   initHistoryStep,
		},
		{
			ID:        "pipeline:init-orchestrator",
			Title:     "Initialise pipeline orchestrator",
			DependsOn: []string{"observability:setup-hooks", "eventbus:start"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initPipelineStep,
		},
		{
			ID:        "mcp:init-server",
			Title:     "Initialise MCP tool server",
			DependsOn: []string{"pipeline:init-orchestrator"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initMCPStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.loader
	if loader == nil {
		loader = platformconfig.NewLoader().WithDotEnv(true)
	}

	result, err := loader.Load()
	if err != nil {
		return err
	}
	if err := platformconfig.Validate(result.Config); err != nil {
		return err
	}

	state.config = result.Config
	state.configPath = result.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	logger.InfoTag("Bootstrap", "logger ready [%s] config=%s env=%s storage=%s describer=%s",
		state.config.Log.Level,
		state.configPath,
		state.config.App.Env,
		state.config.Storage.Driver,
		state.config.Describer.Type,
	)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "observability:setup-hooks", "config/logger not initialised")
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown

	if state.config.Metrics.Enabled {
		state.metrics = platformobservability.NewMetrics()
	}
	return nil
}

func startEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(eventWorkers, eventQueueSize)
	logger := state.logger
	bus.OnPanic(func(topic string, recovered interface{}) {
		logger.ErrorTag("Pipeline", "event handler for %s panicked: %v", topic, recovered)
	})
	bus.Start()
	state.bus = bus
	return nil
}

func initHistoryStep(ctx context.Context, state *appState) error {
	cfg := state.config.History
	if !cfg.Enabled {
		state.logger.InfoTag("History", "disabled")
		return nil
	}

	store, err := history.New(ctx, cfg)
	if err != nil {
		return err
	}
	recorder := history.NewRecorder(store, state.logger)
	if err := recorder.Attach(state.bus); err != nil {
		_ = store.Close()
		return platformerrors.Wrap(platformerrors.KindBootstrap, "history:init-store", "failed to subscribe recorder", err)
	}

	state.history = store
	state.recorder = recorder
	state.logger.InfoTag("History", "store ready driver=%s capacity=%d", cfg.Driver, cfg.Capacity)
	return nil
}

func initPipelineStep(_ context.Context, state *appState) error {
	cfg := state.config

	compressor, err := compress.New(cfg.Compression)
	if err != nil {
		return err
	}
	publisher, err := publish.New(cfg.Storage)
	if err != nil {
		return err
	}
	describer, err := describe.New(cfg.Describer)
	if err != nil {
		return err
	}

	observers := []pipeline.Observer{
		pipeline.LogObserver{Logger: state.logger},
		pipeline.EventObserver{Bus: state.bus, Logger: state.logger},
	}
	if state.metrics != nil {
		observers = append(observers, pipeline.MetricsObserver{Metrics: state.metrics})
	}

	stages := pipeline.Stages{
		Validator:  image.NewValidator(image.PolicyFromConfig(cfg.Upload)),
		Compressor: compressor,
		Publisher:  publisher,
		Describer:  describer,
	}
	orch, err := pipeline.New(stages, pipeline.Options{
		PublishTimeout:  cfg.Storage.Timeout,
		DescribeTimeout: cfg.Describer.Timeout,
		Compensate:      cfg.Storage.CompensateOnFailure,
	}, observers...)
	if err != nil {
		return err
	}

	state.stages = stages
	state.orchestrator = orch
	state.logger.InfoTag("Pipeline", "stages: compressor=%s publisher=%s describer=%s",
		compressor.Name(), publisher.Name(), describer.Name())
	return nil
}

func initMCPStep(_ context.Context, state *appState) error {
	if !state.config.MCP.Enabled {
		return nil
	}
	server, err := mcptransport.NewServer(mcptransport.Options{
		Runner: state.orchestrator,
		Stages: &state.stages,
		Logger: state.logger,
		Name:   state.config.App.ServiceName,
	})
	if err != nil {
		return err
	}
	state.mcp = server
	return nil
}

// buildRouter assembles every HTTP surface on one gin engine.
func buildRouter(ctx context.Context, state *appState) (*gin.Engine, error) {
	cfg := state.config
	logger := state.logger

	router, err := httptransport.Build(httptransport.Options{
		Config:  cfg,
		Logger:  logger,
		Metrics: state.metrics,
	})
	if err != nil {
		return nil, err
	}
	engine := router.Engine

	state.wsHub = ws.NewHub()
	uploadService, err := httpupload.NewService(httpupload.Options{
		Runner:      state.orchestrator,
		Logger:      logger,
		ServiceName: cfg.App.ServiceName,
		MaxBodySize: cfg.Upload.MaxBodySize,
		Streams: ws.NewRouter(state.wsHub, logger, ws.RouterOptions{
			ReadLimit: cfg.Upload.MaxBodySize,
		}),
	})
	if err != nil {
		return nil, err
	}
	systemService, err := httpsystem.NewService(cfg, logger)
	if err != nil {
		return nil, err
	}
	services := []httptransport.Service{uploadService, systemService}

	if state.history != nil {
		historyService, err := httphistory.NewService(state.history, logger)
		if err != nil {
			return nil, err
		}
		services = append(services, historyService)
	}

	if err := router.Register(ctx, services...); err != nil {
		return nil, err
	}

	if state.mcp != nil {
		state.mcp.Mount(engine)
	}

	engine.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "failed to render OpenAPI document: %v", err)
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec", gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	engine.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	engine.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", gin.H{"path": c.Request.URL.Path})
	})

	return engine, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	engine, err := buildRouter(groupCtx, state)
	if err != nil {
		return err
	}

	cfg := state.config
	logger := state.logger
	addr := cfg.Server.IP + ":" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", addr)
		logger.InfoTag("HTTP", "docs at http://%s/docs", addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			state.wsHub.CloseAll(ws.ErrSessionShutdown)
			if state.mcp != nil {
				if err := state.mcp.Shutdown(shutdownCtx); err != nil {
					logger.WarnTag("MCP", "SSE shutdown: %v", err)
				}
			}
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "http server failed on "+addr, err)
		}
		return nil
	})

	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("Bootstrap", "shutting down: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services stopped")
	case <-time.After(shutdownGrace):
		logger.ErrorTag("Bootstrap", "shutdown timed out")
		return platformerrors.New(platformerrors.KindBootstrap, "bootstrap.shutdown", "shutdown timed out")
	}
	return nil
}

// close releases everything the init steps acquired, in reverse order.
func (s *appState) close() {
	if s.bus != nil {
		if s.recorder != nil {
			_ = s.recorder.Detach(s.bus)
		}
		s.bus.Stop()
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil && s.logger != nil {
			s.logger.WarnTag("History", "close: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.observabilityShutdown(ctx)
		cancel()
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}
