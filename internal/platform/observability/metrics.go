package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the HTTP surface and the
// image pipeline. Each instance registers against its own registry so tests
// can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	pipelineRuns      *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	stageFailures     *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	compressionSaving prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_images_http_requests_total",
				Help: "Total HTTP requests served",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_images_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_images_pipeline_runs_total",
				Help: "Pipeline runs by terminal outcome",
			},
			[]string{"outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_images_pipeline_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_images_pipeline_stage_failures_total",
				Help: "Pipeline stage failures by error kind",
			},
			[]string{"stage", "kind"},
		),
		compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_images_storage_compensations_total",
				Help: "Compensating deletes of published objects",
			},
			[]string{"result"},
		),
		compressionSaving: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ai_images_compression_ratio",
				Help:    "Fraction of bytes saved by the compressor",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware counts requests and observes latency. The route template is
// used as the path label to keep cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveRun(outcome string) {
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveStageFailure(stage, kind string) {
	m.stageFailures.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) ObserveCompensation(result string) {
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCompression(ratio float64) {
	m.compressionSaving.Observe(ratio)
}
