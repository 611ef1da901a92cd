package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/upload", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/upload", nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/upload", "200"))
	if got != 3 {
		t.Fatalf("expected 3 requests counted, got %v", got)
	}
}

func TestPipelineCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("completed")
	m.ObserveRun("failed")
	m.ObserveRun("completed")
	m.ObserveStageFailure("publishing", "storage")
	m.ObserveCompensation("deleted")
	m.ObserveStage("describing", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.pipelineRuns.WithLabelValues("completed")); got != 2 {
		t.Fatalf("completed runs = %v", got)
	}
	if got := testutil.ToFloat64(m.stageFailures.WithLabelValues("publishing", "storage")); got != 1 {
		t.Fatalf("stage failures = %v", got)
	}
	if got := testutil.ToFloat64(m.compensations.WithLabelValues("deleted")); got != 1 {
		t.Fatalf("compensations = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("completed")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(w.Body.String(), "ai_images_pipeline_runs_total") {
		t.Fatalf("metrics output missing pipeline counter:\n%s", w.Body.String())
	}
}
