package pipeline

import (
	"context"
	"time"

	"ai-images-server-go/internal/domain/eventbus"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/logging"
	"ai-images-server-go/internal/platform/observability"
)

// Observer is notified synchronously of every transition of a run.
// Implementations must not block for long.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// CompensationObserver is implemented by observers that want to hear about
// compensating deletes.
type CompensationObserver interface {
	OnCompensation(ctx context.Context, traceID, key string, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) { f(ctx, t) }

func notify(ctx context.Context, observers []Observer, t Transition) {
	for _, obs := range observers {
		obs.OnTransition(ctx, t)
	}
}

// LogObserver writes one line per transition tagged with the trace id.
type LogObserver struct {
	Logger *logging.Logger
}

func (l LogObserver) OnTransition(_ context.Context, t Transition) {
	switch t.To {
	case StateValidating:
		l.Logger.InfoTrace("Pipeline", t.TraceID, "run started")
	case StateFailed:
		l.Logger.ErrorTrace("Pipeline", t.TraceID, "%s failed after %s: %s (kind=%s, retryable=%t)",
			t.From, t.Elapsed.Round(time.Millisecond), t.Err, errors.KindOf(t.Err), errors.Retryable(errors.KindOf(t.Err)))
	case StateCompleted:
		key := ""
		if t.Record.Publish != nil {
			key = t.Record.Publish.Key
		}
		l.Logger.InfoTrace("Pipeline", t.TraceID, "run completed, key=%s", key)
	default:
		l.Logger.DebugTrace("Pipeline", t.TraceID, "%s done in %s, entering %s",
			t.From, t.Elapsed.Round(time.Millisecond), t.To)
	}
}

func (l LogObserver) OnCompensation(_ context.Context, traceID, key string, err error) {
	if err != nil {
		l.Logger.WarnTrace("Storage", traceID, "compensating delete of %s failed: %v", key, err)
		return
	}
	l.Logger.InfoTrace("Storage", traceID, "deleted orphaned object %s", key)
}

// MetricsObserver feeds stage timings and outcomes into Prometheus.
type MetricsObserver struct {
	Metrics *observability.Metrics
}

func (m MetricsObserver) OnTransition(_ context.Context, t Transition) {
	if t.From != StateIdle {
		m.Metrics.ObserveStage(string(t.From), t.Elapsed)
	}
	switch t.To {
	case StateFailed:
		m.Metrics.ObserveStageFailure(string(t.From), string(errors.KindOf(t.Err)))
		m.Metrics.ObserveRun(string(StateFailed))
	case StateCompleted:
		m.Metrics.ObserveRun(string(StateCompleted))
	case StatePublishing:
		if t.Record.Compression != nil {
			m.Metrics.ObserveCompression(t.Record.Compression.CompressionRatio / 100)
		}
	}
}

func (m MetricsObserver) OnCompensation(_ context.Context, _, _ string, err error) {
	if err != nil {
		m.Metrics.ObserveCompensation("failed")
		return
	}
	m.Metrics.ObserveCompensation("deleted")
}

// EventPublisher is the slice of the event bus the pipeline needs.
type EventPublisher interface {
	PublishAsync(topic string, args ...interface{}) error
}

// EventObserver republishes transitions on the event bus.
type EventObserver struct {
	Bus    EventPublisher
	Logger *logging.Logger
}

func (e EventObserver) OnTransition(_ context.Context, t Transition) {
	data := eventbus.PipelineEventData{
		TraceID:  t.TraceID,
		Stage:    string(t.To),
		FileName: t.Record.Request.FileName,
		Language: t.Record.Request.Language,
		At:       time.Now(),
	}

	topic := eventbus.EventPipelineStage
	switch t.To {
	case StateValidating:
		topic = eventbus.EventPipelineStarted
	case StateCompleted:
		topic = eventbus.EventPipelineCompleted
		data.Result = t.Record.Result()
		if t.Record.Compression != nil {
			data.Image = t.Record.Compression.CompressedData
		}
	case StateFailed:
		topic = eventbus.EventPipelineFailed
		data.Stage = string(t.From)
		data.ErrorKind = string(errors.KindOf(t.Err))
		data.Error = errors.Public(t.Err)
	}

	if err := e.Bus.PublishAsync(topic, data); err != nil {
		e.Logger.WarnTrace("Pipeline", t.TraceID, "event %s dropped: %v", topic, err)
	}
}
