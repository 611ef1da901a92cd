package observability

import (
	"context"
	"log/slog"
	"time"
)

// StartSpan records a lightweight span lifecycle around an operation.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return ctx, func(error) {}
	}

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "[Observability] span start",
		slog.String("component", component),
		slog.String("operation", operation),
	)

	return ctx, func(err error) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.LogAttrs(ctx, level, "[Observability] span end", attrs...)
	}
}

// RecordMetric logs a point-in-time measurement at debug level.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return
	}

	attrs := make([]slog.Attr, 0, len(labels)+2)
	attrs = append(attrs, slog.String("metric", name), slog.Float64("value", value))
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "[Observability] metric", attrs...)
}
