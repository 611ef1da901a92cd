package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// tagColors maps module tags to console colors. Untagged lines fall back to
// the level color.
var tagColors = map[string]string{
	"[Bootstrap]":     "\x1b[96m",
	"[HTTP]":          "\x1b[95m",
	"[WebSocket]":     "\x1b[92m",
	"[Pipeline]":      "\x1b[94m",
	"[Validator]":     "\x1b[36m",
	"[Compressor]":    "\x1b[35m",
	"[Storage]":       "\x1b[93m",
	"[Describer]":     "\x1b[34m",
	"[History]":       "\x1b[97m",
	"[MCP]":           "\x1b[36m",
	"[Observability]": "\x1b[90m",
}

// CustomTextHandler renders colored single-line records for the console.
type CustomTextHandler struct {
	writer io.Writer
	level  slog.Level
	mu     *sync.Mutex
	attrs  []slog.Attr
}

func NewCustomTextHandler(w io.Writer, level slog.Level) *CustomTextHandler {
	return &CustomTextHandler{writer: w, level: level, mu: &sync.Mutex{}}
}

func (h *CustomTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *CustomTextHandler) Handle(_ context.Context, r slog.Record) error {
	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch {
	case r.Level >= slog.LevelError:
		levelStr, levelColor = "ERROR", colorError
	case r.Level >= slog.LevelWarn:
		levelStr, levelColor = "WARN", colorWarn
	case r.Level >= slog.LevelInfo:
		levelStr, levelColor = "INFO", colorInfo
	default:
		levelStr, levelColor = "DEBUG", colorDebug
	}

	var b strings.Builder
	msg := r.Message
	if color, ok := moduleColor(msg); ok && r.Level < slog.LevelWarn {
		fmt.Fprintf(&b, "%s[%s]%s %s%s%s", colorTime, timeStr, colorReset, color, msg, colorReset)
	} else {
		fmt.Fprintf(&b, "%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, levelStr, colorReset,
			msg)
	}

	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		b.WriteString(" {")
		for _, a := range h.attrs {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		b.WriteString(" }")
	}
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *CustomTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *CustomTextHandler) WithGroup(string) slog.Handler {
	return h
}

func moduleColor(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.Index(msg, "]")
	if end < 0 {
		return "", false
	}
	color, ok := tagColors[msg[:end+1]]
	return color, ok
}

// fanoutHandler forwards every record to all wrapped handlers.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return fanoutHandler{handlers: next}
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return fanoutHandler{handlers: next}
}
