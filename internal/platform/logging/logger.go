package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RetentionDays bounds how long rotated log files are kept.
const RetentionDays = 7

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
	// Output receives console lines. Defaults to os.Stdout.
	Output io.Writer
}

// Logger writes colored text to the console and JSON lines to a daily
// rotated file. File output is skipped when Dir is empty.
type Logger struct {
	cfg    Config
	level  slog.Level
	slog   *slog.Logger
	file   *rotatingFile
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger. The caller owns Close.
func New(cfg Config) (*Logger, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Filename == "" {
		cfg.Filename = "server.log"
	}
	level := ParseLevel(cfg.Level)

	handlers := []slog.Handler{NewCustomTextHandler(cfg.Output, level)}

	l := &Logger{cfg: cfg, level: level, stopCh: make(chan struct{})}
	if cfg.Dir != "" {
		rf, err := openRotatingFile(cfg.Dir, cfg.Filename)
		if err != nil {
			return nil, err
		}
		l.file = rf
		handlers = append(handlers, slog.NewJSONHandler(rf, &slog.HandlerOptions{Level: level}))
		l.startRotationChecker()
	}

	l.slog = slog.New(fanoutHandler{handlers: handlers})
	return l, nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	l, _ := New(Config{Level: "error", Output: io.Discard})
	return l
}

func (l *Logger) startRotationChecker() {
	l.ticker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-l.ticker.C:
				l.checkAndRotate(time.Now())
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Logger) checkAndRotate(now time.Time) {
	if l.file == nil {
		return
	}
	rotated, err := l.file.rotateIfNeeded(now)
	if err != nil {
		l.ErrorFields("rotate log file failed", Fields{"error": err.Error()})
		return
	}
	if rotated {
		l.InfoFields("log file rotated", Fields{"date": now.Format("2006-01-02")})
		for _, name := range l.file.cleanOld(now.AddDate(0, 0, -RetentionDays)) {
			l.InfoFields("removed expired log file", Fields{"file": name})
		}
	}
}

// Close stops rotation and closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
		close(l.stopCh)
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// Slog exposes the structured logger for integrations that want slog directly.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Fields are structured attributes attached to one record, emitted in key order.
type Fields map[string]interface{}

func (l *Logger) log(level slog.Level, msg string, fields Fields) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.slog.LogAttrs(context.Background(), level, msg, attrs...)
}

func (l *Logger) emit(level slog.Level, msg string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.log(level, msg, nil)
}

func (l *Logger) emitFields(level slog.Level, msg string, fields Fields) {
	if l == nil || level < l.level {
		return
	}
	l.log(level, msg, fields)
}

// Debug, Info, Warn and Error format msg printf-style.
func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.emit(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.emit(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(slog.LevelError, msg, args...) }

func (l *Logger) DebugFields(msg string, fields Fields) { l.emitFields(slog.LevelDebug, msg, fields) }
func (l *Logger) InfoFields(msg string, fields Fields)  { l.emitFields(slog.LevelInfo, msg, fields) }
func (l *Logger) WarnFields(msg string, fields Fields)  { l.emitFields(slog.LevelWarn, msg, fields) }
func (l *Logger) ErrorFields(msg string, fields Fields) { l.emitFields(slog.LevelError, msg, fields) }

// FormatLog prefixes message with a single category tag, e.g.
// FormatLog("Pipeline", "run started") -> "[Pipeline] run started".
// Messages that already start with "[" are returned unchanged.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" {
		return message
	}
	if strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

// FormatTrace renders "[tag] [traceID] message" so one request can be
// followed across stages with a plain grep.
func FormatTrace(tag, traceID, message string) string {
	message = strings.TrimSpace(message)
	if traceID != "" {
		message = fmt.Sprintf("[%s] %s", traceID, message)
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

func (l *Logger) DebugTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelDebug, FormatLog(tag, msg), args...)
}

func (l *Logger) InfoTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelInfo, FormatLog(tag, msg), args...)
}

func (l *Logger) WarnTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelWarn, FormatLog(tag, msg), args...)
}

func (l *Logger) ErrorTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelError, FormatLog(tag, msg), args...)
}

// DebugTrace and friends log a tagged message carrying the request trace id.
func (l *Logger) DebugTrace(tag, traceID, msg string, args ...interface{}) {
	l.emit(slog.LevelDebug, FormatTrace(tag, traceID, msg), args...)
}

func (l *Logger) InfoTrace(tag, traceID, msg string, args ...interface{}) {
	l.emit(slog.LevelInfo, FormatTrace(tag, traceID, msg), args...)
}

func (l *Logger) WarnTrace(tag, traceID, msg string, args ...interface{}) {
	l.emit(slog.LevelWarn, FormatTrace(tag, traceID, msg), args...)
}

func (l *Logger) ErrorTrace(tag, traceID, msg string, args ...interface{}) {
	l.emit(slog.LevelError, FormatTrace(tag, traceID, msg), args...)
}

// rotatingFile is an io.Writer whose underlying file is archived as
// name-YYYY-MM-DD.ext when the day changes.
type rotatingFile struct {
	mu   sync.Mutex
	dir  string
	name string
	date string
	f    *os.File
}

func openRotatingFile(dir, name string) (*rotatingFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &rotatingFile{dir: dir, name: name, date: time.Now().Format("2006-01-02"), f: f}, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return 0, os.ErrClosed
	}
	return r.f.Write(p)
}

func (r *rotatingFile) rotateIfNeeded(now time.Time) (bool, error) {
	today := now.Format("2006-01-02")

	r.mu.Lock()
	defer r.mu.Unlock()
	if today == r.date || r.f == nil {
		return false, nil
	}

	if err := r.f.Close(); err != nil {
		return false, err
	}
	current := filepath.Join(r.dir, r.name)
	base := strings.TrimSuffix(r.name, filepath.Ext(r.name))
	archived := filepath.Join(r.dir, fmt.Sprintf("%s-%s%s", base, r.date, filepath.Ext(r.name)))
	if _, err := os.Stat(current); err == nil {
		if err := os.Rename(current, archived); err != nil {
			return false, err
		}
	}

	f, err := os.OpenFile(current, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.f = nil
		return false, err
	}
	r.f = f
	r.date = today
	return true, nil
}

// cleanOld removes archives dated before cutoff and returns their names.
func (r *rotatingFile) cleanOld(cutoff time.Time) []string {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil
	}
	base := strings.TrimSuffix(r.name, filepath.Ext(r.name))
	ext := filepath.Ext(r.name)

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		if !strings.HasPrefix(fileName, base+"-") || !strings.HasSuffix(fileName, ext) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(fileName, base+"-"), ext)
		fileDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil || !fileDate.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, fileName)); err == nil {
			removed = append(removed, fileName)
		}
	}
	return removed
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
