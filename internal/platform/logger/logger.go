package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// MomentLayout is how time attributes are rendered. Millisecond precision is
// enough to see how far a wake-up drifted from the moment it waited for.
const MomentLayout = "2006-01-02T15:04:05.000Z07:00"

// Options defines parameters for logger creation.
type Options struct {
	Env          string
	ConsoleLevel string // Level for console output (default: info)
	FileLevel    string // Level for file output (default: debug)
	File         string
	App          string
	// Location renders time-valued attributes in the schedule's zone.
	// Nil keeps each value's own location.
	Location *time.Location
}

var closers sync.Map

// New creates configured slog.Logger instance.
func New(o Options) *slog.Logger {
	consoleLvl := levelFromString(o.ConsoleLevel, slog.LevelInfo)
	fileLvl := levelFromString(o.FileLevel, slog.LevelDebug)
	replace := momentAttrs(o.Location)

	timeFormat := time.RFC3339
	if o.Env == "dev" {
		timeFormat = time.Kitchen
	}
	handlers := []slog.Handler{
		tint.NewHandler(os.Stdout, &tint.Options{
			Level:       consoleLvl,
			TimeFormat:  timeFormat,
			ReplaceAttr: replace,
		}),
	}

	var closer func() error
	if o.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		closer = fileWriter.Close
		handlers = append(handlers, slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{
			Level:       fileLvl,
			ReplaceAttr: replace,
		}))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = NewMultiHandler(handlers...)
	}

	l := slog.New(h).With(
		slog.String("app", o.App),
		slog.String("env", o.Env),
	)

	if closer != nil {
		closers.Store(l, closer)
	}

	return l
}

// Close closes all file handlers to release resources.
// Should be called when shutting down the application.
func Close(logger *slog.Logger) error {
	if c, ok := closers.Load(logger); ok {
		closers.Delete(logger)
		return c.(func() error)()
	}
	return nil
}

// momentAttrs formats time-valued attributes other than the record time.
func momentAttrs(loc *time.Location) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.TimeKey {
			return a
		}
		if a.Value.Kind() != slog.KindTime {
			return a
		}
		t := a.Value.Time()
		if loc != nil {
			t = t.In(loc)
		}
		return slog.String(a.Key, t.Format(MomentLayout))
	}
}

func levelFromString(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// MultiHandler fans a record out to every handler that accepts its level.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler that writes to multiple handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled implements slog.Handler.
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler. Every enabled handler sees the record even
// when an earlier one fails; the first error is returned.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WithAttrs implements slog.Handler.
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup implements slog.Handler.
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}
