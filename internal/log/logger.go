// Package log configures structured logging for the tracker. Packages log
// through the default slog logger; the binaries install a handler here at
// startup.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Standard component names used in log attributes.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentEngine  = "engine"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
)

// Logger wraps slog.Logger and stamps every record with a component attribute.
type Logger struct {
	*slog.Logger
	component string
}

// New builds a logger writing text records to stdout at the given level.
func New(level slog.Level, component string) *Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger:    slog.New(handler).With("component", component),
		component: component,
	}
}

// WithComponent returns a logger for a sub-component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("component", component),
		component: component,
	}
}

func (l *Logger) Component() string { return l.component }

// SetDefault installs the logger as the process-wide slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

// LevelFromEnv reads LOG_LEVEL, defaulting to info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a default logger for a binary in one call.
func Setup(ctx context.Context, component string) *Logger {
	logger := New(LevelFromEnv(), component)
	SetDefault(logger)
	logger.DebugContext(ctx, "Logger initialized", "level", LevelFromEnv().String())
	return logger
}
