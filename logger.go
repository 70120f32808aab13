package csearch

import (
	"io"
	"log/slog"
	"os"

	"github.com/csearch-go/csearch/index"
)

// Logger wraps slog.Logger with csearch-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithRoot adds the tree root being walked to the logger.
func (l *Logger) WithRoot(root string) *Logger {
	return &Logger{
		Logger: l.Logger.With("root", root),
	}
}

// WithIndex adds the index file path to the logger.
func (l *Logger) WithIndex(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", path),
	}
}

// LogSkip records a file excluded from the index and why.
func (l *Logger) LogSkip(err *index.SkipError) {
	l.Debug("skipped file", "name", err.Name, "reason", err.Reason.String())
}

// LogReadError records a file that could not be read. Read failures are
// per-file: the build keeps going without the file.
func (l *Logger) LogReadError(name string, err error) {
	l.Warn("cannot index file", "name", name, "error", err)
}
