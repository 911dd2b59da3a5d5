package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates the process logger: JSON unless format is "text", at the
// given level, with service and environment attached to every line.
func NewLogger(level, format, environment string) *slog.Logger {
	return newLogger(os.Stdout, level, format, environment)
}

func newLogger(w io.Writer, level, format, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "societyhub"),
		slog.String("environment", environment),
	})
	return slog.New(handler)
}

// ParseLevel maps debug, info, warn and error onto slog levels. Unknown
// values fall back to info.
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
