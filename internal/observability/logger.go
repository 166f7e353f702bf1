package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig is the subset of service configuration the logger needs.
type LogConfig interface {
	LogSettings() (level, format string)
}

// NewLogger builds a slog.Logger writing to stdout at the configured level,
// as JSON unless the format is "text".
func NewLogger(cfg LogConfig) *slog.Logger {
	level, format := cfg.LogSettings()
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
