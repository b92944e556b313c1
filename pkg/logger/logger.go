// Package logger builds the root slog.Logger for FocusFlow Hub.
// All components receive a *slog.Logger and add their own attributes;
// this package only decides level, format, and destination.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the root logger.
type Config struct {
	// Level: debug, info, warn, error (default: info).
	Level string

	// Format: "text" or "json" (default: text).
	Format string

	// Output defaults to os.Stdout.
	Output io.Writer
}

// New builds a root logger from the config.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// ParseLevel parses a level string, defaulting to info.
func ParseLevel(s string) slog.Level {
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
