// Package logging installs the process-wide slog handler.
package logging

import (
	"log/slog"
	"os"

	"github.com/MatusOllah/slogcolor"
)

// Setup configures the default slog logger with a colorized handler at the
// given level ("debug", "info", "warn", "error").
func Setup(level string) {
	opts := slogcolor.DefaultOptions
	opts.Level = parseLevel(level)
	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))
}

func parseLevel(level string) slog.Level {
	switch level {
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
