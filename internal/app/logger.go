package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the structured logger for one of the cashrecon binaries. Every record
// carries the binary name and environment so API, worker and CLI output can be told apart.
func NewLogger(cfg *Config, service string) *slog.Logger {
	return newLogger(os.Stdout, cfg, service)
}

func newLogger(w io.Writer, cfg *Config, service string) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: slog.LevelInfo}
	env := "development"
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg != nil {
		opts.Level = parseLevel(cfg.LogLevel)
		env = cfg.AppEnv
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(w, opts)
		}
	}
	return slog.New(handler).With(slog.String("service", service), slog.String("env", env))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
