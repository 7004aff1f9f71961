// Package logger builds the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"

	"linkage/internal/platform/config"
)

// New returns a slog logger configured per LogConfig. JSON output is the
// default; text is available for local development.
func New(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
