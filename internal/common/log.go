// Package common provides the process-wide logger.
package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
	loggerOut  io.Writer = os.Stderr
)

// SetOutput redirects logger output. Must be called before the first Logger()
// call; the MCP stdio transport uses it to keep stdout protocol-clean.
func SetOutput(w io.Writer) {
	loggerOut = w
}

// Logger returns the singleton slog logger. The level is controlled by the
// LOG_LEVEL environment variable (debug, info, warn, error).
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		level := slog.LevelInfo
		switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		handler := slog.NewTextHandler(loggerOut, &slog.HandlerOptions{Level: level})
		logger = slog.New(handler)
	})
	return logger
}

// Component returns the logger tagged with a component attribute.
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}
