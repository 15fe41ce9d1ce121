package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the process-wide slog logger: JSON to stdout, tagged
// with the service name. Unknown or blank levels fall back to info.
func InitLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: true,
	})
	logger := slog.New(handler).With("service", "ecojourney")
	slog.SetDefault(logger)
	return logger
}
