package runtime

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the process-wide JSON logger. Level comes from LOG_LEVEL
// (debug|info|warn|error, default info) so deployments can raise verbosity
// without a rebuild.
func NewLogger(service string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(h).With("service", service)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
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
