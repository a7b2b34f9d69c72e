package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger configures the process-wide slog logger: JSON lines on stdout
// at the configured level. Level strings are the slog names (debug, info,
// warn, error, case-insensitive); anything unrecognized falls back to info.
func InitLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return logger
}
