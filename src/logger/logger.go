// Package logger provides the engine's single structured logger, shared by
// every package instead of ad-hoc fmt.Println calls.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// L is the global logger instance. Init must be called once at startup,
// after config.Load, before any other package logs through it.
var L *slog.Logger

// Init initializes the global logger at the given level ("debug", "info",
// "warn", "error"); unrecognized levels fall back to info with a warning.
func Init(logLevelStr string) {
	var level slog.Level
	switch strings.ToLower(logLevelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		slog.Warn("logger: invalid log level, defaulting to info", "configuredLevel", logLevelStr)
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	L = slog.New(handler)
	slog.SetDefault(L)
	L.Info("logger initialized", "level", level.String())
}

func init() {
	// Guarantee L is never nil for packages imported and exercised by tests
	// that never call Init explicitly (mirrors the teacher's nil-guard checks
	// around logger.L in database.go, but proactively instead of reactively).
	L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
