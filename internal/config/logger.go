package config

import (
    "io"
    "log/slog"
    "strings"
)

// NewLogger builds the process logger.  Production emits JSON; dev and
// test use the text handler.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
    opts := &slog.HandlerOptions{Level: parseLevel(level)}
    var h slog.Handler
    if env == "prod" {
        h = slog.NewJSONHandler(w, opts)
    } else {
        h = slog.NewTextHandler(w, opts)
    }
    return slog.New(h).With("service", "ticket-marketplace")
}

func parseLevel(s string) slog.Level {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "debug":
        return slog.LevelDebug
    case "warn", "warning":
        return slog.LevelWarn
    case "error":
        return slog.LevelError
    }
    return slog.LevelInfo
}
