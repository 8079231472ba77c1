package internal

import (
	"io"
	"log/slog"
	"strings"
)

// serviceName tags every production log line.
const serviceName = "inkwell"

// secretKeys are attribute keys whose values never reach the log.
var secretKeys = map[string]bool{
	"token":        true,
	"access_token": true,
	"password":     true,
	"cookie":       true,
}

// NewLogger builds the process logger. Development gets readable text with
// source locations; everything else gets JSON tagged with the service name.
// An unknown level falls back to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   env == "development",
		ReplaceAttr: redactSecrets,
	}

	if env == "development" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("service", serviceName)
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
