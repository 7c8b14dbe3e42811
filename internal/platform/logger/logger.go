// Package logger builds the process-wide slog.Logger and holds small helpers
// for keeping secrets out of log lines.
package logger

import (
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler format and minimum level.
type Config struct {
	// Format is "json" (default) or "text".
	Format string
	// Level is one of debug, info, warn, error.
	Level string
	// Service is attached to every record when set.
	Service string
}

// New returns a structured logger writing to stdout.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	l := slog.New(h)
	if cfg.Service != "" {
		l = l.With("service", cfg.Service)
	}
	return l
}

// Discard returns a logger that drops everything. Used in tests and as the
// default when no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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

const placeholder = "[redacted]"

// Redacted marks an attribute whose value must never be printed.
func Redacted(key string) slog.Attr {
	return slog.String(key, placeholder)
}

// Fingerprint logs only a short prefix of a secret-bearing value so that
// operators can correlate entries without learning the value.
func Fingerprint(key string, secret []byte) slog.Attr {
	const keep = 4
	if len(secret) <= keep {
		return Redacted(key)
	}
	return slog.String(key, hex.EncodeToString(secret[:keep])+"…")
}
