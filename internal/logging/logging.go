// Package logging builds the process-wide [*slog.Logger] and carries it
// through request and command contexts.
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
//	LOG_SOURCE = true                         (adds file:line to records)
//
// Logs always go to stderr. Stdout belongs to command output and to the MCP
// stdio transport, where a stray log line would corrupt the protocol.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type contextKey struct{}

// Config selects the handler and minimum level.
type Config struct {
	Level     string
	Format    string
	AddSource bool
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_SOURCE.
func FromEnv() Config {
	src, _ := strconv.ParseBool(os.Getenv("LOG_SOURCE"))
	return Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		AddSource: src,
	}
}

// Build returns a logger writing to w. Unknown levels fall back to info and
// any format other than "text" yields JSON.
func (c Config) Build(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level), AddSource: c.AddSource}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// New is FromEnv().Build(os.Stderr).
func New() *slog.Logger {
	return FromEnv().Build(os.Stderr)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or [slog.Default].
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
