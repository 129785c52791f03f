// Package tracing sends eino model callbacks to Langfuse when credentials
// are configured.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/meetmind/internal/version"
)

// DefaultHost is the Langfuse endpoint used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Config holds Langfuse connection settings.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// FromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY.
// Call after config.Load so file values are already exported.
func FromEnv() Config {
	cfg := Config{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	return cfg
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup registers a Langfuse handler with eino's global callbacks so every
// chat model call is traced. The returned flush must run before exit. When
// cfg is not enabled nothing is registered, flush is a no-op and ok is false.
func Setup(cfg Config, log *slog.Logger) (flush func(), ok bool) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled() {
		log.Debug("tracing: langfuse disabled")
		return func() {}, false
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      "meetmind",
		Release:   version.Version,
	})
	callbacks.AppendGlobalHandlers(handler)

	log.Info("tracing: langfuse enabled", slog.String("host", cfg.Host))
	return flusher, true
}
