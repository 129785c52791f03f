package embedder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultOllamaTimeout bounds one /api/embed call. A cold model load on
// CPU-only hosts can take most of a minute.
const defaultOllamaTimeout = 60 * time.Second

// OllamaEmbedder is the "local" backend: bge-m3 (or any pulled embedding
// model) served by an Ollama daemon over POST /api/embed. No credential is
// sent. Safe for concurrent use.
type OllamaEmbedder struct {
	call      jsonCall
	model     string
	keepAlive string
}

// OllamaConfig configures NewOllamaEmbedder.
type OllamaConfig struct {
	// Host is the daemon base URL; a trailing slash is tolerated.
	Host string
	// Model is the embedding model tag, e.g. "bge-m3".
	Model string
	// KeepAlive is passed through as keep_alive so the model stays loaded
	// between ingestion batches ("" leaves the daemon default).
	KeepAlive string
	// Timeout overrides defaultOllamaTimeout.
	Timeout time.Duration
}

// NewOllamaEmbedder builds an OllamaEmbedder.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &OllamaEmbedder{
		call: jsonCall{
			client: &http.Client{Timeout: timeout},
			url:    strings.TrimRight(cfg.Host, "/") + "/api/embed",
		},
		model:     cfg.Model,
		keepAlive: cfg.KeepAlive,
	}
}

type ollamaEmbedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order. Inputs longer than
// the model context are truncated by the daemon rather than rejected.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c := e.call
	c.body = ollamaEmbedRequest{Model: e.model, Input: texts, Truncate: true, KeepAlive: e.keepAlive}

	res, err := do(ctx, c, func(r *ollamaEmbedResponse) string { return r.Error })
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if err := checkCount(len(texts), len(res.Embeddings)); err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return res.Embeddings, nil
}
