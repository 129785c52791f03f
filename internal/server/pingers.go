package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/meetmind/internal/provider"
)

// LLMPinger probes an LLM backend for readiness. It satisfies the Pinger
// interface and is used by GET /api/ready.
type LLMPinger struct {
	// probe performs the check.
	probe func(ctx context.Context) error
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewOllamaPinger returns an LLMPinger that lists local models via
// GET {baseURL}/api/tags. It costs no tokens. A nil client uses
// http.DefaultClient.
func NewOllamaPinger(baseURL string, client *http.Client) *LLMPinger {
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(baseURL, "/") + "/api/tags"
	return &LLMPinger{
		name: "ollama",
		probe: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			return nil
		},
	}
}

// NewGeneratorPinger returns an LLMPinger that sends a one-word prompt
// through the generator returned by resolve. Hosted backends have no free
// health endpoint, so each probe consumes tokens.
func NewGeneratorPinger(name string, resolve func(ctx context.Context) (provider.Generator, error)) *LLMPinger {
	return &LLMPinger{
		name: name,
		probe: func(ctx context.Context) error {
			slog.Warn("pinger: using Generate-based health check, tokens will be consumed",
				slog.String("backend", name),
			)
			g, err := resolve(ctx)
			if err != nil {
				return err
			}
			if _, err := g.Generate(ctx, "ping"); err != nil {
				return fmt.Errorf("generate failed: %w", err)
			}
			return nil
		},
	}
}

func (p *LLMPinger) Name() string { return p.name }

func (p *LLMPinger) Ping(ctx context.Context) error {
	if err := p.probe(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// QdrantPinger calls the Qdrant HealthCheck RPC.
type QdrantPinger struct {
	// client resolves the Qdrant gRPC client to probe. The connection is
	// built lazily, so the first probe may create it.
	client func(ctx context.Context) (*qdrant.Client, error)
}

// NewQdrantPinger constructs a QdrantPinger over the client returned by resolve.
func NewQdrantPinger(resolve func(ctx context.Context) (*qdrant.Client, error)) *QdrantPinger {
	return &QdrantPinger{client: resolve}
}

func (p *QdrantPinger) Name() string { return "qdrant" }

func (p *QdrantPinger) Ping(ctx context.Context) error {
	client, err := p.client(ctx)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	if _, err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}
