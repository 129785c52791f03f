package mcpserver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/54b3r/meetmind/internal/config"
	"github.com/54b3r/meetmind/internal/embedder"
	"github.com/54b3r/meetmind/internal/provider"
	"github.com/54b3r/meetmind/internal/qa"
	"github.com/54b3r/meetmind/internal/rag"
	"github.com/54b3r/meetmind/internal/resources"
	"github.com/54b3r/meetmind/internal/store"
)

// mockGenerator returns answer for every prompt and records the prompts.
type mockGenerator struct {
	mu      sync.Mutex
	answer  string
	prompts []string
}

func (g *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.answer, nil
}

// newTestServer builds a Server over a hash embedder, an in-memory vector
// store and an in-memory SQLite store.
func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, *mockGenerator) {
	t.Helper()

	gen := &mockGenerator{answer: "Релиз перенесли на четверг."}
	settings := &config.Settings{
		Embeddings: config.EmbeddingSettings{Provider: "memory"},
		LLM:        config.LLMSettings{Provider: "local", Model: "llama3"},
		RAG: config.RAGSettings{
			ChunkSize:      1000,
			ChunkOverlap:   200,
			TopK:           5,
			PromptTemplate: qa.DefaultPromptTemplate,
		},
		Vector: config.VectorSettings{Backend: config.VectorMemory},
	}
	mgr, err := resources.New(settings, resources.Builders{
		Embedder: func(context.Context, *config.Settings) (rag.Embedder, error) {
			return embedder.NewHashEmbedder(128), nil
		},
		Generator: func(context.Context, *config.Settings) (provider.Generator, error) {
			return gen, nil
		},
		VectorStore: func(context.Context, *config.Settings) (rag.VectorStore, error) {
			return rag.NewMemoryStore(), nil
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv, err := NewServer(mgr, st, nil)
	require.NoError(t, err)
	return srv, st, gen
}
