// Package resources owns the long-lived, expensive handles shared by every
// request: the embedding provider, the answer generator, the vector store,
// the index built from them, and the pipelines on top. Each handle is built
// lazily on first use, at most once, and then shared; concurrent first use
// waits for the single construction. Only success is cached: a failed
// construction is reported to its callers and the next call tries again, so
// a backend that was briefly unreachable recovers without a restart.
//
// Provider identifiers are checked when the Manager is created so a typo in
// EMBEDDINGS_PROVIDER or LLM_PROVIDER fails at startup, not on the first
// question.
package resources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/54b3r/meetmind/internal/config"
	"github.com/54b3r/meetmind/internal/embedder"
	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/provider"
	"github.com/54b3r/meetmind/internal/qa"
	"github.com/54b3r/meetmind/internal/rag"
)

// ErrUnknownProvider is returned by New when the embeddings or LLM provider
// identifier is not recognised.
var ErrUnknownProvider = errors.New("resources: unknown provider")

// Builders construct the underlying handles. A nil field selects the
// production implementation driven by config.Settings. Tests inject
// builders to count constructions or avoid network dependencies.
type Builders struct {
	Embedder    func(ctx context.Context, s *config.Settings) (rag.Embedder, error)
	Generator   func(ctx context.Context, s *config.Settings) (provider.Generator, error)
	VectorStore func(ctx context.Context, s *config.Settings) (rag.VectorStore, error)
}

// lazy holds one handle that is built successfully at most once.
type lazy[T any] struct {
	mu    sync.Mutex
	ready atomic.Bool
	val   T
}

func (l *lazy[T]) get(build func() (T, error)) (T, error) {
	if l.ready.Load() {
		return l.val, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready.Load() {
		return l.val, nil
	}
	v, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	l.val = v
	l.ready.Store(true)
	return v, nil
}

// Manager hands out shared handles. The zero value is not usable; construct
// with New. All methods are safe for concurrent use.
type Manager struct {
	settings *config.Settings
	builders Builders
	log      *slog.Logger

	embedder  lazy[rag.Embedder]
	generator lazy[provider.Generator]
	store     lazy[rag.VectorStore]
	index     lazy[*rag.EmbeddingIndex]
	pipeline  lazy[*qa.Pipeline]
	indexer   lazy[*ingestion.Service]

	mu      sync.Mutex
	closers []func() error
}

// New validates the provider identifiers in settings and returns a Manager.
// Nothing is constructed until the first accessor call.
func New(settings *config.Settings, builders Builders, log *slog.Logger) (*Manager, error) {
	if settings == nil {
		return nil, fmt.Errorf("resources: settings must not be nil")
	}
	if !embedder.Supported(settings.Embeddings.Provider) {
		return nil, fmt.Errorf("%w: embeddings provider %q (valid: openai, azure, local, huggingface, gemini, memory)",
			ErrUnknownProvider, settings.Embeddings.Provider)
	}
	if !provider.Supported(provider.Backend(settings.LLM.Provider)) {
		return nil, fmt.Errorf("%w: llm provider %q (valid: openai, azure, local, huggingface, bedrock, gemini)",
			ErrUnknownProvider, settings.LLM.Provider)
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{settings: settings, builders: builders, log: log}
	if m.builders.Embedder == nil {
		m.builders.Embedder = m.buildEmbedder
	}
	if m.builders.Generator == nil {
		m.builders.Generator = m.buildGenerator
	}
	if m.builders.VectorStore == nil {
		m.builders.VectorStore = m.buildVectorStore
	}
	return m, nil
}

// Settings returns the configuration the Manager was built from.
func (m *Manager) Settings() *config.Settings { return m.settings }

// Embedder returns the shared embedding provider.
func (m *Manager) Embedder(ctx context.Context) (rag.Embedder, error) {
	return m.embedder.get(func() (rag.Embedder, error) {
		e, err := m.builders.Embedder(buildContext(ctx), m.settings)
		if err != nil {
			return nil, fmt.Errorf("resources: building embedder: %w", err)
		}
		m.log.Info("resources: embedder ready", slog.String("provider", m.settings.Embeddings.Provider))
		return e, nil
	})
}

// Generator returns the shared answer generator.
func (m *Manager) Generator(ctx context.Context) (provider.Generator, error) {
	return m.generator.get(func() (provider.Generator, error) {
		g, err := m.builders.Generator(buildContext(ctx), m.settings)
		if err != nil {
			return nil, fmt.Errorf("resources: building generator: %w", err)
		}
		m.log.Info("resources: generator ready",
			slog.String("provider", m.settings.LLM.Provider),
			slog.String("model", m.settings.LLM.Model),
		)
		return g, nil
	})
}

// VectorStore returns the shared vector store connection.
func (m *Manager) VectorStore(ctx context.Context) (rag.VectorStore, error) {
	return m.store.get(func() (rag.VectorStore, error) {
		s, err := m.builders.VectorStore(buildContext(ctx), m.settings)
		if err != nil {
			return nil, fmt.Errorf("resources: building vector store: %w", err)
		}
		m.addCloser(s.Close)
		m.log.Info("resources: vector store ready", slog.String("backend", m.settings.Vector.Backend))
		return s, nil
	})
}

// Index returns the shared vector index. Indexing and answering always go
// through this single handle.
func (m *Manager) Index(ctx context.Context) (*rag.EmbeddingIndex, error) {
	return m.index.get(func() (*rag.EmbeddingIndex, error) {
		e, err := m.Embedder(ctx)
		if err != nil {
			return nil, err
		}
		s, err := m.VectorStore(ctx)
		if err != nil {
			return nil, err
		}
		return rag.NewIndex(e, s, m.settings.RAG.TopK)
	})
}

// Pipeline returns the shared retrieval-answering pipeline.
func (m *Manager) Pipeline(ctx context.Context) (*qa.Pipeline, error) {
	return m.pipeline.get(func() (*qa.Pipeline, error) {
		idx, err := m.Index(ctx)
		if err != nil {
			return nil, err
		}
		g, err := m.Generator(ctx)
		if err != nil {
			return nil, err
		}
		r := m.settings.RAG
		return qa.New(idx, g, qa.Config{
			TopK:            r.TopK,
			PromptTemplate:  r.PromptTemplate,
			MaxPromptTokens: r.MaxPromptTokens,
			Logger:          m.log,
		})
	})
}

// Indexer returns the shared indexing service.
func (m *Manager) Indexer(ctx context.Context) (*ingestion.Service, error) {
	return m.indexer.get(func() (*ingestion.Service, error) {
		idx, err := m.Index(ctx)
		if err != nil {
			return nil, err
		}
		return ingestion.NewService(idx, ingestion.Config{
			ChunkSize:    m.settings.RAG.ChunkSize,
			ChunkOverlap: m.settings.RAG.ChunkOverlap,
			Logger:       m.log,
		})
	})
}

// Close releases every handle that was built, in reverse construction order.
func (m *Manager) Close() error {
	m.mu.Lock()
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) addCloser(fn func() error) {
	m.mu.Lock()
	m.closers = append(m.closers, fn)
	m.mu.Unlock()
}

// buildContext detaches construction from the triggering request's
// cancellation, since the result is cached for every later caller.
func buildContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// buildEmbedder constructs the configured embedder, wrapped in the Redis
// cache when REDIS_URL is set.
func (m *Manager) buildEmbedder(ctx context.Context, s *config.Settings) (rag.Embedder, error) {
	cfg := s.EmbedderConfig()
	if err := embedder.Validate(cfg, m.log); err != nil {
		return nil, err
	}
	inner, err := embedder.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if s.RedisURL == "" {
		return inner, nil
	}

	opt, err := redis.ParseURL(s.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("resources: parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)
	m.addCloser(client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		m.log.Warn("resources: redis unreachable, embedding cache will be bypassed until it recovers",
			slog.Any("error", err))
	}

	model := cfg.Model
	if model == "" {
		model = "default"
	}
	return embedder.NewCachedEmbedder(inner, client, strings.ToLower(cfg.Provider)+"/"+model, s.CacheTTL, m.log), nil
}

// buildGenerator constructs the configured chat model and wraps it as a
// provider.Generator.
func (m *Manager) buildGenerator(ctx context.Context, s *config.Settings) (provider.Generator, error) {
	chat, err := provider.New(ctx, s.ProviderConfig())
	if err != nil {
		return nil, err
	}
	return provider.NewGenerator(chat, m.log)
}

// buildVectorStore connects to Qdrant or creates an in-memory store.
func (m *Manager) buildVectorStore(ctx context.Context, s *config.Settings) (rag.VectorStore, error) {
	v := s.Vector
	if v.Backend == config.VectorMemory {
		return rag.NewMemoryStore(), nil
	}
	return rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       v.Host,
		Port:       v.Port,
		Collection: v.Collection,
		VectorSize: uint64(embedder.DefaultDimensions(s.EmbedderConfig())),
		APIKey:     v.APIKey,
		UseTLS:     v.TLS,
	})
}
