package rag

import (
	"context"
	"fmt"
)

// EmbeddingIndex implements Index by combining an Embedder and a
// VectorStore. Entries are embedded in one batch on Add; queries are
// embedded at search time.
type EmbeddingIndex struct {
	// embedder converts chunk and query text to dense vectors.
	embedder Embedder

	// store performs persistence and vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewIndex constructs an EmbeddingIndex from the given Embedder and VectorStore.
// defaultTopK sets the fallback result count when Search is called with k <= 0.
func NewIndex(embedder Embedder, store VectorStore, defaultTopK int) (*EmbeddingIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &EmbeddingIndex{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Add embeds every entry and writes the batch to the store.
// An empty batch is a no-op.
func (x *EmbeddingIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("rag: embedding %d entries failed: %w", len(entries), err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("%w: %d entries, %d vectors", ErrVectorCountMismatch, len(entries), len(vectors))
	}

	if err := x.store.Upsert(ctx, entries, vectors); err != nil {
		return fmt.Errorf("rag: storing %d entries failed: %w", len(entries), err)
	}
	return nil
}

// Search embeds query and returns at most k hits matching filter.
// If k is 0 the defaultTopK configured at construction time is used.
func (x *EmbeddingIndex) Search(ctx context.Context, query string, k int, filter *Filter) ([]Hit, error) {
	if k <= 0 {
		k = x.defaultTopK
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	hits, err := x.store.Search(ctx, vectors[0], k, filter)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of entries in the underlying store.
func (x *EmbeddingIndex) Count(ctx context.Context) (int, error) {
	n, err := x.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("rag: count failed: %w", err)
	}
	return n, nil
}

// Close closes the underlying store.
func (x *EmbeddingIndex) Close() error {
	return x.store.Close()
}
