// Package rag defines the vector index used to store and retrieve transcript
// chunks: the Index contract consumed by the indexing and answering
// pipelines, the lower-level VectorStore and Embedder interfaces it is built
// from, and the metadata filter model.
// Concrete stores (Qdrant, in-memory) satisfy VectorStore so the pipelines
// never depend on a specific backend.
package rag

import (
	"context"
	"errors"
)

// Entry is one chunk of text plus the metadata copied from its parent
// transcript. Metadata values are primitives (string, integer, float, bool).
type Entry struct {
	// Text is the chunk content that gets embedded.
	Text string

	// Metadata holds transcript_id, filename, uploaded_at and optionally source_type.
	Metadata map[string]any
}

// Hit is a single similarity-search result.
type Hit struct {
	// Text is the stored chunk content.
	Text string

	// Metadata is the metadata stored alongside the chunk.
	Metadata map[string]any

	// Score is the backend's similarity score (higher is more similar).
	Score float32
}

// Index is the text-level vector index contract. Add embeds and stores
// entries; Search embeds the query and returns at most k hits ranked most
// similar first, restricted by filter when it is non-nil.
// Implementations must be safe to call from multiple goroutines.
type Index interface {
	Add(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, query string, k int, filter *Filter) ([]Hit, error)
	Count(ctx context.Context) (int, error)
}

// VectorStore persists pre-computed embeddings and answers nearest-neighbour
// queries. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores a batch of entries with their embeddings.
	// vectors must be parallel to entries.
	Upsert(ctx context.Context, entries []Entry, vectors [][]float32) error

	// Search returns the topK entries nearest to vector that satisfy filter.
	Search(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrVectorCountMismatch is returned when the number of vectors does not
// match the number of entries.
var ErrVectorCountMismatch = errors.New("rag: vector count does not match entry count")

// Reserved payload keys.
const (
	// ContentKey is the payload field holding the chunk text.
	ContentKey = "content"

	// TimestampKey is the metadata field holding the upload time in epoch seconds.
	TimestampKey = "uploaded_at"
)
