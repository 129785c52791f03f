package rag

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine
// similarity. It backs the "memory" vector backend for local runs and tests;
// contents are lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	vectors [][]float32
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert appends entries and their vectors. Metadata maps are copied so
// later caller mutations do not leak into the store.
func (s *MemoryStore) Upsert(ctx context.Context, entries []Entry, vectors [][]float32) error {
	if len(entries) != len(vectors) {
		return fmt.Errorf("%w: %d entries, %d vectors", ErrVectorCountMismatch, len(entries), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range entries {
		md := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		s.entries = append(s.entries, Entry{Text: e.Text, Metadata: md})
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Search scores every entry that matches filter and returns the topK best.
// Ties keep insertion order. Returned metadata maps are copies.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.entries))
	for i, e := range s.entries {
		if !filter.Matches(e.Metadata) {
			continue
		}
		hits = append(hits, Hit{
			Text:     e.Text,
			Metadata: e.Metadata,
			Score:    cosine(vector, s.vectors[i]),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	for i := range hits {
		hits[i].Metadata = maps.Clone(hits[i].Metadata)
	}
	return hits, nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// cosine returns the cosine similarity of a and b over their common length.
// Zero vectors score 0.
func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
