package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

// fakeEmbedder maps each text to a fixed vector by lookup, falling back to
// a constant vector, and records how often it was called.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{0.1, 0.1, 0.1}
	}
	return out, nil
}

func TestFilter_Matches(t *testing.T) {
	t.Parallel()

	between := &Filter{Must: []Condition{
		{Field: TimestampKey, Gte: Bound(100)},
		{Field: TimestampKey, Lte: Bound(200)},
	}}

	tests := []struct {
		name   string
		filter *Filter
		md     map[string]any
		want   bool
	}{
		{"nil filter matches", nil, map[string]any{}, true},
		{"lower bound inclusive", between, map[string]any{TimestampKey: int64(100)}, true},
		{"upper bound inclusive", between, map[string]any{TimestampKey: 200}, true},
		{"inside", between, map[string]any{TimestampKey: 150.5}, true},
		{"below", between, map[string]any{TimestampKey: int64(99)}, false},
		{"above", between, map[string]any{TimestampKey: int64(201)}, false},
		{"missing field", between, map[string]any{"filename": "a.txt"}, false},
		{"non numeric field", between, map[string]any{TimestampKey: "150"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.filter.Matches(tt.md); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStore_SearchRanksAndFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	entries := []Entry{
		{Text: "old", Metadata: map[string]any{TimestampKey: int64(10)}},
		{Text: "mid", Metadata: map[string]any{TimestampKey: int64(20)}},
		{Text: "new", Metadata: map[string]any{TimestampKey: int64(30)}},
	}
	vectors := [][]float32{{1, 0}, {0.8, 0.2}, {0, 1}}
	if err := s.Upsert(ctx, entries, vectors); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	hits, err := s.Search(ctx, []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 3 || hits[0].Text != "old" || hits[1].Text != "mid" || hits[2].Text != "new" {
		t.Fatalf("unexpected ranking: %+v", hits)
	}

	f := &Filter{Must: []Condition{
		{Field: TimestampKey, Gte: Bound(15)},
		{Field: TimestampKey, Lte: Bound(30)},
	}}
	hits, err = s.Search(ctx, []float32{1, 0}, 5, f)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 2 || hits[0].Text != "mid" || hits[1].Text != "new" {
		t.Fatalf("unexpected filtered hits: %+v", hits)
	}

	hits, err = s.Search(ctx, []float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected topK to cap results at 1, got %d", len(hits))
	}
}

func TestMemoryStore_InvertedRangeIsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Upsert(ctx, []Entry{{Text: "a", Metadata: map[string]any{TimestampKey: int64(50)}}}, [][]float32{{1}})

	f := &Filter{Must: []Condition{
		{Field: TimestampKey, Gte: Bound(100)},
		{Field: TimestampKey, Lte: Bound(10)},
	}}
	hits, err := s.Search(ctx, []float32{1}, 5, f)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits for inverted range, got %d", len(hits))
	}
}

func TestMemoryStore_SearchMetadataIsCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	entries := []Entry{{Text: "a", Metadata: map[string]any{TimestampKey: int64(50), "filename": "standup.txt"}}}
	if err := s.Upsert(ctx, entries, [][]float32{{1}}); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	hits, err := s.Search(ctx, []float32{1}, 5, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	hits[0].Metadata["filename"] = "changed.txt"
	delete(hits[0].Metadata, TimestampKey)

	hits, err = s.Search(ctx, []float32{1}, 5, &Filter{Must: []Condition{{Field: TimestampKey, Gte: Bound(10)}}})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected stored timestamp to survive caller mutation, got %d hits", len(hits))
	}
	if got := hits[0].Metadata["filename"]; got != "standup.txt" {
		t.Fatalf("filename = %v, want standup.txt", got)
	}
}

func TestMemoryStore_UpsertMismatch(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []Entry{{Text: "a"}}, nil)
	if !errors.Is(err, ErrVectorCountMismatch) {
		t.Fatalf("expected ErrVectorCountMismatch, got %v", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()
	if _, err := s.Count(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEmbeddingIndex_AddSearchCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"budget approved": {1, 0, 0},
		"deadline friday": {0, 1, 0},
		"when deadline":   {0, 0.9, 0.1},
	}}
	idx, err := NewIndex(emb, NewMemoryStore(), 0)
	if err != nil {
		t.Fatalf("NewIndex() error: %v", err)
	}

	err = idx.Add(ctx, []Entry{
		{Text: "budget approved", Metadata: map[string]any{"transcript_id": int64(1)}},
		{Text: "deadline friday", Metadata: map[string]any{"transcript_id": int64(1)}},
	})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("expected one batched embed call, got %d", emb.calls)
	}

	n, err := idx.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v; want 2, nil", n, err)
	}

	hits, err := idx.Search(ctx, "when deadline", 1, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 1 || hits[0].Text != "deadline friday" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestEmbeddingIndex_AddEmptyIsNoop(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	idx, _ := NewIndex(emb, NewMemoryStore(), 5)
	if err := idx.Add(context.Background(), nil); err != nil {
		t.Fatalf("Add(nil) error: %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called for empty batch")
	}
}

func TestEmbeddingIndex_EmbedFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	idx, _ := NewIndex(&fakeEmbedder{err: boom}, NewMemoryStore(), 5)

	if err := idx.Add(context.Background(), []Entry{{Text: "x"}}); !errors.Is(err, boom) {
		t.Fatalf("Add() expected wrapped boom, got %v", err)
	}
	if _, err := idx.Search(context.Background(), "x", 5, nil); !errors.Is(err, boom) {
		t.Fatalf("Search() expected wrapped boom, got %v", err)
	}
}

func TestNewIndex_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewIndex(nil, NewMemoryStore(), 5); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewIndex(&fakeEmbedder{}, nil, 5); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestToQdrantFilter(t *testing.T) {
	t.Parallel()

	if toQdrantFilter(nil) != nil {
		t.Fatal("nil filter should translate to nil")
	}

	f := toQdrantFilter(&Filter{Must: []Condition{
		{Field: TimestampKey, Gte: Bound(100)},
		{Field: TimestampKey, Lte: Bound(200)},
	}})
	if len(f.GetMust()) != 2 {
		t.Fatalf("expected 2 must conditions, got %d", len(f.GetMust()))
	}
	lower := f.GetMust()[0].GetField()
	upper := f.GetMust()[1].GetField()
	if lower.GetKey() != TimestampKey || lower.GetRange().GetGte() != 100 || lower.GetRange().Lte != nil {
		t.Errorf("unexpected lower condition: %v", lower)
	}
	if upper.GetKey() != TimestampKey || upper.GetRange().GetLte() != 200 || upper.GetRange().Gte != nil {
		t.Errorf("unexpected upper condition: %v", upper)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	e := Entry{Text: "hello", Metadata: map[string]any{
		"transcript_id": int64(7),
		"filename":      "standup.txt",
		"uploaded_at":   int64(1700000000),
	}}
	payload := qdrant.NewValueMap(toPayload(e))

	text, md := fromPayload(payload)
	if text != "hello" {
		t.Errorf("text = %q, want hello", text)
	}
	if md["transcript_id"] != int64(7) || md["filename"] != "standup.txt" || md["uploaded_at"] != int64(1700000000) {
		t.Errorf("unexpected metadata: %v", md)
	}
	if _, ok := md[ContentKey]; ok {
		t.Error("content key must not leak into metadata")
	}
}
