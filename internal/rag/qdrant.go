package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Qdrant connection defaults.
const (
	defaultQdrantHost       = "localhost"
	defaultQdrantPort       = 6334
	defaultQdrantCollection = "meetmind_transcripts"
)

// ErrDimensionMismatch is returned when an existing collection was created
// for vectors of a different size than the configured embedder produces.
// Switching EMBEDDING_PROVIDER needs a new QDRANT_COLLECTION.
var ErrDimensionMismatch = errors.New("rag: collection vector size does not match embedder")

// QdrantConfig locates the collection. Zero values select the defaults
// above, except VectorSize which is required.
type QdrantConfig struct {
	Host string
	// Port is the gRPC port, not the 6333 REST port.
	Port       int
	Collection string
	VectorSize uint64
	APIKey     string
	UseTLS     bool
}

// QdrantStore is the VectorStore for the "qdrant" backend. Each chunk is a
// point whose payload holds the text under ContentKey and every metadata
// field at the top level, so range filters address them directly.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	size       uint64
}

// NewQdrantStore connects and makes sure the collection exists with the
// configured vector size, creating it on first use.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = defaultQdrantHost
	}
	if port == 0 {
		port = defaultQdrantPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s:%d: %w", host, port, err)
	}

	s := &QdrantStore{client: client, collection: cfg.Collection, size: cfg.VectorSize}
	if s.collection == "" {
		s.collection = defaultQdrantCollection
	}
	if err := s.prepare(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Client exposes the underlying client for health checks.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// prepare creates the collection and its timestamp payload index, or
// checks the vector size of one that already exists.
func (s *QdrantStore) prepare(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant: lookup collection %q: %w", s.collection, err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("qdrant: describe collection %q: %w", s.collection, err)
		}
		// named-vector collections report no single size and are accepted as is
		if got := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); got != 0 && got != s.size {
			return fmt.Errorf("%w: %q holds %d-dim vectors, embedder produces %d", ErrDimensionMismatch, s.collection, got, s.size)
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", s.collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      TimestampKey,
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: index %q: %w", TimestampKey, err)
	}
	return nil
}

// Upsert stores each entry as a fresh point in one request and waits until
// the write is applied, so a following Search sees it.
func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry, vectors [][]float32) error {
	if len(entries) != len(vectors) {
		return fmt.Errorf("%w: %d entries, %d vectors", ErrVectorCountMismatch, len(entries), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for i, e := range entries {
		payload, err := qdrant.TryValueMap(toPayload(e))
		if err != nil {
			return fmt.Errorf("qdrant: invalid payload for entry %d: %w", i, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search performs a cosine similarity search restricted by filter and
// returns at most topK results, most similar first.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         toQdrantFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		text, md := fromPayload(r.GetPayload())
		hits = append(hits, Hit{Text: text, Metadata: md, Score: r.GetScore()})
	}

	return hits, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error { return s.client.Close() }

// toPayload flattens an entry into a Qdrant payload map.
func toPayload(e Entry) map[string]any {
	payload := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		payload[k] = v
	}
	payload[ContentKey] = e.Text
	return payload
}

// fromPayload splits a Qdrant payload back into chunk text and metadata.
func fromPayload(p map[string]*qdrant.Value) (string, map[string]any) {
	md := make(map[string]any, len(p))
	var text string
	for k, v := range p {
		if k == ContentKey {
			text = v.GetStringValue()
			continue
		}
		md[k] = fromValue(v)
	}
	return text, md
}

// fromValue converts a scalar Qdrant value to its Go equivalent.
// Nested structures are not produced by this package and decode to nil.
func fromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}

// toQdrantFilter translates a Filter into Qdrant's must-clause form: one
// range condition per Condition, all of which must match.
func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	conds := make([]*qdrant.Condition, 0, len(f.Must))
	for _, c := range f.Must {
		conds = append(conds, qdrant.NewRange(c.Field, &qdrant.Range{
			Gte: c.Gte,
			Lte: c.Lte,
		}))
	}
	return &qdrant.Filter{Must: conds}
}
