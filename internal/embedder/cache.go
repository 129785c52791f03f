package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/54b3r/meetmind/internal/rag"
)

// defaultCacheTTL is how long a cached vector lives when no TTL is given.
const defaultCacheTTL = 7 * 24 * time.Hour

// CachedEmbedder is a read-through Redis cache in front of another
// embedder. Vectors are keyed by model and the SHA-256 of the text, so the
// same chunk re-indexed later (or the same question asked twice) skips the
// provider call. Redis failures are logged and bypassed; they never fail an
// Embed call on their own.
type CachedEmbedder struct {
	inner  rag.Embedder
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewCachedEmbedder wraps inner with a cache stored in client. model
// namespaces the keys so switching models never returns stale vectors.
func NewCachedEmbedder(inner rag.Embedder, client redis.Cmdable, model string, ttl time.Duration, log *slog.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		prefix: "meetmind:emb:" + model + ":",
		ttl:    ttl,
		log:    log,
	}
}

// Key returns the cache key for text.
func (c *CachedEmbedder) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Embed returns cached vectors where available and embeds only the misses,
// in a single call to the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.Key(t)
	}

	out := make([][]float32, len(texts))
	var missIdx []int

	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("embedder: cache read failed, bypassing", slog.String("error", err.Error()))
		cached = make([]any, len(texts))
	}
	for i, v := range cached {
		s, isStr := v.(string)
		if !isStr {
			missIdx = append(missIdx, i)
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			missIdx = append(missIdx, i)
			continue
		}
		out[i] = vec
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}
	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(missTexts), len(fresh))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("embedder: cache write failed", slog.String("error", err.Error()))
	}

	c.log.Debug("embedder: cache lookup",
		slog.Int("hits", len(texts)-len(missIdx)),
		slog.Int("misses", len(missIdx)),
	)
	return out, nil
}
