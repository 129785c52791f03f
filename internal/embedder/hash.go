package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// tokenPattern matches runs of letters or digits in any script.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashEmbedder is a deterministic bag-of-words embedder: each lower-cased
// token is hashed into one of a fixed number of buckets and the resulting
// count vector is L2-normalised. It needs no network or model and backs the
// "memory" provider used for offline runs and tests. Texts sharing words
// score higher under cosine similarity, which is enough for keyword-level
// retrieval.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of length dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions returns the vector length.
func (e *HashEmbedder) Dimensions() int { return e.dims }

// Embed returns one normalised vector per text. It honours cancellation
// but otherwise never fails.
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%uint32(e.dims)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
