//go:build integration

package embedder

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOllamaEmbedder_Integration embeds a bilingual pair against a running
// Ollama daemon and checks the vectors look sane. Requires the model to be
// pulled first (ollama pull bge-m3).
//
//	OLLAMA_HOST=http://localhost:11434 go test -tags=integration ./internal/embedder/
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultLocalModel
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model, KeepAlive: "1m"})
	vecs, err := emb.Embed(ctx, []string{
		"Deadline for the release is Friday.",
		"Срок релиза в пятницу.",
		"Бюджет на следующий квартал утверждён.",
	})
	require.NoError(t, err, "is ollama running with %q pulled?", model)
	require.Len(t, vecs, 3)

	for i, v := range vecs {
		require.NotEmpty(t, v, "vector %d", i)
		assert.Len(t, v, len(vecs[0]), "vector %d has a different size", i)
	}
	t.Logf("model=%s dim=%d", model, len(vecs[0]))

	// the two release sentences are translations of each other
	same := cosine(vecs[0], vecs[1])
	other := cosine(vecs[0], vecs[2])
	assert.Greater(t, same, other, "translation pair should be closer than an unrelated sentence")
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
