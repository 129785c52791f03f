package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxOpenAIInputs is the per-request input limit of the embeddings API.
// Larger transcripts are split across several calls.
const maxOpenAIInputs = 2048

// OpenAIEmbedder serves both the "openai" and "azure" providers. The two
// differ only in URL layout and in how the key is presented. Safe for
// concurrent use.
type OpenAIEmbedder struct {
	call       jsonCall
	model      string
	dimensions int
	batch      int
}

// OpenAIConfig configures NewOpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI, or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	APIKey  string
	// Model is the model name, or the deployment name on Azure.
	Model string
	// Dimensions requests a shortened vector (0 keeps the model's size).
	Dimensions int
	// Azure switches to the deployments URL and the api-key header.
	Azure      bool
	APIVersion string
	// BatchSize overrides maxOpenAIInputs.
	BatchSize int
}

// NewOpenAIEmbedder builds an OpenAIEmbedder.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	headers := http.Header{}
	endpoint := base + "/embeddings"
	if cfg.Azure {
		headers.Set("api-key", cfg.APIKey)
		endpoint = base + "/deployments/" + url.PathEscape(cfg.Model) +
			"/embeddings?api-version=" + url.QueryEscape(cfg.APIVersion)
	} else {
		headers.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = maxOpenAIInputs
	}
	return &OpenAIEmbedder{
		call: jsonCall{
			client:  &http.Client{Timeout: 30 * time.Second},
			url:     endpoint,
			headers: headers,
		},
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batch:      batch,
	}
}

type openaiEmbedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format"`
}

type openaiEmbedding struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openaiEmbedResponse struct {
	Data  []openaiEmbedding `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := inBatches(ctx, texts, e.batch, e.embedBatch)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c := e.call
	c.body = openaiEmbedRequest{
		Input:          texts,
		Model:          e.model,
		Dimensions:     e.dimensions,
		EncodingFormat: "float",
	}

	res, err := do(ctx, c, func(r *openaiEmbedResponse) string {
		if r.Error == nil {
			return ""
		}
		return r.Error.Message
	})
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(texts), len(res.Data)); err != nil {
		return nil, err
	}

	// data is not guaranteed to arrive in input order
	out := make([][]float32, len(texts))
	for _, d := range res.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
