package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultHuggingFaceURL is the serverless Inference API router base.
const defaultHuggingFaceURL = "https://router.huggingface.co/hf-inference/models"

// HuggingFaceEmbedder implements rag.Embedder with the Hugging Face
// Inference API feature-extraction pipeline. It is safe for concurrent use.
type HuggingFaceEmbedder struct {
	call jsonCall
}

// HuggingFaceConfig holds the settings for constructing a HuggingFaceEmbedder.
type HuggingFaceConfig struct {
	// BaseURL is the models base URL; the model id and pipeline are appended.
	BaseURL string
	// Token is the Hugging Face API token.
	Token string
	// Model is the repository id of the embedding model (e.g. "BAAI/bge-m3").
	Model string
}

// NewHuggingFaceEmbedder constructs a HuggingFaceEmbedder from the given config.
func NewHuggingFaceEmbedder(cfg *HuggingFaceConfig) *HuggingFaceEmbedder {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.Token)
	return &HuggingFaceEmbedder{call: jsonCall{
		client:  &http.Client{Timeout: 60 * time.Second},
		url:     strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.Model + "/pipeline/feature-extraction",
		headers: headers,
	}}
}

// hfEmbedRequest is the JSON body sent to the feature-extraction endpoint.
type hfEmbedRequest struct {
	Inputs  []string       `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
}

// hfResponse decodes either the vector matrix of a successful call or the
// {"error": "..."} object the Inference API returns on failure.
type hfResponse struct {
	Embeddings [][]float32
	Error      string
}

func (r *hfResponse) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '{' {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		r.Error = e.Error
		return nil
	}
	return json.Unmarshal(b, &r.Embeddings)
}

// Embed converts a batch of texts into their corresponding embeddings.
// The request waits for a cold model to load rather than failing fast.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c := e.call
	c.body = hfEmbedRequest{
		Inputs:  texts,
		Options: map[string]any{"wait_for_model": true},
	}

	res, err := do(ctx, c, func(r *hfResponse) string { return r.Error })
	if err != nil {
		return nil, fmt.Errorf("huggingface embedder: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("huggingface embedder: %s", res.Error)
	}
	if err := checkCount(len(texts), len(res.Embeddings)); err != nil {
		return nil, fmt.Errorf("huggingface embedder: %w", err)
	}
	return res.Embeddings, nil
}
