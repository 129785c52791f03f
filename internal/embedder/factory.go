// Package embedder provides implementations of the rag.Embedder interface for
// converting transcript chunks and questions into dense vector embeddings.
// Each implementation talks to a different backend: Ollama (the "local"
// provider), OpenAI, Azure OpenAI and the Hugging Face Inference API over
// plain HTTP, Google Gemini through the genai SDK, and a deterministic
// in-process hashing embedder for offline use. Any of them can be wrapped in
// a Redis-backed cache.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/54b3r/meetmind/internal/rag"
)

// Provider identifiers accepted by New.
const (
	ProviderOpenAI      = "openai"
	ProviderAzure       = "azure"
	ProviderLocal       = "local"
	ProviderOllama      = "ollama"
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderHash        = "memory"
)

// Default embedding models per backend.
const (
	defaultOpenAIModel      = "text-embedding-3-small"
	defaultLocalModel       = "bge-m3"
	defaultHuggingFaceModel = "BAAI/bge-m3"
	defaultGeminiModel      = "text-embedding-004"

	defaultOpenAIDimensions = 1536
	// defaultBGEDimensions is the output size of bge-m3, served both by
	// Ollama and by the Hugging Face Inference API.
	defaultBGEDimensions    = 1024
	defaultGeminiDimensions = 768
	defaultHashDimensions   = 256
)

// ErrUnknownProvider is returned for an unrecognised provider identifier.
var ErrUnknownProvider = errors.New("embedder: unknown provider")

// Config selects and configures an embedding backend.
type Config struct {
	// Provider is one of the Provider* identifiers.
	Provider string

	// Model overrides the backend's default embedding model.
	Model string

	// Endpoint overrides the backend's default base URL. Required for azure.
	Endpoint string

	// APIKey is the credential for openai, azure, huggingface and gemini.
	APIKey string

	// Dimensions overrides the vector size (0 = backend default).
	Dimensions int

	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string
}

// Supported reports whether provider is a recognised identifier.
func Supported(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderOpenAI, ProviderAzure, ProviderLocal, ProviderOllama,
		ProviderHuggingFace, ProviderGemini, ProviderHash:
		return true
	default:
		return false
	}
}

// DefaultDimensions returns the embedding vector size for cfg. Callers that
// need to pre-configure a vector store (e.g. Qdrant collection creation)
// should use this rather than hardcoding a value. An explicit
// cfg.Dimensions always takes precedence.
func DefaultDimensions(cfg *Config) int {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderLocal, ProviderOllama, ProviderHuggingFace:
		return defaultBGEDimensions
	case ProviderGemini:
		return defaultGeminiDimensions
	case ProviderHash:
		return defaultHashDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs the rag.Embedder selected by cfg.Provider. Missing
// credentials are reported here so misconfiguration fails at startup
// rather than on the first request.
func New(ctx context.Context, cfg *Config) (rag.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderLocal, ProviderOllama:
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: orDefault(cfg.Model, defaultLocalModel),
		}), nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    orDefault(cfg.Endpoint, "https://api.openai.com/v1"),
			APIKey:     cfg.APIKey,
			Model:      orDefault(cfg.Model, defaultOpenAIModel),
			Dimensions: cfg.Dimensions,
		}), nil

	case ProviderAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      orDefault(cfg.Model, defaultOpenAIModel),
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: orDefault(cfg.APIVersion, "2025-04-01-preview"),
		}), nil

	case ProviderHuggingFace:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: huggingface requires HUGGINGFACE_API_TOKEN")
		}
		return NewHuggingFaceEmbedder(&HuggingFaceConfig{
			BaseURL: orDefault(cfg.Endpoint, defaultHuggingFaceURL),
			Token:   cfg.APIKey,
			Model:   orDefault(cfg.Model, defaultHuggingFaceModel),
		}), nil

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      orDefault(cfg.Model, defaultGeminiModel),
			Dimensions: DefaultDimensions(cfg),
		})

	case ProviderHash:
		return NewHashEmbedder(DefaultDimensions(cfg)), nil

	default:
		return nil, fmt.Errorf("%w %q (valid: openai, azure, local, ollama, huggingface, gemini, memory)", ErrUnknownProvider, cfg.Provider)
	}
}

// orDefault returns v, or fallback when v is empty.
func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
