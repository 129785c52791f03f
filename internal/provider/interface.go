// Package provider selects and constructs the chat model that generates
// answers from rendered prompts. Supported backends: Ollama ("local"),
// OpenAI, Azure OpenAI, the Hugging Face router, AWS Bedrock and Google
// Gemini. Every backend is an eino chat model; Generator narrows it to the
// single-shot prompt-in, text-out capability the answering pipeline needs.
package provider

import (
	"context"
	"errors"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendLocal selects a locally running Ollama instance.
	BackendLocal Backend = "local"
	// BackendOllama is an alias of BackendLocal.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendHuggingFace selects the Hugging Face OpenAI-compatible router.
	BackendHuggingFace Backend = "huggingface"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ErrUnknownBackend is returned for an unrecognised backend identifier.
var ErrUnknownBackend = errors.New("provider: unknown backend")

// Config holds all provider-level configuration resolved by the config
// package from environment variables or config files.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name, deployment name (Azure) or repo id (Hugging Face).
	Model string

	// BaseURL overrides the default API endpoint (Ollama host, Azure endpoint,
	// Hugging Face router, Bedrock-compatible endpoint).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0-1.0).
	Temperature float32
}

// Generator maps a fully rendered prompt to the model's raw completion text.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
