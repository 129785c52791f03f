package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// embeddingMarkers appear in the names of dedicated embedding models. A
// match here wins over any chat marker ("mistral-embed", "bge-m3").
var embeddingMarkers = []string{"embed", "bge", "e5-", "gte-", "minilm", "mpnet"}

// chatMarkers identify chat/completion model families.
var chatMarkers = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama-3", "mistral", "mixtral", "gemma",
	"gemini-1", "gemini-2", "phi3", "claude", "deepseek", "qwen",
}

// looksLikeChatModel reports whether model is probably a chat model.
func looksLikeChatModel(model string) bool {
	name := strings.ToLower(model)
	for _, m := range embeddingMarkers {
		if strings.Contains(name, m) {
			return false
		}
	}
	for _, m := range chatMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Validate checks cfg before an embedder is built. An unknown provider is
// an error wrapping ErrUnknownProvider. Softer problems are logged: a chat
// model in EMBEDDING_MODEL, and EMBEDDING_DIMENSIONS on a backend that
// cannot shorten vectors, where it would only mis-size the vector store.
func Validate(cfg *Config, log *slog.Logger) error {
	provider := strings.ToLower(cfg.Provider)
	if !Supported(provider) {
		return fmt.Errorf("%w %q", ErrUnknownProvider, cfg.Provider)
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, retrieval quality will suffer",
			slog.String("provider", provider),
			slog.String("model", cfg.Model),
			slog.String("hint", "use an embedding model such as bge-m3 or text-embedding-3-small"),
		)
	}

	switch provider {
	case ProviderLocal, ProviderOllama, ProviderHuggingFace:
		if cfg.Dimensions > 0 && cfg.Dimensions != defaultBGEDimensions && cfg.Model == "" {
			log.Warn("embedder: EMBEDDING_DIMENSIONS differs from the default model output",
				slog.String("provider", provider),
				slog.Int("dimensions", cfg.Dimensions),
				slog.Int("model_dimensions", defaultBGEDimensions),
			)
		}
	}
	return nil
}
