package provider

import (
	"context"
	"fmt"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Endpoints used when Config.BaseURL is empty.
const (
	defaultOllamaURL      = "http://localhost:11434"
	defaultHuggingFaceURL = "https://router.huggingface.co/v1"
)

// sampling returns pointers to the generation limits, as the eino configs
// expect optional values.
func sampling(cfg *Config) (maxTokens *int, temperature *float32) {
	n, t := cfg.MaxTokens, cfg.Temperature
	return &n, &t
}

func newOllama(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	m, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: orDefault(cfg.BaseURL, defaultOllamaURL),
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: ollama chat model: %w", err)
	}
	return m, nil
}

// newOpenAI also serves any OpenAI-compatible endpoint set in BaseURL.
func newOpenAI(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	maxTokens, temp := sampling(cfg)
	m, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   maxTokens,
		Temperature: temp,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: openai chat model: %w", err)
	}
	return m, nil
}

// newHuggingFace targets the Hugging Face router, which speaks the OpenAI
// chat-completions protocol.
func newHuggingFace(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	hf := *cfg
	hf.BaseURL = orDefault(cfg.BaseURL, defaultHuggingFaceURL)
	return newOpenAI(ctx, &hf)
}

// newAzure treats cfg.Model as the deployment name.
func newAzure(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	maxTokens, temp := sampling(cfg)
	m, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		ByAzure:     true,
		APIVersion:  cfg.AzureAPIVersion,
		MaxTokens:   maxTokens,
		Temperature: temp,
		// keep dots in deployment names such as "gpt-4.1"
		AzureModelMapperFunc: func(model string) string { return model },
	})
	if err != nil {
		return nil, fmt.Errorf("provider: azure chat model: %w", err)
	}
	return m, nil
}

// newBedrock goes through the ark runtime pointed at a Bedrock-compatible
// endpoint.
// TODO: switch to a native Bedrock component once eino-ext ships one.
func newBedrock(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	maxTokens, temp := sampling(cfg)
	m, err := einoark.NewChatModel(ctx, &einoark.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   maxTokens,
		Temperature: temp,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: bedrock chat model: %w", err)
	}
	return m, nil
}

func newGemini(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: gemini client: %w", err)
	}
	m, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: gemini chat model: %w", err)
	}
	return m, nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
