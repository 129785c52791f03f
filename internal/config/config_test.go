package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/meetmind/internal/provider"
	"github.com/54b3r/meetmind/internal/qa"
)

// clearEnv unsets every env var the config layer reads so tests start from
// defaults regardless of the developer's shell. t.Setenv restores the
// original values on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{"MEETMIND_CONFIG", "OPENAI_BASE_URL", "BEDROCK_API_KEY"}
	for _, m := range envMapping {
		keys = append(keys, m.envKey)
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("MEETMIND_DB", filepath.Join(t.TempDir(), "meetmind.db"))
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embeddings:
  provider: openai
  model: text-embedding-3-large
llm:
  provider: azure
  max_tokens: 1024
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
rag:
  chunk_size: 800
  chunk_overlap: 100
  top_k: 8
vector:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
    collection: calls
logging:
  level: debug
  format: text
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"EMBEDDINGS_PROVIDER":      "openai",
		"EMBEDDING_MODEL":          "text-embedding-3-large",
		"LLM_PROVIDER":             "azure",
		"MODEL_MAX_TOKENS":         "1024",
		"MODEL_TEMPERATURE":        "0.3",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"CHUNK_SIZE":               "800",
		"CHUNK_OVERLAP":            "100",
		"TOP_K":                    "8",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_COLLECTION":        "calls",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "meetmind.toml")

	content := []byte(`
[llm]
provider = "huggingface"

[llm.huggingface]
model = "mistralai/Mistral-7B-Instruct-v0.3"

[whisper]
device = "cpu"
language = "en"

[redis]
url = "redis://localhost:6379/0"
cache_ttl = "24h"
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	checks := map[string]string{
		"LLM_PROVIDER":        "huggingface",
		"HF_LLM_MODEL":        "mistralai/Mistral-7B-Instruct-v0.3",
		"WHISPER_DEVICE":      "cpu",
		"WHISPER_LANGUAGE":    "en",
		"REDIS_URL":           "redis://localhost:6379/0",
		"EMBEDDING_CACHE_TTL": "24h",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvWins(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("llm:\n  provider: openai\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LLM_PROVIDER", "local")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("LLM_PROVIDER"); got != "local" {
		t.Errorf("LLM_PROVIDER: got %q, want %q (env should win)", got, "local")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TOP_K=9\nQDRANT_HOST=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meetmind.yaml"), []byte("vector:\n  qdrant:\n    host: from-file\n    collection: c\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != "meetmind.yaml" {
		t.Errorf("loaded path: got %q, want meetmind.yaml", loaded)
	}
	if got := os.Getenv("TOP_K"); got != "9" {
		t.Errorf("TOP_K: got %q, want 9", got)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "from-dotenv" {
		t.Errorf("QDRANT_HOST: got %q, want .env value to beat the config file", got)
	}
	if got := os.Getenv("QDRANT_COLLECTION"); got != "c" {
		t.Errorf("QDRANT_COLLECTION: got %q, want c", got)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if s.Embeddings.Provider != "local" || s.LLM.Provider != "local" {
		t.Errorf("providers = %q/%q, want local/local", s.Embeddings.Provider, s.LLM.Provider)
	}
	if s.LLM.Model != DefaultOllamaModel || s.LLM.BaseURL != DefaultOllamaHost {
		t.Errorf("local LLM = %q at %q", s.LLM.Model, s.LLM.BaseURL)
	}
	if s.RAG.ChunkSize != 1000 || s.RAG.ChunkOverlap != 200 || s.RAG.TopK != 5 {
		t.Errorf("rag = %+v", s.RAG)
	}
	if s.RAG.PromptTemplate != qa.DefaultPromptTemplate {
		t.Error("expected default prompt template")
	}
	if s.Vector.Backend != VectorQdrant || s.Vector.Port != 6334 || s.Vector.Collection != DefaultCollection {
		t.Errorf("vector = %+v", s.Vector)
	}
	if s.CacheTTL != 7*24*time.Hour {
		t.Errorf("CacheTTL = %v", s.CacheTTL)
	}
	if s.Whisper.Model != "large-v3" || s.Whisper.Language != "ru" {
		t.Errorf("whisper = %+v", s.Whisper)
	}
}

func TestFromEnv_ProviderCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBEDDINGS_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_PROVIDER", "huggingface")
	t.Setenv("HUGGINGFACE_API_TOKEN", "hf_test")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	ec := s.EmbedderConfig()
	if ec.Provider != "openai" || ec.APIKey != "sk-test" {
		t.Errorf("embedder config = %+v", ec)
	}

	pc := s.ProviderConfig()
	if pc.Backend != provider.BackendHuggingFace || pc.APIKey != "hf_test" || pc.Model != DefaultHFModel {
		t.Errorf("provider config = %+v", pc)
	}
	if pc.Temperature != 0.1 {
		t.Errorf("huggingface default temperature = %v, want 0.1", pc.Temperature)
	}
	if err := pc.Validate(); err != nil {
		t.Errorf("resolved provider config should validate: %v", err)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "overlap equals size", env: map[string]string{"CHUNK_SIZE": "500", "CHUNK_OVERLAP": "500"}},
		{name: "negative overlap", env: map[string]string{"CHUNK_OVERLAP": "-1"}},
		{name: "zero top k", env: map[string]string{"TOP_K": "0"}},
		{name: "non-numeric chunk size", env: map[string]string{"CHUNK_SIZE": "big"}},
		{name: "template without question", env: map[string]string{"PROMPT_TEMPLATE": "{context}"}},
		{name: "unknown vector backend", env: map[string]string{"VECTOR_BACKEND": "chroma"}},
		{name: "bad ttl", env: map[string]string{"EMBEDDING_CACHE_TTL": "a week"}},
		{name: "bad tls flag", env: map[string]string{"QDRANT_TLS": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("FromEnv() error = %v, want ErrInvalidSettings", err)
			}
		})
	}
}
