// Package config provides file-based configuration for meetmind.
// Configuration is loaded with a layered precedence: defaults → config file →
// .env → env vars. Environment variables always win, so a deployment can
// override any single setting without editing the file.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. MEETMIND_CONFIG environment variable
//  3. ~/.meetmind/config.yaml
//  4. ./meetmind.yaml
//
// A file ending in .toml is parsed as TOML; anything else as YAML. Both use
// the same schema. If no file is found the system runs entirely from env
// vars. Settings then resolves the environment into a typed value.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File is the top-level configuration file structure.
// Field names mirror the env var naming (lowercase, underscored).
type File struct {
	// Embeddings configures the embedding provider.
	Embeddings EmbeddingsFile `yaml:"embeddings" toml:"embeddings"`

	// LLM configures the answer generator.
	LLM LLMFile `yaml:"llm" toml:"llm"`

	// RAG configures chunking, retrieval and the prompt.
	RAG RAGFile `yaml:"rag" toml:"rag"`

	// Vector configures the vector index backend.
	Vector VectorFile `yaml:"vector" toml:"vector"`

	// Database configures the transcript and search-history store.
	Database DatabaseFile `yaml:"database" toml:"database"`

	// Whisper configures audio transcription.
	Whisper WhisperFile `yaml:"whisper" toml:"whisper"`

	// Redis configures the embedding cache.
	Redis RedisFile `yaml:"redis" toml:"redis"`

	// Server configures the HTTP server.
	Server ServerFile `yaml:"server" toml:"server"`

	// Logging configures structured logging.
	Logging LoggingFile `yaml:"logging" toml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingFile `yaml:"tracing" toml:"tracing"`
}

// EmbeddingsFile holds embedding provider settings.
type EmbeddingsFile struct {
	// Provider selects the backend: openai, azure, local, huggingface, gemini, memory.
	Provider string `yaml:"provider" toml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" toml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions" toml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// LLMFile holds answer generator settings.
type LLMFile struct {
	// Provider selects the backend: openai, azure, local, huggingface, bedrock, gemini.
	Provider string `yaml:"provider" toml:"provider"`
	// MaxTokens is the maximum number of tokens in the answer.
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens"`
	// Temperature controls answer randomness (0.0-1.0).
	Temperature float32 `yaml:"temperature" toml:"temperature"`

	Ollama      OllamaFile      `yaml:"ollama" toml:"ollama"`
	OpenAI      OpenAIFile      `yaml:"openai" toml:"openai"`
	Azure       AzureFile       `yaml:"azure" toml:"azure"`
	HuggingFace HuggingFaceFile `yaml:"huggingface" toml:"huggingface"`
	Bedrock     BedrockFile     `yaml:"bedrock" toml:"bedrock"`
	Gemini      GeminiFile      `yaml:"gemini" toml:"gemini"`
}

// OllamaFile holds Ollama settings, shared by the local embedder and generator.
type OllamaFile struct {
	Host  string `yaml:"host" toml:"host"`
	Model string `yaml:"model" toml:"model"`
}

// OpenAIFile holds OpenAI settings.
type OpenAIFile struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

// AzureFile holds Azure OpenAI settings.
type AzureFile struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key" toml:"api_key"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Deployment string `yaml:"deployment" toml:"deployment"`
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

// HuggingFaceFile holds Hugging Face settings.
type HuggingFaceFile struct {
	// APIToken is the Hugging Face token. Prefer env var HUGGINGFACE_API_TOKEN.
	APIToken string `yaml:"api_token" toml:"api_token"`
	Model    string `yaml:"model" toml:"model"`
}

// BedrockFile holds Bedrock settings.
type BedrockFile struct {
	ModelID  string `yaml:"model_id" toml:"model_id"`
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// GeminiFile holds Google Gemini settings.
type GeminiFile struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

// RAGFile holds chunking and retrieval settings.
type RAGFile struct {
	ChunkSize       int    `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap" toml:"chunk_overlap"`
	TopK            int    `yaml:"top_k" toml:"top_k"`
	PromptTemplate  string `yaml:"prompt_template" toml:"prompt_template"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens" toml:"max_prompt_tokens"`
}

// VectorFile holds vector index settings.
type VectorFile struct {
	// Backend is qdrant or memory.
	Backend string     `yaml:"backend" toml:"backend"`
	Qdrant  QdrantFile `yaml:"qdrant" toml:"qdrant"`
}

// QdrantFile holds Qdrant connection settings.
type QdrantFile struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	Collection string `yaml:"collection" toml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	TLS    bool   `yaml:"tls" toml:"tls"`
}

// DatabaseFile holds SQLite settings.
type DatabaseFile struct {
	Path string `yaml:"path" toml:"path"`
}

// WhisperFile holds transcription settings.
type WhisperFile struct {
	Binary      string `yaml:"binary" toml:"binary"`
	Model       string `yaml:"model" toml:"model"`
	Device      string `yaml:"device" toml:"device"`
	ComputeType string `yaml:"compute_type" toml:"compute_type"`
	Language    string `yaml:"language" toml:"language"`
	UploadDir   string `yaml:"upload_dir" toml:"upload_dir"`
}

// RedisFile holds embedding cache settings.
type RedisFile struct {
	URL string `yaml:"url" toml:"url"`
	// CacheTTL is a Go duration string, e.g. "168h".
	CacheTTL string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// ServerFile holds HTTP server settings.
type ServerFile struct {
	Host           string  `yaml:"host" toml:"host"`
	Port           int     `yaml:"port" toml:"port"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" toml:"rate_limit_burst"`
}

// LoggingFile holds structured logging settings.
type LoggingFile struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format" toml:"format"`
}

// TracingFile holds Langfuse tracing settings.
type TracingFile struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key" toml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Host      string `yaml:"host" toml:"host"`
}

// envMapping maps config file fields to their corresponding env var names.
// Only non-empty file values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*File) string
}{
	{"EMBEDDINGS_PROVIDER", func(c *File) string { return c.Embeddings.Provider }},
	{"EMBEDDING_MODEL", func(c *File) string { return c.Embeddings.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *File) string { return intStr(c.Embeddings.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *File) string { return c.Embeddings.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *File) string { return c.Embeddings.Endpoint }},
	{"LLM_PROVIDER", func(c *File) string { return c.LLM.Provider }},
	{"MODEL_MAX_TOKENS", func(c *File) string { return intStr(c.LLM.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *File) string { return float32Str(c.LLM.Temperature) }},
	{"OLLAMA_HOST", func(c *File) string { return c.LLM.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *File) string { return c.LLM.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *File) string { return c.LLM.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *File) string { return c.LLM.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *File) string { return c.LLM.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *File) string { return c.LLM.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *File) string { return c.LLM.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *File) string { return c.LLM.Azure.APIVersion }},
	{"HUGGINGFACE_API_TOKEN", func(c *File) string { return c.LLM.HuggingFace.APIToken }},
	{"HF_LLM_MODEL", func(c *File) string { return c.LLM.HuggingFace.Model }},
	{"BEDROCK_MODEL_ID", func(c *File) string { return c.LLM.Bedrock.ModelID }},
	{"BEDROCK_ENDPOINT", func(c *File) string { return c.LLM.Bedrock.Endpoint }},
	{"GOOGLE_API_KEY", func(c *File) string { return c.LLM.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *File) string { return c.LLM.Gemini.Model }},
	{"CHUNK_SIZE", func(c *File) string { return intStr(c.RAG.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *File) string { return intStr(c.RAG.ChunkOverlap) }},
	{"TOP_K", func(c *File) string { return intStr(c.RAG.TopK) }},
	{"PROMPT_TEMPLATE", func(c *File) string { return c.RAG.PromptTemplate }},
	{"MAX_PROMPT_TOKENS", func(c *File) string { return intStr(c.RAG.MaxPromptTokens) }},
	{"VECTOR_BACKEND", func(c *File) string { return c.Vector.Backend }},
	{"QDRANT_HOST", func(c *File) string { return c.Vector.Qdrant.Host }},
	{"QDRANT_PORT", func(c *File) string { return intStr(c.Vector.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *File) string { return c.Vector.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *File) string { return c.Vector.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *File) string { return boolStr(c.Vector.Qdrant.TLS) }},
	{"MEETMIND_DB", func(c *File) string { return c.Database.Path }},
	{"WHISPERX_BIN", func(c *File) string { return c.Whisper.Binary }},
	{"WHISPER_MODEL", func(c *File) string { return c.Whisper.Model }},
	{"WHISPER_DEVICE", func(c *File) string { return c.Whisper.Device }},
	{"WHISPER_COMPUTE_TYPE", func(c *File) string { return c.Whisper.ComputeType }},
	{"WHISPER_LANGUAGE", func(c *File) string { return c.Whisper.Language }},
	{"MEDIA_UPLOAD_DIR", func(c *File) string { return c.Whisper.UploadDir }},
	{"REDIS_URL", func(c *File) string { return c.Redis.URL }},
	{"EMBEDDING_CACHE_TTL", func(c *File) string { return c.Redis.CacheTTL }},
	{"MEETMIND_HOST", func(c *File) string { return c.Server.Host }},
	{"MEETMIND_PORT", func(c *File) string { return intStr(c.Server.Port) }},
	{"RATE_LIMIT_RPS", func(c *File) string { return float64Str(c.Server.RateLimitRPS) }},
	{"RATE_LIMIT_BURST", func(c *File) string { return intStr(c.Server.RateLimitBurst) }},
	{"LOG_LEVEL", func(c *File) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *File) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *File) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *File) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *File) string { return c.Tracing.Host }},
}

// Load reads a .env file from the working directory (if present) and then a
// YAML or TOML config file, applying non-empty values as environment
// variables. Existing env vars are never overwritten, and .env values win
// over the config file. Returns the config file path that was loaded, or
// empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	if err := loadDotEnv(".env"); err != nil {
		return "", err
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no config file found, using env vars only")
		return "", nil
	}

	cfg, err := parseFile(path)
	if err != nil {
		return "", err
	}

	applied := 0
	for _, m := range envMapping {
		val := m.value(cfg)
		if val == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env wins
		}
		os.Setenv(m.envKey, val)
		applied++
	}

	log.Info("config: loaded config file",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// loadDotEnv applies path to the environment without overriding set vars.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// parseFile decodes path as TOML or YAML depending on its extension.
func parseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg File
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("MEETMIND_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".meetmind", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("meetmind.yaml"); err == nil {
		return "meetmind.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
