package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/meetmind/internal/chunker"
	"github.com/54b3r/meetmind/internal/embedder"
	"github.com/54b3r/meetmind/internal/provider"
	"github.com/54b3r/meetmind/internal/qa"
)

// ErrInvalidSettings is returned when the environment holds a malformed or
// inconsistent value.
var ErrInvalidSettings = errors.New("config: invalid settings")

// Vector backends.
const (
	VectorQdrant = "qdrant"
	VectorMemory = "memory"
)

// Default values applied when the corresponding env var is unset.
const (
	DefaultEmbeddingsProvider = "local"
	DefaultLLMProvider        = "local"
	DefaultOllamaHost         = "http://localhost:11434"
	DefaultOllamaModel        = "llama3"
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultHFModel            = "mistralai/Mistral-7B-Instruct-v0.3"
	DefaultGeminiModel        = "gemini-1.5-flash"
	DefaultMaxTokens          = 512
	DefaultAzureAPIVersion    = "2025-04-01-preview"
	DefaultQdrantHost         = "localhost"
	DefaultQdrantPort         = 6334
	DefaultCollection         = "meetmind_transcripts"
	DefaultWhisperBinary      = "whisperx"
	DefaultWhisperModel       = "large-v3"
	DefaultWhisperDevice      = "cuda"
	DefaultWhisperCompute     = "float16"
	DefaultWhisperLanguage    = "ru"
	DefaultUploadDir          = "./media_uploads"
	DefaultCacheTTL           = 7 * 24 * time.Hour
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 8000
	DefaultRateLimitRPS       = 5
	DefaultRateLimitBurst     = 10
)

// Settings is the fully resolved runtime configuration. It is built once by
// FromEnv and passed explicitly to every constructor that needs it.
type Settings struct {
	Embeddings EmbeddingSettings
	LLM        LLMSettings
	RAG        RAGSettings
	Vector     VectorSettings
	Whisper    WhisperSettings
	Server     ServerSettings

	// DBPath is the SQLite database path for transcripts and search history.
	DBPath string

	// RedisURL enables the embedding cache when non-empty.
	RedisURL string

	// CacheTTL is the lifetime of cached embeddings.
	CacheTTL time.Duration
}

// EmbeddingSettings selects the embedding provider.
type EmbeddingSettings struct {
	Provider   string
	Model      string
	Endpoint   string
	APIKey     string
	Dimensions int
	APIVersion string
}

// LLMSettings selects the answer generator.
type LLMSettings struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	APIVersion  string
	MaxTokens   int
	Temperature float32
}

// RAGSettings tunes chunking, retrieval and the prompt.
type RAGSettings struct {
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	PromptTemplate  string
	MaxPromptTokens int
}

// VectorSettings selects and configures the vector index.
type VectorSettings struct {
	Backend    string
	Host       string
	Port       int
	Collection string
	APIKey     string
	TLS        bool
}

// WhisperSettings configures audio transcription.
type WhisperSettings struct {
	Binary      string
	Model       string
	Device      string
	ComputeType string
	Language    string
	UploadDir   string
}

// ServerSettings configures the HTTP server.
type ServerSettings struct {
	Host           string
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
}

// FromEnv resolves Settings from environment variables, applying defaults
// for unset values. Call Load first to fold in config files. The result is
// validated.
func FromEnv() (*Settings, error) {
	p := &envParser{}

	s := &Settings{
		Embeddings: EmbeddingSettings{
			Provider:   strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", DefaultEmbeddingsProvider)),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: p.getInt("EMBEDDING_DIMENSIONS", 0),
		},
		LLM: LLMSettings{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", DefaultLLMProvider)),
			MaxTokens:   p.getInt("MODEL_MAX_TOKENS", DefaultMaxTokens),
			Temperature: p.getFloat32("MODEL_TEMPERATURE", 0),
		},
		RAG: RAGSettings{
			ChunkSize:       p.getInt("CHUNK_SIZE", chunker.DefaultChunkSize),
			ChunkOverlap:    p.getInt("CHUNK_OVERLAP", chunker.DefaultChunkOverlap),
			TopK:            p.getInt("TOP_K", qa.DefaultTopK),
			PromptTemplate:  getEnv("PROMPT_TEMPLATE", qa.DefaultPromptTemplate),
			MaxPromptTokens: p.getInt("MAX_PROMPT_TOKENS", 0),
		},
		Vector: VectorSettings{
			Backend:    strings.ToLower(getEnv("VECTOR_BACKEND", VectorQdrant)),
			Host:       getEnv("QDRANT_HOST", DefaultQdrantHost),
			Port:       p.getInt("QDRANT_PORT", DefaultQdrantPort),
			Collection: getEnv("QDRANT_COLLECTION", DefaultCollection),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			TLS:        p.getBool("QDRANT_TLS", false),
		},
		Whisper: WhisperSettings{
			Binary:      getEnv("WHISPERX_BIN", DefaultWhisperBinary),
			Model:       getEnv("WHISPER_MODEL", DefaultWhisperModel),
			Device:      getEnv("WHISPER_DEVICE", DefaultWhisperDevice),
			ComputeType: getEnv("WHISPER_COMPUTE_TYPE", DefaultWhisperCompute),
			Language:    getEnv("WHISPER_LANGUAGE", DefaultWhisperLanguage),
			UploadDir:   getEnv("MEDIA_UPLOAD_DIR", DefaultUploadDir),
		},
		Server: ServerSettings{
			Host:           getEnv("MEETMIND_HOST", DefaultHost),
			Port:           p.getInt("MEETMIND_PORT", DefaultPort),
			RateLimitRPS:   p.getFloat64("RATE_LIMIT_RPS", DefaultRateLimitRPS),
			RateLimitBurst: p.getInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		},
		DBPath:   os.Getenv("MEETMIND_DB"),
		RedisURL: os.Getenv("REDIS_URL"),
		CacheTTL: p.getDuration("EMBEDDING_CACHE_TTL", DefaultCacheTTL),
	}

	s.resolveEmbeddingCredentials()
	s.resolveLLMCredentials()

	if s.DBPath == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		s.DBPath = path
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// resolveEmbeddingCredentials fills endpoint and key from the provider's own
// env vars when the EMBEDDING_* overrides are unset.
func (s *Settings) resolveEmbeddingCredentials() {
	e := &s.Embeddings
	e.APIKey = os.Getenv("EMBEDDING_API_KEY")
	e.Endpoint = os.Getenv("EMBEDDING_ENDPOINT")
	switch e.Provider {
	case embedder.ProviderLocal, embedder.ProviderOllama:
		e.Endpoint = firstNonEmpty(e.Endpoint, os.Getenv("OLLAMA_HOST"))
	case embedder.ProviderOpenAI:
		e.APIKey = firstNonEmpty(e.APIKey, os.Getenv("OPENAI_API_KEY"))
	case embedder.ProviderAzure:
		e.APIKey = firstNonEmpty(e.APIKey, os.Getenv("AZURE_OPENAI_API_KEY"))
		e.Endpoint = firstNonEmpty(e.Endpoint, os.Getenv("AZURE_OPENAI_ENDPOINT"))
		e.APIVersion = getEnv("AZURE_OPENAI_API_VERSION", DefaultAzureAPIVersion)
	case embedder.ProviderHuggingFace:
		e.APIKey = firstNonEmpty(e.APIKey, os.Getenv("HUGGINGFACE_API_TOKEN"))
	case embedder.ProviderGemini:
		e.APIKey = firstNonEmpty(e.APIKey, os.Getenv("GOOGLE_API_KEY"))
	}
}

// resolveLLMCredentials fills model, endpoint and key from the selected
// provider's env vars.
func (s *Settings) resolveLLMCredentials() {
	l := &s.LLM
	switch provider.Backend(l.Provider) {
	case provider.BackendLocal, provider.BackendOllama:
		l.Model = getEnv("OLLAMA_MODEL", DefaultOllamaModel)
		l.BaseURL = getEnv("OLLAMA_HOST", DefaultOllamaHost)
	case provider.BackendOpenAI:
		l.Model = getEnv("OPENAI_MODEL", DefaultOpenAIModel)
		l.APIKey = os.Getenv("OPENAI_API_KEY")
		l.BaseURL = os.Getenv("OPENAI_BASE_URL")
	case provider.BackendAzure:
		l.Model = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		l.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		l.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		l.APIVersion = getEnv("AZURE_OPENAI_API_VERSION", DefaultAzureAPIVersion)
	case provider.BackendHuggingFace:
		l.Model = getEnv("HF_LLM_MODEL", DefaultHFModel)
		l.APIKey = os.Getenv("HUGGINGFACE_API_TOKEN")
		if os.Getenv("MODEL_TEMPERATURE") == "" {
			l.Temperature = 0.1
		}
	case provider.BackendBedrock:
		l.Model = os.Getenv("BEDROCK_MODEL_ID")
		l.BaseURL = os.Getenv("BEDROCK_ENDPOINT")
		l.APIKey = os.Getenv("BEDROCK_API_KEY")
	case provider.BackendGemini:
		l.Model = getEnv("GEMINI_MODEL", DefaultGeminiModel)
		l.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
}

// Validate checks cross-field constraints. Unknown provider identifiers are
// left to the resources package, which reports them as ErrUnknownProvider.
func (s *Settings) Validate() error {
	r := s.RAG
	if r.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive, got %d", ErrInvalidSettings, r.ChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must satisfy 0 <= overlap < CHUNK_SIZE, got %d (size %d)",
			ErrInvalidSettings, r.ChunkOverlap, r.ChunkSize)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("%w: TOP_K must be positive, got %d", ErrInvalidSettings, r.TopK)
	}
	if err := qa.ValidateTemplate(r.PromptTemplate); err != nil {
		return fmt.Errorf("%w: PROMPT_TEMPLATE: %w", ErrInvalidSettings, err)
	}
	switch s.Vector.Backend {
	case VectorQdrant, VectorMemory:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND must be qdrant or memory, got %q", ErrInvalidSettings, s.Vector.Backend)
	}
	if s.Vector.Port <= 0 || s.Vector.Port > 65535 {
		return fmt.Errorf("%w: QDRANT_PORT out of range: %d", ErrInvalidSettings, s.Vector.Port)
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("%w: MEETMIND_PORT out of range: %d", ErrInvalidSettings, s.Server.Port)
	}
	return nil
}

// EmbedderConfig returns the embedder factory configuration.
func (s *Settings) EmbedderConfig() *embedder.Config {
	e := s.Embeddings
	return &embedder.Config{
		Provider:   e.Provider,
		Model:      e.Model,
		Endpoint:   e.Endpoint,
		APIKey:     e.APIKey,
		Dimensions: e.Dimensions,
		APIVersion: e.APIVersion,
	}
}

// ProviderConfig returns the chat model factory configuration.
func (s *Settings) ProviderConfig() *provider.Config {
	l := s.LLM
	return &provider.Config{
		Backend:         provider.Backend(l.Provider),
		Model:           l.Model,
		BaseURL:         l.BaseURL,
		APIKey:          l.APIKey,
		AzureAPIVersion: l.APIVersion,
		MaxTokens:       l.MaxTokens,
		Temperature:     l.Temperature,
	}
}

// DefaultDBPath returns ~/.meetmind/meetmind.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".meetmind", "meetmind.db"), nil
}

// envParser reads typed env vars and remembers the first parse failure.
type envParser struct {
	first error
}

func (p *envParser) fail(key, val string, err error) {
	if p.first == nil {
		p.first = fmt.Errorf("%w: %s=%q: %w", ErrInvalidSettings, key, val, err)
	}
}

func (p *envParser) err() error { return p.first }

func (p *envParser) getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *envParser) getFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return float32(f)
}

func (p *envParser) getFloat64(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *envParser) getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *envParser) getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

// getEnv returns the value of key, or fallback when unset or empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
