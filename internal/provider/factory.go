package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
)

// requirement is one setting a backend cannot start without.
type requirement struct {
	// env names the variable the operator should set.
	env   string
	value func(*Config) string
}

var (
	needModel   = func(c *Config) string { return c.Model }
	needAPIKey  = func(c *Config) string { return c.APIKey }
	needBaseURL = func(c *Config) string { return c.BaseURL }
)

// backendDef ties a backend to its requirements and its constructor.
type backendDef struct {
	// label is the canonical backend name used in error messages.
	label    string
	requires []requirement
	build    func(ctx context.Context, cfg *Config) (model.BaseChatModel, error)
}

// backends is the registry consulted by Supported, Validate and New.
// Requirements are checked in order, so the first missing one is reported.
var backends = map[Backend]backendDef{
	BackendLocal:  ollamaDef,
	BackendOllama: ollamaDef,
	BackendOpenAI: {
		label:    "openai",
		requires: []requirement{{"OPENAI_API_KEY", needAPIKey}, {"OPENAI_MODEL", needModel}},
		build:    newOpenAI,
	},
	BackendAzure: {
		label: "azure",
		requires: []requirement{
			{"AZURE_OPENAI_API_KEY", needAPIKey},
			{"AZURE_OPENAI_ENDPOINT", needBaseURL},
			{"AZURE_OPENAI_DEPLOYMENT", needModel},
		},
		build: newAzure,
	},
	BackendHuggingFace: {
		label:    "huggingface",
		requires: []requirement{{"HUGGINGFACE_API_TOKEN", needAPIKey}, {"HF_LLM_MODEL", needModel}},
		build:    newHuggingFace,
	},
	BackendBedrock: {
		label:    "bedrock",
		requires: []requirement{{"BEDROCK_MODEL_ID", needModel}},
		build:    newBedrock,
	},
	BackendGemini: {
		label:    "gemini",
		requires: []requirement{{"GOOGLE_API_KEY", needAPIKey}, {"GEMINI_MODEL", needModel}},
		build:    newGemini,
	},
}

var ollamaDef = backendDef{
	label:    "local",
	requires: []requirement{{"OLLAMA_MODEL", needModel}},
	build:    newOllama,
}

func lookup(b Backend) (backendDef, bool) {
	def, ok := backends[Backend(strings.ToLower(string(b)))]
	return def, ok
}

// Supported reports whether b names a known backend. Matching is
// case-insensitive.
func Supported(b Backend) bool {
	_, ok := lookup(b)
	return ok
}

// Validate checks that cfg names a known backend and carries the settings
// that backend needs. Error messages name the env var to set.
func (cfg *Config) Validate() error {
	def, ok := lookup(cfg.Backend)
	if !ok {
		return fmt.Errorf("%w %q (valid: local, ollama, openai, azure, huggingface, bedrock, gemini)", ErrUnknownBackend, cfg.Backend)
	}
	for _, req := range def.requires {
		if req.value(cfg) == "" {
			return fmt.Errorf("provider: %s is required for the %s backend", req.env, def.label)
		}
	}
	return nil
}

// New validates cfg and builds the chat model for its backend, so
// misconfiguration surfaces at startup rather than on the first question.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def, _ := lookup(cfg.Backend)
	return def.build(ctx, cfg)
}
