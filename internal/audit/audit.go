// Package audit logs one structured record per CLI command invocation: the
// command, the config file it resolved, and the provider-related
// environment. Secrets are recorded as "set" or "unset", never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// envKey is one environment variable included in the audit record.
type envKey struct {
	name   string
	secret bool
}

// auditKeys is the ordered list of env vars in every audit record, grouped
// by the component they configure.
var auditKeys = []envKey{
	// embeddings
	{"EMBEDDINGS_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	// answer generation
	{"LLM_PROVIDER", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"HUGGINGFACE_API_TOKEN", true},
	{"HF_LLM_MODEL", false},
	{"BEDROCK_API_KEY", true},
	{"BEDROCK_MODEL_ID", false},
	{"GOOGLE_API_KEY", true},
	{"GEMINI_MODEL", false},
	// storage
	{"VECTOR_BACKEND", false},
	{"QDRANT_HOST", false},
	{"QDRANT_PORT", false},
	{"QDRANT_COLLECTION", false},
	{"QDRANT_API_KEY", true},
	{"REDIS_URL", true},
	{"MEETMIND_DB", false},
	// transcription
	{"WHISPERX_BIN", false},
	{"WHISPER_DEVICE", false},
	// observability
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
}

// secretKeys indexes the secret entries of auditKeys.
var secretKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, k := range auditKeys {
		if k.secret {
			m[k.name] = true
		}
	}
	return m
}()

// LogCommandStart emits the audit record for command. configPath is the
// resolved config file, or "" when none was loaded.
func LogCommandStart(log *slog.Logger, command, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, k := range auditKeys {
		attrs = append(attrs, slog.String(k.name, SanitiseKey(k.name, os.Getenv(k.name))))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set" or "unset" for secret keys and the value (or
// "unset") for everything else. REDIS_URL counts as secret because it may
// embed a password.
func SanitiseKey(key, value string) string {
	switch {
	case value == "":
		return "unset"
	case secretKeys[key]:
		return "set"
	default:
		return value
	}
}

// sanitiseConfigPath returns the config path with the home directory
// shortened to "~", or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
