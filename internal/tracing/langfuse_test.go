package tracing

import "testing"

func TestFromEnv_DefaultHost(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	cfg := FromEnv()
	if cfg.Host != DefaultHost {
		t.Errorf("expected default host, got %q", cfg.Host)
	}
	if cfg.Enabled() {
		t.Error("expected tracing disabled without a secret key")
	}
}

func TestFromEnv_Enabled(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "https://cloud.langfuse.com")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk")

	cfg := FromEnv()
	if cfg.Host != "https://cloud.langfuse.com" {
		t.Errorf("unexpected host %q", cfg.Host)
	}
	if !cfg.Enabled() {
		t.Error("expected tracing enabled with both keys")
	}
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	flush, ok := Setup(Config{Host: DefaultHost}, nil)
	if ok {
		t.Fatal("expected ok=false for empty credentials")
	}
	if flush == nil {
		t.Fatal("expected a non-nil flush")
	}
	flush()
}
