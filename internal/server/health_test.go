package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/meetmind/internal/provider"
)

// fakePinger reports err from every probe.
type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// hungPinger blocks until its context ends.
type hungPinger struct{ name string }

func (h *hungPinger) Name() string { return h.name }
func (h *hungPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// probeReady runs GET /api/ready through the router and decodes the body.
func probeReady(t *testing.T, ctx context.Context, pingers ...Pinger) (int, readyResponse) {
	t.Helper()
	env := newTestServer(t, func(c *Config) { c.Pingers = pingers })

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/ready", nil).WithContext(ctx))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp readyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealth_Liveness(t *testing.T) {
	t.Parallel()

	w := newTestServer(t).do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_Readiness(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	tests := map[string]struct {
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantOK    []bool
	}{
		"no dependencies": {
			wantCode: http.StatusOK, wantReady: true, wantOK: []bool{},
		},
		"all healthy": {
			pingers:  []Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "qdrant"}},
			wantCode: http.StatusOK, wantReady: true, wantOK: []bool{true, true},
		},
		"vector store down": {
			pingers:  []Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "qdrant", err: refused}},
			wantCode: http.StatusServiceUnavailable, wantOK: []bool{true, false},
		},
		"everything down": {
			pingers:  []Pinger{&fakePinger{name: "openai", err: errors.New("timeout")}, &fakePinger{name: "qdrant", err: refused}},
			wantCode: http.StatusServiceUnavailable, wantOK: []bool{false, false},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			code, resp := probeReady(t, context.Background(), tt.pingers...)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantReady, resp.Ready)

			got := make([]bool, len(resp.Checks))
			for i, c := range resp.Checks {
				got[i] = c.OK
				assert.Equal(t, c.OK, c.Error == "", "check %s: error must be set exactly when failing", c.Name)
			}
			assert.Equal(t, tt.wantOK, got)
		})
	}
}

func TestHealth_ReadinessDoesNotWaitOnHungProbe(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	code, resp := probeReady(t, ctx, &hungPinger{name: "qdrant"}, &fakePinger{name: "ollama"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.Len(t, resp.Checks, 2)

	// results keep registration order even though probes run concurrently
	assert.Equal(t, "qdrant", resp.Checks[0].Name)
	assert.False(t, resp.Checks[0].OK)
	assert.Equal(t, "ollama", resp.Checks[1].Name)
	assert.True(t, resp.Checks[1].OK)
}

func TestOllamaPinger(t *testing.T) {
	t.Parallel()

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"bge-m3:latest"}]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(ollama.Close)

	p := NewOllamaPinger(ollama.URL+"/", ollama.Client())
	assert.Equal(t, "ollama", p.Name())
	assert.NoError(t, p.Ping(context.Background()))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	err := NewOllamaPinger(broken.URL, broken.Client()).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestGeneratorPinger(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{answer: "pong"}
	p := NewGeneratorPinger("openai", func(context.Context) (provider.Generator, error) { return gen, nil })
	require.NoError(t, p.Ping(context.Background()))
	assert.Equal(t, []string{"ping"}, gen.prompts)

	failing := NewGeneratorPinger("openai", func(context.Context) (provider.Generator, error) {
		return nil, errors.New("missing api key")
	})
	err := failing.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai health check failed: missing api key")
}
