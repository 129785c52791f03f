package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric returns the metric in family name whose labels include every
// pair in labels, or nil.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m
			}
		}
	}
	return nil
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	env := newTestServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func Test_Metrics_HTTPRequestsLabelledByRoutePattern(t *testing.T) {
	t.Parallel()
	env := newTestServer(t)

	env.do(httptest.NewRequest(http.MethodGet, "/api/transcripts/41", nil))
	env.do(httptest.NewRequest(http.MethodGet, "/api/transcripts/42", nil))

	m := findMetric(t, env.reg, "meetmind_http_requests_total", map[string]string{
		"method":  "GET",
		"handler": "/api/transcripts/{id}",
		"code":    "404",
	})
	require.NotNil(t, m, "meetmind_http_requests_total for /api/transcripts/{id} not found")
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

func Test_Metrics_QuestionOutcomes(t *testing.T) {
	t.Parallel()
	env := newTestServer(t)

	env.do(jsonRequest(t, http.MethodPost, "/api/search", searchRequest{Question: "anything?"}))
	env.do(upload(t, "/api/transcripts", "standup.txt", []byte("Budget approved."), nil))
	env.do(jsonRequest(t, http.MethodPost, "/api/search", searchRequest{Question: "budget?"}))

	for outcome, want := range map[string]float64{"no_documents": 1, "ok": 1} {
		m := findMetric(t, env.reg, "meetmind_search_questions_total", map[string]string{"outcome": outcome})
		require.NotNil(t, m, "questions_total{outcome=%q} not found", outcome)
		assert.Equal(t, want, m.GetCounter().GetValue(), "outcome %q", outcome)
	}

	chunks := findMetric(t, env.reg, "meetmind_index_chunks_total", map[string]string{"source_type": "text"})
	require.NotNil(t, chunks)
	assert.Equal(t, float64(1), chunks.GetCounter().GetValue())
}

func Test_Metrics_DependencyTimer(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	done := m.dependencyTimer("transcribe")
	done()

	got := findMetric(t, reg, "meetmind_dependency_latency_seconds", map[string]string{"service": "transcribe"})
	require.NotNil(t, got, "dependency_latency_seconds{service=transcribe} not found")
	assert.Equal(t, uint64(1), got.GetHistogram().GetSampleCount())
}
