// Prometheus metrics for the HTTP server, and helpers used by handlers and
// middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the chi route pattern rather than the raw URL path, which would
	// explode cardinality for /api/transcripts/{id}.
	labelHandler = "handler"

	// unmatchedRoute labels requests no route matched.
	unmatchedRoute = "unmatched"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// questionsTotal counts answered /api/search* requests, partitioned by
	// outcome: "ok", "invalid", "no_documents", "cancelled" or "error".
	questionsTotal *prometheus.CounterVec

	// questionDurationSeconds records the wall-clock duration of each
	// question from retrieval to generated answer.
	questionDurationSeconds *prometheus.HistogramVec

	// chunksIndexedTotal counts chunks written to the vector index,
	// partitioned by source type.
	chunksIndexedTotal *prometheus.CounterVec

	// transcriptionsTotal counts audio transcriptions by outcome.
	transcriptionsTotal *prometheus.CounterVec

	// dependencyLatencySeconds records latency of calls into the answer
	// pipeline, the indexer and the transcriber.
	dependencyLatencySeconds *prometheus.HistogramVec

	// httpRequestsTotal counts all HTTP requests handled by the router,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		questionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetmind",
			Subsystem: "search",
			Name:      "questions_total",
			Help:      "Total number of questions answered, partitioned by outcome.",
		}, []string{"outcome"}),

		questionDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meetmind",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of questions from retrieval to answer.",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),

		chunksIndexedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetmind",
			Subsystem: "index",
			Name:      "chunks_total",
			Help:      "Total number of transcript chunks written to the vector index.",
		}, []string{"source_type"}),

		transcriptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetmind",
			Subsystem: "media",
			Name:      "transcriptions_total",
			Help:      "Total number of audio transcriptions, partitioned by outcome.",
		}, []string{"outcome"}),

		dependencyLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meetmind",
			Name:      "dependency_latency_seconds",
			Help:      "Latency of calls into the answer pipeline, indexer and transcriber.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30, 120, 600},
		}, []string{"service"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetmind",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meetmind",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// dependencyTimer starts timing a call to service and returns the function
// that records the observation.
func (m *serverMetrics) dependencyTimer(service string) func() {
	start := time.Now()
	return func() {
		m.dependencyLatencySeconds.WithLabelValues(service).Observe(time.Since(start).Seconds())
	}
}

// middleware records request counts and latency labelled by the matched
// chi route pattern.
func (m *serverMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
