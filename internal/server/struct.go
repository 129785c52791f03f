package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/meetmind/internal/qa"
	"github.com/54b3r/meetmind/internal/resources"
	"github.com/54b3r/meetmind/internal/store"
	"github.com/54b3r/meetmind/internal/transcribe"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request,
	// including uploaded files.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover answer generation and audio transcription.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /api/*
	// routes (requests/second). Defaults to 5 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 10 if zero.
	RateBurst int
	// MaxUploadBytes bounds multipart uploads. Defaults to 200 MiB.
	MaxUploadBytes int64
	// Transcriber converts uploaded audio. If nil, POST /api/media/transcribe
	// returns 503.
	Transcriber transcribe.Transcriber
	// UploadDir is where audio uploads are staged while transcribing.
	UploadDir string
	// DefaultLanguage is the transcription language when the form omits one.
	DefaultLanguage string
	// MetricsRegistry receives the server's metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Server is the HTTP server exposing transcript upload, search and
// transcription over the shared resources.
type Server struct {
	// resources hands out the shared pipeline, indexer and index.
	resources *resources.Manager
	// store persists transcript records and search history.
	store store.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped router.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	// Detail is the human-readable failure reason.
	Detail string `json:"detail"`
}

// transcriptSummary is one item of GET /api/transcripts.
type transcriptSummary struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// transcriptListResponse is the JSON response for GET /api/transcripts.
type transcriptListResponse struct {
	Items []transcriptSummary `json:"items"`
	Total int                 `json:"total"`
}

// searchRequest is the JSON body for POST /api/search. Both dates are
// RFC 3339; supplying only one of them is rejected.
type searchRequest struct {
	Question string     `json:"question"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
}

// searchResponse is the JSON response for POST /api/search and
// POST /api/search/recent.
type searchResponse struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Sources  []qa.Source `json:"sources"`
}

// statsResponse is the JSON response for GET /api/search/stats.
type statsResponse struct {
	TotalDocuments     int    `json:"total_documents"`
	EmbeddingsProvider string `json:"embeddings_provider"`
	LLMProvider        string `json:"llm_provider"`
}

// historyResponse is the JSON response for GET /api/search/history.
type historyResponse struct {
	Items []store.SearchRecord `json:"items"`
}
