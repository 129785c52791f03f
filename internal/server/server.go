// Package server implements the HTTP API that exposes MeetMind: transcript
// upload and listing, question answering over indexed transcripts, and
// audio transcription. The server is started by the `meetmind serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/meetmind/internal/resources"
	"github.com/54b3r/meetmind/internal/store"
	"github.com/54b3r/meetmind/internal/version"
)

const (
	defaultPort           = 8000
	defaultMaxUploadBytes = 200 << 20
)

// New constructs a Server over the shared resources and transcript store.
func New(res *resources.Manager, st store.Store, cfg *Config) (*Server, error) {
	if res == nil {
		return nil, fmt.Errorf("server: resources must not be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Covers transcription of long recordings.
		cfg.WriteTimeout = 30 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./media_uploads"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "ru"
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		resources: res,
		store:     st,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stop

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return requestLogger(log, next) })
	r.Use(s.metrics.middleware)

	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(rl.middleware)

		r.Post("/api/transcripts", s.handleUploadTranscript)
		r.Post("/api/transcripts/document", s.handleUploadDocument)
		r.Get("/api/transcripts", s.handleListTranscripts)
		r.Get("/api/transcripts/{id}", s.handleGetTranscript)

		r.Post("/api/search", s.handleSearch)
		r.Post("/api/search/recent", s.handleSearchRecent)
		r.Get("/api/search/stats", s.handleStats)
		r.Get("/api/search/history", s.handleHistory)

		r.Post("/api/media/transcribe", s.handleTranscribe)
	})

	s.handler = r
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleRoot handles GET / with a service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	settings := s.resources.Settings()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "MeetMind",
		"version": version.Version,
		"providers": map[string]string{
			"embeddings": settings.Embeddings.Provider,
			"llm":        settings.LLM.Provider,
		},
	})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
