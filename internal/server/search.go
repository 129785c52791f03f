package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/qa"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// handleSearch handles POST /api/search. Without dates the whole index is
// searched; with both dates only transcripts uploaded in the closed range
// are considered.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	s.answer(w, r, qa.Query{Question: req.Question, From: req.DateFrom, To: req.DateTo})
}

// handleSearchRecent handles POST /api/search/recent, restricting the
// search to transcripts uploaded in the last qa.RecentWindow.
func (s *Server) handleSearchRecent(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	from, to := qa.DefaultRange(time.Now())
	s.answer(w, r, qa.Query{Question: req.Question, From: &from, To: &to})
}

// answer runs q through the shared pipeline, records the search and
// writes the response.
func (s *Server) answer(w http.ResponseWriter, r *http.Request, q qa.Query) {
	log := logging.FromContext(r.Context())

	p, err := s.resources.Pipeline(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	ans, err := p.Answer(r.Context(), q)
	elapsed := time.Since(start)

	outcome := questionOutcome(err)
	s.metrics.questionsTotal.WithLabelValues(outcome).Inc()
	s.metrics.questionDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.dependencyLatencySeconds.WithLabelValues("answer").Observe(elapsed.Seconds())

	if _, err := s.store.SaveSearch(r.Context(), q.Question, ans.Answer); err != nil {
		log.Warn("search history not saved", slog.Any("error", err))
	}

	writeJSON(w, r, http.StatusOK, searchResponse{
		Question: q.Question,
		Answer:   ans.Answer,
		Sources:  ans.Sources,
	})
}

// questionOutcome labels an Answer result for metrics.
func questionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, qa.ErrNoDocumentsIndexed):
		return "no_documents"
	case errors.Is(err, qa.ErrCancelled):
		return "cancelled"
	case statusFor(err) == http.StatusBadRequest:
		return "invalid"
	default:
		return "error"
	}
}

// handleStats handles GET /api/search/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	idx, err := s.resources.Index(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := idx.Count(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	settings := s.resources.Settings()
	writeJSON(w, r, http.StatusOK, statsResponse{
		TotalDocuments:     n,
		EmbeddingsProvider: settings.Embeddings.Provider,
		LLMProvider:        settings.LLM.Provider,
	})
}

// handleHistory handles GET /api/search/history?limit=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		writeBadRequest(w, r, "limit must be between 1 and 100")
		return
	}

	items, err := s.store.ListSearches(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, historyResponse{Items: items})
}
