package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/qa"
	"github.com/54b3r/meetmind/internal/store"
	"github.com/54b3r/meetmind/internal/transcribe"
)

// noDocumentsDetail is returned to clients searching an empty index.
const noDocumentsDetail = "no transcripts indexed yet; upload transcripts first"

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, qa.ErrEmptyQuestion),
		errors.Is(err, qa.ErrInvalidFilter),
		errors.Is(err, qa.ErrNoDocumentsIndexed),
		errors.Is(err, ingestion.ErrUnsupportedFormat),
		errors.Is(err, ingestion.ErrEmptyContent),
		errors.Is(err, ingestion.ErrInvalidEncoding),
		errors.Is(err, transcribe.ErrUnsupportedFormat),
		errors.Is(err, transcribe.ErrEmptyTranscription):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, qa.ErrCancelled),
		errors.Is(err, ingestion.ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, qa.ErrGenerationFailed),
		errors.Is(err, qa.ErrRetrievalFailed),
		errors.Is(err, ingestion.ErrIndexingFailed),
		errors.Is(err, transcribe.ErrTranscriptionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON errorResponse with the mapped status.
// Client errors log at warn, server errors at error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	if errors.Is(err, qa.ErrNoDocumentsIndexed) {
		detail = noDocumentsDetail
	}

	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, r, status, errorResponse{Detail: detail})
}

// writeBadRequest writes a 400 with a fixed detail message.
func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeJSON(w, r, http.StatusBadRequest, errorResponse{Detail: detail})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
