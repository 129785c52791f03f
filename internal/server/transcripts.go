package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/logging"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// handleUploadTranscript handles POST /api/transcripts. It accepts a
// UTF-8 .txt file in the multipart field "file", saves it and indexes it.
func (s *Server) handleUploadTranscript(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(header.Filename)) != ".txt" {
		writeBadRequest(w, r, "only .txt files are supported")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeBadRequest(w, r, "could not read uploaded file")
		return
	}
	text, err := ingestion.DecodeText(raw)
	if err != nil {
		writeBadRequest(w, r, "file must be UTF-8 encoded")
		return
	}

	s.record(w, r, header.Filename, text, ingestion.SourceText)
}

// handleUploadDocument handles POST /api/transcripts/document. It accepts
// any format ingestion.ExtractText reads (txt, md, pdf, docx, odt, rtf).
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	if !ingestion.IsSupportedDocument(header.Filename) {
		writeError(w, r, fmt.Errorf("%w: %q", ingestion.ErrUnsupportedFormat, filepath.Ext(header.Filename)))
		return
	}

	// Extractors read from disk and dispatch on the extension.
	tmp, err := os.CreateTemp("", "meetmind-doc-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		writeError(w, r, fmt.Errorf("server: staging upload: %w", err))
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		writeError(w, r, fmt.Errorf("server: staging upload: %w", err))
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, r, fmt.Errorf("server: staging upload: %w", err))
		return
	}

	text, err := ingestion.ExtractText(r.Context(), tmp.Name())
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.record(w, r, header.Filename, text, ingestion.InferSourceType(header.Filename))
}

// record saves and indexes a transcript and writes the Recorded response.
func (s *Server) record(w http.ResponseWriter, r *http.Request, filename, text, sourceType string) {
	idx, err := s.resources.Indexer(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	timer := s.metrics.dependencyTimer("index")
	rec, err := ingestion.Record(r.Context(), s.store, idx, filename, text, sourceType, logging.FromContext(r.Context()))
	timer()
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.chunksIndexedTotal.WithLabelValues(sourceType).Add(float64(rec.ChunksIndexed))
	writeJSON(w, r, http.StatusOK, rec)
}

// formFile parses the multipart form and returns the "file" part. On
// failure it writes a 400 and returns ok=false.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{
				Detail: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return nil, nil, false
		}
		writeBadRequest(w, r, "expected a multipart form with a file field")
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, r, "file is required")
		return nil, nil, false
	}
	if header.Filename == "" {
		file.Close()
		writeBadRequest(w, r, "filename is required")
		return nil, nil, false
	}
	return file, header, true
}

// handleListTranscripts handles GET /api/transcripts?skip=&limit=.
func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		writeBadRequest(w, r, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		writeBadRequest(w, r, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
		return
	}

	items, total, err := s.store.ListTranscripts(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := transcriptListResponse{Items: make([]transcriptSummary, 0, len(items)), Total: total}
	for _, t := range items {
		resp.Items = append(resp.Items, transcriptSummary{ID: t.ID, Filename: t.Filename, UploadedAt: t.UploadedAt})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleGetTranscript handles GET /api/transcripts/{id}.
func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, r, "id must be an integer")
		return
	}

	t, err := s.store.GetTranscript(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
