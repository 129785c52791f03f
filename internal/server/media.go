package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/transcribe"
)

// handleTranscribe handles POST /api/media/transcribe. The audio in the
// multipart field "file" is staged under UploadDir with a random name,
// transcribed, saved and indexed. The staged file is always removed.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.cfg.Transcriber == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Detail: "transcription is not configured"})
		return
	}

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	if !transcribe.SupportedFormat(header.Filename) {
		writeError(w, r, fmt.Errorf("%w: %q (supported: %s)", transcribe.ErrUnsupportedFormat,
			filepath.Ext(header.Filename), strings.Join(transcribe.SupportedFormats, ", ")))
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = s.cfg.DefaultLanguage
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o750); err != nil {
		writeError(w, r, fmt.Errorf("server: creating upload dir: %w", err))
		return
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not remove staged audio", slog.String("path", path), slog.Any("error", err))
		}
	}()

	if err := stage(path, file); err != nil {
		writeError(w, r, err)
		return
	}

	done := s.metrics.dependencyTimer("transcribe")
	text, err := s.cfg.Transcriber.Transcribe(r.Context(), path, language)
	done()
	if err != nil {
		s.metrics.transcriptionsTotal.WithLabelValues("error").Inc()
		writeError(w, r, err)
		return
	}
	s.metrics.transcriptionsTotal.WithLabelValues("ok").Inc()

	s.record(w, r, header.Filename, text, ingestion.SourceAudio)
}

// stage copies src to a new file at path.
func stage(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("server: staging upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("server: staging upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("server: staging upload: %w", err)
	}
	return nil
}
