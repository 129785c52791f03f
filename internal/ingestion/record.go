package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/54b3r/meetmind/internal/store"
)

// Indexer indexes transcript content with chunk metadata. *Service
// satisfies it.
type Indexer interface {
	Index(ctx context.Context, content string, metadata map[string]any) (int, error)
}

// Recorded is a saved transcript together with the number of chunks
// written to the vector index.
type Recorded struct {
	store.Transcript
	ChunksIndexed int `json:"chunks_indexed"`
}

// Record saves a transcript and indexes it with metadata derived from the
// saved record. When indexing fails the record is removed again so the
// store never lists a transcript that search cannot see.
func Record(ctx context.Context, st store.Store, idx Indexer, filename, content, sourceType string, log *slog.Logger) (*Recorded, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, filename)
	}

	t, err := st.CreateTranscript(ctx, filename, content, time.Now())
	if err != nil {
		return nil, err
	}

	n, err := idx.Index(ctx, content, TranscriptMetadata(t.ID, t.Filename, t.UploadedAt, sourceType))
	if err != nil {
		if delErr := st.DeleteTranscript(context.WithoutCancel(ctx), t.ID); delErr != nil {
			log.Error("ingestion: could not roll back transcript record",
				slog.Int64("transcript_id", t.ID),
				slog.Any("error", delErr),
			)
			err = errors.Join(err, delErr)
		}
		return nil, err
	}

	log.Info("ingestion: transcript recorded",
		slog.Int64("transcript_id", t.ID),
		slog.String("filename", filename),
		slog.String("source_type", sourceType),
		slog.Int("chunks", n),
	)
	return &Recorded{Transcript: *t, ChunksIndexed: n}, nil
}

// RecordFile extracts the text of the document at path and records it under
// its base name with a source type inferred from the extension.
func RecordFile(ctx context.Context, st store.Store, idx Indexer, path string, log *slog.Logger) (*Recorded, error) {
	text, err := ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	return Record(ctx, st, idx, name, text, InferSourceType(name), log)
}
