// Package ingestion implements the transcript indexing service. It chunks
// transcript text, copies the transcript's metadata onto every chunk and
// writes the batch to the vector index. It also extracts plain text from
// uploaded documents (PDF, DOCX, ODT, RTF) before indexing.
//
// The service is invoked by the HTTP upload routes, the `meetmind index`
// CLI command, the directory watcher and the MCP index_transcript tool.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/meetmind/internal/chunker"
	"github.com/54b3r/meetmind/internal/rag"
)

var (
	// ErrIndexingFailed wraps any embedding or vector store failure while
	// indexing a transcript.
	ErrIndexingFailed = errors.New("ingestion: indexing failed")

	// ErrCancelled is returned when the caller's context ends before the
	// batch is written.
	ErrCancelled = errors.New("ingestion: indexing cancelled")
)

// Config holds the configuration for the indexing service.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to chunker.DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Must be smaller than ChunkSize.
	ChunkOverlap int

	// Logger receives indexing logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Service chunks transcripts and writes them to a vector index.
// It is safe for concurrent use when its Index is.
type Service struct {
	// index embeds and persists the chunks.
	index rag.Index

	// splitter holds the resolved chunk size and overlap.
	splitter *chunker.Splitter

	log *slog.Logger
}

// NewService constructs a Service writing to index.
func NewService(index rag.Index, cfg Config) (*Service, error) {
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	size := cfg.ChunkSize
	if size == 0 {
		size = chunker.DefaultChunkSize
	}
	splitter, err := chunker.New(size, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{index: index, splitter: splitter, log: log}, nil
}

// Index splits content into chunks, attaches an identical copy of metadata
// to each and writes them in one batch. It returns the number of chunks
// written. Empty or whitespace-only content writes nothing and returns 0.
func (s *Service) Index(ctx context.Context, content string, metadata map[string]any) (int, error) {
	start := time.Now()

	chunks := s.splitter.Split(content)
	if len(chunks) == 0 {
		return 0, nil
	}

	entries := make([]rag.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = rag.Entry{Text: c, Metadata: copyMetadata(metadata)}
	}

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := s.index.Add(ctx, entries); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return 0, fmt.Errorf("%w: %w", ErrCancelled, cerr)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return 0, fmt.Errorf("%w: writing %d chunks: %w", ErrIndexingFailed, len(entries), err)
	}

	s.log.Info("ingestion: transcript indexed",
		slog.Int("chunks", len(entries)),
		slog.Any("filename", metadata[KeyFilename]),
		slog.Duration("duration", time.Since(start)),
	)
	return len(entries), nil
}

// Splitter returns the chunk splitter used by the service.
func (s *Service) Splitter() *chunker.Splitter { return s.splitter }

func copyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
