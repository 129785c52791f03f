// Package chunker splits transcript text into overlapping, size-bounded
// segments suitable for embedding.
//
// The splitter works recursively over a priority-ordered list of separators
// (paragraph break, line break, sentence end, space, and finally the empty
// string, which cuts between characters). Text is packed greedily at the
// coarsest separator that applies; any piece that is still too long is
// re-split with the next finer separator. Lengths are measured in characters
// (runes), not bytes, so Cyrillic transcripts chunk the same way as ASCII.
//
// A Splitter holds no mutable state and is safe for concurrent use.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of trailing characters of a chunk
	// that may be repeated at the start of the next one.
	DefaultChunkOverlap = 200
)

// DefaultSeparators is the separator priority list, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// ErrInvalidParams is returned by New when size and overlap do not satisfy
// 0 <= overlap < size.
var ErrInvalidParams = errors.New("chunker: invalid chunk parameters")

// Splitter splits text with a fixed size, overlap and separator list.
type Splitter struct {
	// size is the maximum chunk length in runes.
	size int
	// overlap is the maximum number of runes shared by consecutive chunks.
	overlap int
	// separators is the priority-ordered separator list.
	separators []string
}

// New constructs a Splitter using DefaultSeparators.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d (need 0 <= overlap < size)", ErrInvalidParams, size, overlap)
	}
	return &Splitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}, nil
}

// Split is a convenience wrapper around New(size, overlap).Split(text).
// A non-positive size is replaced by DefaultChunkSize and overlap is clamped
// into [0, size), so Split never fails.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	s := &Splitter{size: size, overlap: overlap, separators: DefaultSeparators}
	return s.Split(text)
}

// Size returns the configured maximum chunk length.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured chunk overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the ordered chunks of text. Empty or whitespace-only input
// yields an empty slice. Chunks are trimmed and never empty.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	return s.split(text, s.separators)
}

// split picks the first separator present in text, breaks text on it and
// packs the pieces. Pieces that are still too long are re-split with the
// remaining, finer separators.
func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var finer []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = candidate
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			finer = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range splitKeepSeparator(text, sep) {
		if runeLen(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
			continue
		}
		chunks = append(chunks, s.split(piece, finer)...)
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge greedily packs pieces into chunks of at most s.size runes. When a
// chunk is emitted, pieces are dropped from the front of the window until at
// most s.overlap runes remain; those carry over into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks []string
		window []string
		total  int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.size && len(window) > 0 {
			if doc := joinTrimmed(window); doc != "" {
				chunks = append(chunks, doc)
			}
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if doc := joinTrimmed(window); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}

// splitKeepSeparator splits text on sep and re-attaches each separator to
// the start of the piece that follows it, so no characters are lost. An
// empty sep splits text into individual runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

// joinTrimmed concatenates pieces and trims surrounding whitespace.
func joinTrimmed(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
