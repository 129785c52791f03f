package ingestion

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/54b3r/meetmind/internal/rag"
)

// Chunk metadata keys.
const (
	KeyTranscriptID = "transcript_id"
	KeyFilename     = "filename"
	KeyUploadedAt   = rag.TimestampKey
	KeySourceType   = "source_type"
)

// Source types recorded in chunk metadata.
const (
	SourceText     = "text"
	SourceAudio    = "audio"
	SourceDocument = "document"
)

// sourceTypeByExt maps lower-case file extensions to the source type
// recorded for transcripts created from them.
var sourceTypeByExt = map[string]string{
	".txt":  SourceText,
	".md":   SourceText,
	".pdf":  SourceDocument,
	".docx": SourceDocument,
	".odt":  SourceDocument,
	".rtf":  SourceDocument,
	".mp3":  SourceAudio,
	".wav":  SourceAudio,
	".m4a":  SourceAudio,
	".webm": SourceAudio,
	".ogg":  SourceAudio,
	".flac": SourceAudio,
}

// TranscriptMetadata builds the metadata copied onto every chunk of a
// transcript. uploadedAt is stored as UTC epoch seconds so range filters
// compare integers. An empty sourceType is omitted.
func TranscriptMetadata(id int64, filename string, uploadedAt time.Time, sourceType string) map[string]any {
	md := map[string]any{
		KeyTranscriptID: id,
		KeyFilename:     filename,
		KeyUploadedAt:   uploadedAt.UTC().Unix(),
	}
	if sourceType != "" {
		md[KeySourceType] = sourceType
	}
	return md
}

// InferSourceType returns the source type for filename based on its
// extension, or "" when the extension is unknown.
func InferSourceType(filename string) string {
	return sourceTypeByExt[strings.ToLower(filepath.Ext(filename))]
}

// IsSupportedDocument reports whether ExtractText can read filename.
func IsSupportedDocument(filename string) bool {
	switch InferSourceType(filename) {
	case SourceText, SourceDocument:
		return true
	default:
		return false
	}
}
