package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/meetmind/internal/store"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRecord_SavesAndIndexesWithRecordMetadata(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	idx := &recordingIndex{}
	svc, err := NewService(idx, Config{})
	require.NoError(t, err)

	rec, err := Record(context.Background(), st, svc, "standup.txt", "Deadline is Friday. Budget approved.", SourceText, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ChunksIndexed)
	assert.Equal(t, "standup.txt", rec.Filename)

	require.Len(t, idx.batches, 1)
	md := idx.batches[0][0].Metadata
	assert.Equal(t, rec.ID, md[KeyTranscriptID])
	assert.Equal(t, rec.UploadedAt.Unix(), md[KeyUploadedAt])
	assert.Equal(t, SourceText, md[KeySourceType])

	got, err := st.GetTranscript(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Content, got.Content)
}

func TestRecord_BlankContentSavesNothing(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	idx := &recordingIndex{}
	svc, err := NewService(idx, Config{})
	require.NoError(t, err)

	_, err = Record(context.Background(), st, svc, "empty.txt", " \n\t", SourceText, nil)
	require.ErrorIs(t, err, ErrEmptyContent)

	_, total, err := st.ListTranscripts(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, idx.batches)
}

func TestRecord_IndexFailureRemovesRecord(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	svc, err := NewService(&recordingIndex{err: errors.New("qdrant unavailable")}, Config{})
	require.NoError(t, err)

	_, err = Record(context.Background(), st, svc, "retro.txt", "We agreed on a retro every sprint.", SourceText, nil)
	require.ErrorIs(t, err, ErrIndexingFailed)

	_, total, err := st.ListTranscripts(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total, "failed indexing must not leave a record behind")
}

func TestRecordFile_InfersNameAndSourceType(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	idx := &recordingIndex{}
	svc, err := NewService(idx, Config{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("  # Sync\nShip on Monday.\n"), 0o600))

	rec, err := RecordFile(context.Background(), st, svc, path, nil)
	require.NoError(t, err)
	assert.Equal(t, "notes.md", rec.Filename)
	assert.Equal(t, "# Sync\nShip on Monday.", rec.Content)
	require.Len(t, idx.batches, 1)
	assert.Equal(t, SourceText, idx.batches[0][0].Metadata[KeySourceType])
}

func TestRecordFile_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "slides.pptx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	svc, err := NewService(&recordingIndex{}, Config{})
	require.NoError(t, err)

	_, err = RecordFile(context.Background(), openStore(t), svc, path, nil)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
