package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/meetmind/internal/embedder"
	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/rag"
	"github.com/54b3r/meetmind/internal/store"
)

// stubTranscriber returns text for every file.
type stubTranscriber struct {
	text     string
	language string
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string, language string) (string, error) {
	s.language = language
	return s.text, nil
}

type result struct {
	path string
	rec  *ingestion.Recorded
	err  error
}

func newDeps(t *testing.T) (*store.SQLiteStore, *ingestion.Service, *rag.EmbeddingIndex) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := rag.NewIndex(embedder.NewHashEmbedder(64), rag.NewMemoryStore(), 5)
	require.NoError(t, err)
	svc, err := ingestion.NewService(idx, ingestion.Config{})
	require.NoError(t, err)
	return st, svc, idx
}

func TestNew(t *testing.T) {
	st, svc, _ := newDeps(t)

	t.Run("missing directory", func(t *testing.T) {
		_, err := New(st, svc, Config{Dir: filepath.Join(t.TempDir(), "nope")})
		require.Error(t, err)
	})

	t.Run("file is not a directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		_, err := New(st, svc, Config{Dir: path})
		require.ErrorIs(t, err, ErrNotDirectory)
	})

	t.Run("default debounce", func(t *testing.T) {
		w, err := New(st, svc, Config{Dir: t.TempDir()})
		require.NoError(t, err)
		assert.Equal(t, DefaultDebounce, w.cfg.Debounce)
	})
}

func TestWatcher_Accepts(t *testing.T) {
	st, svc, _ := newDeps(t)
	dir := t.TempDir()

	docsOnly, err := New(st, svc, Config{Dir: dir})
	require.NoError(t, err)
	withAudio, err := New(st, svc, Config{Dir: dir, Transcriber: &stubTranscriber{}})
	require.NoError(t, err)

	tests := []struct {
		name      string
		docs      bool
		withAudio bool
	}{
		{name: "standup.txt", docs: true, withAudio: true},
		{name: "notes.MD", docs: true, withAudio: true},
		{name: "minutes.pdf", docs: true, withAudio: true},
		{name: "call.mp3", docs: false, withAudio: true},
		{name: ".standup.txt", docs: false, withAudio: false},
		{name: "archive.zip", docs: false, withAudio: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.docs, docsOnly.Accepts(tt.name))
			assert.Equal(t, tt.withAudio, withAudio.Accepts(tt.name))
		})
	}
}

func TestWatcher_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("text file is recorded", func(t *testing.T) {
		st, svc, idx := newDeps(t)
		dir := t.TempDir()
		w, err := New(st, svc, Config{Dir: dir})
		require.NoError(t, err)

		path := filepath.Join(dir, "standup.txt")
		require.NoError(t, os.WriteFile(path, []byte("Deploy on Thursday."), 0o600))

		rec, err := w.Process(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "standup.txt", rec.Filename)

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("audio is transcribed", func(t *testing.T) {
		st, svc, _ := newDeps(t)
		dir := t.TempDir()
		tr := &stubTranscriber{text: "Бюджет утвердили."}
		w, err := New(st, svc, Config{Dir: dir, Transcriber: tr, Language: "ru"})
		require.NoError(t, err)

		path := filepath.Join(dir, "call.wav")
		require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))

		rec, err := w.Process(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "Бюджет утвердили.", rec.Content)
		assert.Equal(t, "ru", tr.language)
	})

	t.Run("audio without transcriber is unsupported", func(t *testing.T) {
		st, svc, _ := newDeps(t)
		dir := t.TempDir()
		w, err := New(st, svc, Config{Dir: dir})
		require.NoError(t, err)

		_, err = w.Process(ctx, filepath.Join(dir, "call.wav"))
		require.ErrorIs(t, err, ingestion.ErrUnsupportedFormat)
	})
}

func TestWatcher_RunRecordsNewFiles(t *testing.T) {
	st, svc, _ := newDeps(t)
	dir := t.TempDir()
	results := make(chan result, 4)

	w, err := New(st, svc, Config{
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		OnRecorded: func(path string, rec *ingestion.Recorded, err error) {
			results <- result{path: path, rec: rec, err: err}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("skip me"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "retro.txt"), []byte("Retro every sprint."), 0o600))

	select {
	case got := <-results:
		require.NoError(t, got.err)
		assert.Equal(t, "retro.txt", filepath.Base(got.path))
		assert.Equal(t, "retro.txt", got.rec.Filename)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for file to be recorded")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	_, total, err := st.ListTranscripts(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "hidden files and repeated writes must record once")
}
