package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func Test_Store_FileBackedPragmas(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "meetmind.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_CreateAndGetTranscript(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 4, 2, 10, 30, 15, 999, time.FixedZone("MSK", 3*3600))
	created, err := s.CreateTranscript(ctx, "standup.txt", "Дедлайн в пятницу.", at)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected a non-zero id")
	}
	if !created.UploadedAt.Equal(at.Truncate(time.Second)) || created.UploadedAt.Location() != time.UTC {
		t.Errorf("uploaded_at = %v, want %v in UTC", created.UploadedAt, at.Truncate(time.Second))
	}

	got, err := s.GetTranscript(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *created {
		t.Errorf("get = %+v, want %+v", got, created)
	}
}

func Test_Store_GetMissingTranscript(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.GetTranscript(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func Test_Store_ListTranscriptsNewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		if _, err := s.CreateTranscript(ctx, "call.txt", "text", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, total, err := s.ListTranscripts(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if !page[0].UploadedAt.Equal(base.Add(3*time.Hour)) || !page[1].UploadedAt.Equal(base.Add(2*time.Hour)) {
		t.Errorf("unexpected order: %v, %v", page[0].UploadedAt, page[1].UploadedAt)
	}
}

func Test_Store_ListTranscriptsEmpty(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	page, total, err := s.ListTranscripts(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || page == nil || len(page) != 0 {
		t.Errorf("want empty non-nil page and zero total, got %v/%d", page, total)
	}
}

func Test_Store_SearchHistory(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"first?", "second?", "third?"} {
		if _, err := s.SaveSearch(ctx, q, "answer to "+q); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	recs, err := s.ListSearches(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 records, got %d", len(recs))
	}
	if recs[0].Question != "third?" || recs[1].Question != "second?" {
		t.Errorf("want newest first, got %q then %q", recs[0].Question, recs[1].Question)
	}
	if recs[0].Answer != "answer to third?" {
		t.Errorf("answer = %q", recs[0].Answer)
	}
}

func Test_Store_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "meetmind.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	created, err := s.CreateTranscript(ctx, "retro.txt", "content", time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.GetTranscript(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Filename != "retro.txt" {
		t.Errorf("filename = %q", got.Filename)
	}
}

func Test_Store_DeleteTranscript(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTranscript(ctx, "sync.txt", "content", time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteTranscript(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTranscript(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteTranscript(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: want ErrNotFound, got %v", err)
	}
}
