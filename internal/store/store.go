// Package store provides SQLite-backed persistence for transcript records
// and search history. Transcript text is kept here in full; the vector index
// holds only chunks, so the record is the source of truth for listing and
// reading transcripts back.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Transcript is one uploaded or transcribed meeting.
type Transcript struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SearchRecord is one answered question.
type SearchRecord struct {
	ID         int64     `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	SearchedAt time.Time `json:"searched_at"`
}

// Store persists transcripts and search history.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateTranscript inserts a transcript and returns it with its ID.
	CreateTranscript(ctx context.Context, filename, content string, uploadedAt time.Time) (*Transcript, error)
	// GetTranscript returns the transcript with id, or ErrNotFound.
	GetTranscript(ctx context.Context, id int64) (*Transcript, error)
	// ListTranscripts returns a page of transcripts, newest first, and the total count.
	ListTranscripts(ctx context.Context, skip, limit int) ([]Transcript, int, error)
	// DeleteTranscript removes the transcript with id, or returns ErrNotFound.
	DeleteTranscript(ctx context.Context, id int64) error
	// SaveSearch records an answered question.
	SaveSearch(ctx context.Context, question, answer string) (*SearchRecord, error)
	// ListSearches returns the most recent searches, newest first.
	ListSearches(ctx context.Context, limit int) ([]SearchRecord, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens (or creates) a SQLiteStore at the given path, creating the
// parent directory if needed, and runs the schema migration. Use ":memory:"
// for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: could not create %s: %w", filepath.Dir(path), err)
		}
	}

	// modernc applies each _pragma on every new connection. WAL lets serve,
	// index, watch and mcp share one file; busy_timeout makes a second
	// writer wait instead of failing with SQLITE_BUSY.
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS transcripts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    filename     TEXT    NOT NULL,
    content      TEXT    NOT NULL,
    uploaded_at  INTEGER NOT NULL  -- Unix timestamp (seconds, UTC)
);
CREATE INDEX IF NOT EXISTS idx_transcripts_uploaded
    ON transcripts (uploaded_at);

CREATE TABLE IF NOT EXISTS search_history (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    searched_at  INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateTranscript inserts a transcript. uploadedAt is stored at second
// precision in UTC, matching the uploaded_at chunk metadata.
func (s *SQLiteStore) CreateTranscript(ctx context.Context, filename, content string, uploadedAt time.Time) (*Transcript, error) {
	ts := uploadedAt.UTC().Unix()
	const q = `INSERT INTO transcripts (filename, content, uploaded_at) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, filename, content, ts)
	if err != nil {
		return nil, fmt.Errorf("store: create transcript: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create transcript id: %w", err)
	}
	return &Transcript{ID: id, Filename: filename, Content: content, UploadedAt: time.Unix(ts, 0).UTC()}, nil
}

// GetTranscript returns the transcript with id, or ErrNotFound.
func (s *SQLiteStore) GetTranscript(ctx context.Context, id int64) (*Transcript, error) {
	const q = `SELECT id, filename, content, uploaded_at FROM transcripts WHERE id = ?`
	var t Transcript
	var ts int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Filename, &t.Content, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transcript %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get transcript: %w", err)
	}
	t.UploadedAt = time.Unix(ts, 0).UTC()
	return &t, nil
}

// ListTranscripts returns up to limit transcripts after skipping skip,
// newest first, along with the total number of transcripts.
func (s *SQLiteStore) ListTranscripts(ctx context.Context, skip, limit int) ([]Transcript, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count transcripts: %w", err)
	}

	const q = `
SELECT id, filename, content, uploaded_at
FROM   transcripts
ORDER  BY uploaded_at DESC, id DESC
LIMIT  ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list transcripts: %w", err)
	}
	defer rows.Close()

	out := []Transcript{}
	for rows.Next() {
		var t Transcript
		var ts int64
		if err := rows.Scan(&t.ID, &t.Filename, &t.Content, &ts); err != nil {
			return nil, 0, fmt.Errorf("store: list transcripts scan: %w", err)
		}
		t.UploadedAt = time.Unix(ts, 0).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: list transcripts rows: %w", err)
	}
	return out, total, nil
}

// DeleteTranscript removes the transcript with id, or returns ErrNotFound.
func (s *SQLiteStore) DeleteTranscript(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete transcript: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete transcript rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: transcript %d", ErrNotFound, id)
	}
	return nil
}

// SaveSearch records an answered question with the current time.
func (s *SQLiteStore) SaveSearch(ctx context.Context, question, answer string) (*SearchRecord, error) {
	now := time.Now().UTC().Truncate(time.Second)
	const q = `INSERT INTO search_history (question, answer, searched_at) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, question, answer, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: save search: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: save search id: %w", err)
	}
	return &SearchRecord{ID: id, Question: question, Answer: answer, SearchedAt: now}, nil
}

// ListSearches returns the most recent limit searches, newest first.
func (s *SQLiteStore) ListSearches(ctx context.Context, limit int) ([]SearchRecord, error) {
	const q = `
SELECT id, question, answer, searched_at
FROM   search_history
ORDER  BY searched_at DESC, id DESC
LIMIT  ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list searches: %w", err)
	}
	defer rows.Close()

	out := []SearchRecord{}
	for rows.Next() {
		var r SearchRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &ts); err != nil {
			return nil, fmt.Errorf("store: list searches scan: %w", err)
		}
		r.SearchedAt = time.Unix(ts, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list searches rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
