// Package watch indexes transcripts dropped into a directory. New or
// rewritten files are picked up through fsnotify once they have been quiet
// for the debounce interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/store"
	"github.com/54b3r/meetmind/internal/transcribe"
)

// DefaultDebounce is how long a path must see no further events before it
// is processed.
const DefaultDebounce = 2 * time.Second

// ErrNotDirectory is returned by New when Dir is not a directory.
var ErrNotDirectory = errors.New("watch: not a directory")

// Config configures a Watcher.
type Config struct {
	// Dir is the directory to watch. Subdirectories are not followed.
	Dir string

	// Debounce is the quiet period per path. Zero means DefaultDebounce.
	Debounce time.Duration

	// Transcriber enables audio files. Nil means audio is ignored.
	Transcriber transcribe.Transcriber

	// Language is passed to the transcriber. Empty lets it detect.
	Language string

	// OnRecorded, when set, is called after each processed file with the
	// result or the error.
	OnRecorded func(path string, rec *ingestion.Recorded, err error)

	// Logger receives watcher logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Watcher records and indexes files that appear in a directory.
type Watcher struct {
	cfg     Config
	store   store.Store
	indexer ingestion.Indexer
	log     *slog.Logger
}

// New validates cfg and returns a Watcher that records into st and indexes
// through idx.
func New(st store.Store, idx ingestion.Indexer, cfg Config) (*Watcher, error) {
	if st == nil || idx == nil {
		return nil, fmt.Errorf("watch: store and indexer must not be nil")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, cfg.Dir)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{cfg: cfg, store: st, indexer: idx, log: log}, nil
}

// Accepts reports whether the watcher would process a file named name.
// Hidden files are skipped; audio is accepted only with a transcriber.
func (w *Watcher) Accepts(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if ingestion.IsSupportedDocument(base) {
		return true
	}
	return w.cfg.Transcriber != nil && transcribe.SupportedFormat(base)
}

// Run watches the directory until ctx is cancelled. Files already present
// when Run starts are not processed. Per-file failures are logged and
// reported through OnRecorded; only watcher setup errors are returned.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch: adding %s: %w", w.cfg.Dir, err)
	}
	w.log.Info("watch: watching directory",
		slog.String("dir", w.cfg.Dir),
		slog.Duration("debounce", w.cfg.Debounce),
		slog.Bool("audio", w.cfg.Transcriber != nil),
	)

	deb := newDebouncer(ctx, w.cfg.Debounce)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watch: stopped", slog.String("dir", w.cfg.Dir))
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.Accepts(ev.Name) {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
				continue
			}
			deb.schedule(ev.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch: fsnotify error", slog.Any("error", err))

		case path := <-deb.ready:
			rec, err := w.Process(ctx, path)
			if w.cfg.OnRecorded != nil {
				w.cfg.OnRecorded(path, rec, err)
			}
		}
	}
}

// Process records the file at path: audio is transcribed, documents are
// extracted. It is exported so callers can backfill existing files.
func (w *Watcher) Process(ctx context.Context, path string) (*ingestion.Recorded, error) {
	name := filepath.Base(path)
	log := w.log.With(slog.String("file", name))

	var (
		rec *ingestion.Recorded
		err error
	)
	switch {
	case ingestion.IsSupportedDocument(name):
		rec, err = ingestion.RecordFile(ctx, w.store, w.indexer, path, log)
	case w.cfg.Transcriber != nil && transcribe.SupportedFormat(name):
		var text string
		text, err = w.cfg.Transcriber.Transcribe(ctx, path, w.cfg.Language)
		if err == nil {
			rec, err = ingestion.Record(ctx, w.store, w.indexer, name, text, ingestion.SourceAudio, log)
		}
	default:
		err = fmt.Errorf("%w: %q", ingestion.ErrUnsupportedFormat, filepath.Ext(name))
	}

	if err != nil {
		log.Error("watch: file not recorded", slog.Any("error", err))
		return nil, err
	}
	return rec, nil
}
