package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/meetmind/internal/config"
	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/provider"
	"github.com/54b3r/meetmind/internal/rag"
	"github.com/54b3r/meetmind/internal/resources"
	"github.com/54b3r/meetmind/internal/server"
	"github.com/54b3r/meetmind/internal/store"
	"github.com/54b3r/meetmind/internal/transcribe"
)

// app bundles the handles every data command needs.
type app struct {
	settings  *config.Settings
	store     *store.SQLiteStore
	resources *resources.Manager
	log       *slog.Logger
}

// openApp resolves settings, opens the transcript store and prepares the
// lazy resource manager. close releases both and must always be called.
func openApp(ctx context.Context) (*app, func(), error) {
	log := logging.FromContext(ctx)

	settings, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store %s: %w", settings.DBPath, err)
	}
	log.Debug("store opened", slog.String("path", settings.DBPath))

	res, err := resources.New(settings, resources.Builders{}, log)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := res.Close(); err != nil {
			log.Warn("closing resources", slog.Any("error", err))
		}
		if err := st.Close(); err != nil {
			log.Warn("closing store", slog.Any("error", err))
		}
	}
	return &app{settings: settings, store: st, resources: res, log: log}, closeFn, nil
}

// newTranscriber builds the whisperx transcriber from settings.
func newTranscriber(s *config.Settings, log *slog.Logger) (*transcribe.CommandTranscriber, error) {
	return transcribe.NewCommandTranscriber(transcribe.Config{
		Binary:      s.Whisper.Binary,
		Model:       s.Whisper.Model,
		Device:      s.Whisper.Device,
		ComputeType: s.Whisper.ComputeType,
		Logger:      log,
	})
}

// buildPingers returns the readiness probes for the configured backends.
// Local models are probed through the Ollama tags endpoint; hosted models
// need a real generation. Qdrant is probed only when it is the backend.
func buildPingers(a *app) []server.Pinger {
	var pingers []server.Pinger

	switch provider.Backend(a.settings.LLM.Provider) {
	case provider.BackendLocal, provider.BackendOllama:
		pingers = append(pingers, server.NewOllamaPinger(a.settings.LLM.BaseURL, nil))
	default:
		pingers = append(pingers, server.NewGeneratorPinger(a.settings.LLM.Provider, a.resources.Generator))
	}

	if a.settings.Vector.Backend == config.VectorQdrant {
		pingers = append(pingers, server.NewQdrantPinger(func(ctx context.Context) (*qdrant.Client, error) {
			vs, err := a.resources.VectorStore(ctx)
			if err != nil {
				return nil, err
			}
			q, ok := vs.(*rag.QdrantStore)
			if !ok {
				return nil, errors.New("vector store is not qdrant")
			}
			return q.Client(), nil
		}))
	}
	return pingers
}

// dateLayouts are the accepted --from/--to formats.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// parseBound parses a date flag in local time. A date without a time of day
// is the start of that day, or its last second when endOfDay is set.
func parseBound(value string, endOfDay bool) (time.Time, error) {
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, value, time.Local)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" && endOfDay {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339", value)
}
