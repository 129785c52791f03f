package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/server"
	"github.com/54b3r/meetmind/internal/tracing"
	"github.com/54b3r/meetmind/internal/transcribe"
)

// NewServeCmd constructs the `meetmind serve` command, which starts the
// HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MeetMind HTTP API",
		Long: `Start the MeetMind HTTP API.

The server accepts transcript, document and audio uploads, answers
questions over the indexed transcripts, and exposes /api/health,
/api/ready and /metrics for operations.

Audio transcription requires whisperx on PATH (or WHISPERX_BIN). Without
it the server still starts and /api/media/transcribe returns 503.

Examples:
  meetmind serve
  meetmind serve --port 9090
  LLM_PROVIDER=openai VECTOR_BACKEND=memory meetmind serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			flush, _ := tracing.Setup(tracing.FromEnv(), log)
			defer flush()

			a, closeApp, err := openApp(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeApp()

			log.Info("serve starting",
				slog.String("embeddings_provider", a.settings.Embeddings.Provider),
				slog.String("llm_provider", a.settings.LLM.Provider),
				slog.String("vector_backend", a.settings.Vector.Backend),
				slog.String("db", a.settings.DBPath),
			)

			var tr transcribe.Transcriber
			if ct, err := newTranscriber(a.settings, log); err != nil {
				log.Warn("transcription unavailable", slog.Any("error", err))
			} else {
				tr = ct
			}

			if !cmd.Flags().Changed("host") {
				host = a.settings.Server.Host
			}
			if !cmd.Flags().Changed("port") {
				port = a.settings.Server.Port
			}

			srv, err := server.New(a.resources, a.store, &server.Config{
				Host:            host,
				Port:            port,
				Logger:          log,
				Pingers:         buildPingers(a),
				RateLimit:       a.settings.Server.RateLimitRPS,
				RateBurst:       a.settings.Server.RateLimitBurst,
				Transcriber:     tr,
				UploadDir:       a.settings.Whisper.UploadDir,
				DefaultLanguage: a.settings.Whisper.Language,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (default from MEETMIND_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on (default from MEETMIND_PORT)")

	return cmd
}
