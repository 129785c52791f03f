package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/transcribe"
	"github.com/54b3r/meetmind/internal/watch"
)

// NewWatchCmd constructs the `meetmind watch` command, which indexes files
// as they appear in a directory.
func NewWatchCmd() *cobra.Command {
	var debounce time.Duration
	var noAudio bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index transcripts dropped into a directory",
		Long: `Watch a directory and index every supported file written to it.

Documents are indexed directly. Audio is transcribed first when whisperx is
available; otherwise audio files are ignored. Files already in the
directory are not touched. Stop with Ctrl+C.

Examples:
  meetmind watch ~/Meetings
  meetmind watch --debounce 10s --no-audio ./exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, closeApp, err := openApp(ctx)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			defer closeApp()

			idx, err := a.resources.Indexer(ctx)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}

			var tr transcribe.Transcriber
			if !noAudio {
				if ct, err := newTranscriber(a.settings, log); err != nil {
					log.Warn("watch: audio files will be ignored", slog.Any("error", err))
				} else {
					tr = ct
				}
			}

			out := cmd.OutOrStdout()
			w, err := watch.New(a.store, idx, watch.Config{
				Dir:         args[0],
				Debounce:    debounce,
				Transcriber: tr,
				Language:    a.settings.Whisper.Language,
				Logger:      log,
				OnRecorded: func(path string, rec *ingestion.Recorded, err error) {
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", color.RedString("✗"), path, err)
						return
					}
					fmt.Fprintf(out, "%s %s (id %d, %d chunks)\n", color.GreenString("✓"), rec.Filename, rec.ID, rec.ChunksIndexed)
				},
			})
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a changed file is indexed")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "Ignore audio files even when whisperx is available")

	return cmd
}
