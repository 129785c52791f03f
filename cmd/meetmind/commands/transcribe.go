package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/transcribe"
)

// NewTranscribeCmd constructs the `meetmind transcribe` command, which
// transcribes an audio file with whisperx and indexes the text.
func NewTranscribeCmd() *cobra.Command {
	var language string
	var printText bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio>",
		Short: "Transcribe an audio recording and index it",
		Long: `Transcribe a meeting recording with whisperx and index the transcript.

Supported formats: .mp3 .wav .m4a .webm .ogg .flac. The whisperx binary,
model, device and compute type come from WHISPERX_BIN, WHISPER_MODEL,
WHISPER_DEVICE and WHISPER_COMPUTE_TYPE.

Examples:
  meetmind transcribe standup.m4a
  meetmind transcribe --language en --print sync.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			path := args[0]

			if !transcribe.SupportedFormat(path) {
				return fmt.Errorf("transcribe: %w: %q", transcribe.ErrUnsupportedFormat, filepath.Ext(path))
			}

			a, closeApp, err := openApp(ctx)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}
			defer closeApp()

			tr, err := newTranscriber(a.settings, log)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}
			if language == "" {
				language = a.settings.Whisper.Language
			}

			text, err := tr.Transcribe(ctx, path, language)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}

			idx, err := a.resources.Indexer(ctx)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}
			rec, err := ingestion.Record(ctx, a.store, idx, filepath.Base(path), text, ingestion.SourceAudio, log)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}

			out := cmd.OutOrStdout()
			if printText {
				fmt.Fprintln(out, text)
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "indexed %s (id %d, %d chunks)\n", rec.Filename, rec.ID, rec.ChunksIndexed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Spoken language code (default from WHISPER_LANGUAGE)")
	cmd.Flags().BoolVar(&printText, "print", false, "Print the transcript text")

	return cmd
}
