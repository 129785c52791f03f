package commands

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/logging"
)

// NewIndexCmd constructs the `meetmind index` command, which records and
// indexes transcript files from disk.
func NewIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>...",
		Short: "Index transcript files (.txt, .md, .pdf, .docx, .odt, .rtf)",
		Long: `Save transcript files and index them for search.

Each file becomes one transcript record named after the file. Text files
must be UTF-8. Audio files are handled by 'meetmind transcribe'.

Examples:
  meetmind index standup-2024-05-01.txt
  meetmind index minutes/*.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, closeApp, err := openApp(ctx)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer closeApp()

			idx, err := a.resources.Indexer(ctx)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			ok := color.New(color.FgGreen).SprintFunc()
			failed := 0
			for _, path := range args {
				rec, err := ingestion.RecordFile(ctx, a.store, idx, path, log)
				if err != nil {
					failed++
					log.Error("index: file failed", slog.String("path", path), slog.Any("error", err))
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", color.RedString("✗"), path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (id %d, %d chunks)\n", ok("✓"), rec.Filename, rec.ID, rec.ChunksIndexed)
			}

			if failed > 0 {
				return fmt.Errorf("index: %d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
