package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/logging"
)

// NewStatsCmd constructs the `meetmind stats` command, which reports the
// size of the index and the configured providers.
func NewStatsCmd() *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index size, providers and recent questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, closeApp, err := openApp(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer closeApp()

			_, transcripts, err := a.store.ListTranscripts(ctx, 0, 1)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			idx, err := a.resources.Index(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			chunks, err := idx.Count(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "transcripts\t%d\n", transcripts)
			fmt.Fprintf(tw, "indexed chunks\t%d\n", chunks)
			fmt.Fprintf(tw, "embeddings provider\t%s\n", a.settings.Embeddings.Provider)
			fmt.Fprintf(tw, "llm provider\t%s\n", a.settings.LLM.Provider)
			fmt.Fprintf(tw, "vector backend\t%s\n", a.settings.Vector.Backend)
			fmt.Fprintf(tw, "database\t%s\n", a.settings.DBPath)
			if err := tw.Flush(); err != nil {
				return err
			}

			if history <= 0 {
				return nil
			}
			searches, err := a.store.ListSearches(ctx, history)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			if len(searches) == 0 {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nrecent questions:")
			for _, s := range searches {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n", s.SearchedAt.Local().Format("2006-01-02 15:04"), s.Question)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 5, "Number of recent questions to list (0 disables)")

	return cmd
}
