package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/qa"
)

// NewAskCmd constructs the `meetmind ask` command, which answers a single
// question from the indexed transcripts.
func NewAskCmd() *cobra.Command {
	var from, to string
	var recent, showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your meetings",
		Long: `Answer a question using the indexed meeting transcripts.

Without date flags every transcript is searched. --from and --to must be
given together and limit the search to transcripts uploaded in that closed
range. --recent searches the last 7 days.

Examples:
  meetmind ask "Когда релиз?"
  meetmind ask --recent "what did we decide about the budget?"
  meetmind ask --from 2024-05-01 --to 2024-05-07 "who owns the migration?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			q := qa.Query{Question: strings.Join(args, " ")}
			switch {
			case recent && (from != "" || to != ""):
				return fmt.Errorf("ask: --recent cannot be combined with --from/--to")
			case recent:
				f, t := qa.DefaultRange(time.Now())
				q.From, q.To = &f, &t
			default:
				if from != "" {
					f, err := parseBound(from, false)
					if err != nil {
						return fmt.Errorf("ask: --from: %w", err)
					}
					q.From = &f
				}
				if to != "" {
					t, err := parseBound(to, true)
					if err != nil {
						return fmt.Errorf("ask: --to: %w", err)
					}
					q.To = &t
				}
			}

			a, closeApp, err := openApp(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeApp()

			p, err := a.resources.Pipeline(ctx)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			ans, err := p.Answer(ctx, q)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if _, err := a.store.SaveSearch(ctx, q.Question, ans.Answer); err != nil {
				log.Warn("ask: search history not saved", slog.Any("error", err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Answer)
			if showSources && len(ans.Sources) > 0 {
				boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
				faint := color.New(color.Faint).SprintFunc()
				fmt.Fprintln(out)
				fmt.Fprintln(out, boldCyan("Sources:"))
				for i, src := range ans.Sources {
					fmt.Fprintf(out, "%s %v\n", boldCyan(fmt.Sprintf("[%d]", i+1)), src.Metadata[ingestion.KeyFilename])
					fmt.Fprintln(out, faint(src.Content))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Only search transcripts uploaded at or after this date")
	cmd.Flags().StringVar(&to, "to", "", "Only search transcripts uploaded at or before this date")
	cmd.Flags().BoolVar(&recent, "recent", false, "Only search transcripts uploaded in the last 7 days")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", true, "Print the passages the answer was based on")

	return cmd
}
