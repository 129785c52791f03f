// Package commands defines all Cobra CLI commands for the meetmind binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/audit"
	"github.com/54b3r/meetmind/internal/config"
	"github.com/54b3r/meetmind/internal/logging"
)

// configPath holds the --config flag value for config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meetmind",
		Short: "MeetMind: ask questions about your meetings",
		Long: `MeetMind indexes meeting transcripts and answers questions about them
with retrieval-augmented generation.

Transcripts can be plain text, Markdown, PDF, DOCX/ODT/RTF, or audio
transcribed locally with whisperx. Answers cite the transcript passages
they were generated from and can be limited to an upload date range.

Providers are selected via EMBEDDINGS_PROVIDER and LLM_PROVIDER or a config
file (~/.meetmind/config.yaml, .toml, or .env in the working directory).
See 'meetmind --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Env vars always override config file values.
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML or TOML config file (default: ~/.meetmind/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIndexCmd(),
		NewAskCmd(),
		NewTranscribeCmd(),
		NewWatchCmd(),
		NewMCPCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
