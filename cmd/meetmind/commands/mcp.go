package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/meetmind/internal/logging"
	"github.com/54b3r/meetmind/internal/mcpserver"
	"github.com/54b3r/meetmind/internal/tracing"
)

// NewMCPCmd constructs the `meetmind mcp` command, which serves the
// search and indexing tools over the Model Context Protocol.
func NewMCPCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MeetMind tools over MCP",
		Long: `Serve MeetMind as a Model Context Protocol server.

Tools: ask_meetings, index_transcript, index_stats.
Resources: meetmind://transcripts and meetmind://transcripts/{id}.

By default the server speaks MCP over stdio, so it can be registered as a
local server in an MCP client. Logs go to stderr. With --http the
streamable HTTP transport is served instead.

Examples:
  meetmind mcp
  meetmind mcp --http 127.0.0.1:8765`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush, _ := tracing.Setup(tracing.FromEnv(), log)
			defer flush()

			a, closeApp, err := openApp(ctx)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer closeApp()

			srv, err := mcpserver.NewServer(a.resources, a.store, log)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			if httpAddr != "" {
				return srv.RunHTTP(ctx, httpAddr)
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve the streamable HTTP transport on this address instead of stdio")

	return cmd
}
