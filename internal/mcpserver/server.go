package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/meetmind/internal/resources"
	"github.com/54b3r/meetmind/internal/store"
	"github.com/54b3r/meetmind/internal/version"
)

// Server is the MCP server for MeetMind. Tools share the resource manager
// and store with the HTTP API, so both surfaces see the same index.
type Server struct {
	resources *resources.Manager
	store     store.Store
	log       *slog.Logger
	server    *mcp.Server
}

// NewServer creates an MCP server over res and st. A nil log uses
// slog.Default().
func NewServer(res *resources.Manager, st store.Store, log *slog.Logger) (*Server, error) {
	if res == nil {
		return nil, ErrMissingResources
	}
	if st == nil {
		return nil, ErrMissingStore
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		resources: res,
		store:     st,
		log:       log,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "meetmind",
			Version: version.Version,
		}, nil),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is
// cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("mcpserver: shutdown failed", slog.Any("error", err))
		}
	}()

	s.log.Info("mcpserver: listening", slog.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
