package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/meetmind/internal/store"
)

const (
	uriScheme = "meetmind://"

	// transcriptListLimit caps the transcripts resource listing.
	transcriptListLimit = 100
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "transcripts",
		Name:        "transcripts",
		Description: "Most recently uploaded meeting transcripts",
		MIMEType:    "application/json",
	}, s.handleTranscriptsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "transcripts/{id}",
		Name:        "transcript-content",
		Description: "Full text of one transcript",
		MIMEType:    "text/plain",
	}, s.handleTranscriptResource)
}

// handleTranscriptsResource lists recent transcripts without their content.
func (s *Server) handleTranscriptsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	items, _, err := s.store.ListTranscripts(ctx, 0, transcriptListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}

	type transcriptInfo struct {
		ID         int64  `json:"id"`
		Filename   string `json:"filename"`
		UploadedAt string `json:"uploaded_at"`
		URI        string `json:"uri"`
	}
	infos := make([]transcriptInfo, len(items))
	for i, t := range items {
		infos[i] = transcriptInfo{
			ID:         t.ID,
			Filename:   t.Filename,
			UploadedAt: t.UploadedAt.Format(time.RFC3339),
			URI:        uriScheme + "transcripts/" + strconv.FormatInt(t.ID, 10),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling transcripts: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleTranscriptResource returns the stored text of one transcript.
func (s *Server) handleTranscriptResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := extractTranscriptID(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	t, err := s.store.GetTranscript(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transcript: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     t.Content,
		}},
	}, nil
}

// extractTranscriptID parses the id from meetmind://transcripts/{id}.
func extractTranscriptID(uri string) (int64, bool) {
	const prefix = uriScheme + "transcripts/"
	if !strings.HasPrefix(uri, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(uri, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
