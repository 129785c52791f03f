package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/meetmind/internal/ingestion"
	"github.com/54b3r/meetmind/internal/qa"
)

// AskInput is the input schema for the ask_meetings tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from meeting transcripts"`
	DateFrom string `json:"date_from,omitempty" jsonschema:"RFC 3339 lower bound on transcript upload time; requires date_to"`
	DateTo   string `json:"date_to,omitempty" jsonschema:"RFC 3339 upper bound on transcript upload time; requires date_from"`
	Recent   bool   `json:"recent,omitempty" jsonschema:"only search transcripts uploaded in the last 7 days when no dates are given"`
}

// AskOutput is the output schema for the ask_meetings tool.
type AskOutput struct {
	Answer  string      `json:"answer"`
	Sources []qa.Source `json:"sources"`
}

// IndexInput is the input schema for the index_transcript tool.
type IndexInput struct {
	Filename string `json:"filename" jsonschema:"name recorded for the transcript, e.g. standup-2024-05-01.txt"`
	Content  string `json:"content" jsonschema:"full transcript text"`
}

// IndexOutput is the output schema for the index_transcript tool.
type IndexOutput struct {
	TranscriptID  int64  `json:"transcript_id"`
	Filename      string `json:"filename"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

// StatsInput is the input schema for the index_stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the index_stats tool.
type StatsOutput struct {
	TotalDocuments     int    `json:"total_documents"`
	EmbeddingsProvider string `json:"embeddings_provider"`
	LLMProvider        string `json:"llm_provider"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_meetings",
		Description: "Answer a question using indexed meeting transcripts, optionally limited to an upload date range",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_transcript",
		Description: "Save a meeting transcript and index it for search",
	}, s.handleIndex)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report how many chunks are indexed and which providers are configured",
	}, s.handleStats)
}

// handleAsk handles the ask_meetings tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	q := qa.Query{Question: input.Question}
	var err error
	if q.From, err = parseDate("date_from", input.DateFrom); err != nil {
		return nil, AskOutput{}, err
	}
	if q.To, err = parseDate("date_to", input.DateTo); err != nil {
		return nil, AskOutput{}, err
	}
	if input.Recent && q.From == nil && q.To == nil {
		from, to := qa.DefaultRange(time.Now())
		q.From, q.To = &from, &to
	}

	p, err := s.resources.Pipeline(ctx)
	if err != nil {
		return nil, AskOutput{}, err
	}
	ans, err := p.Answer(ctx, q)
	if err != nil {
		return nil, AskOutput{}, err
	}

	if _, err := s.store.SaveSearch(ctx, q.Question, ans.Answer); err != nil {
		s.log.Warn("mcpserver: search history not saved", slog.Any("error", err))
	}

	return nil, AskOutput{Answer: ans.Answer, Sources: ans.Sources}, nil
}

// handleIndex handles the index_transcript tool invocation.
func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, IndexOutput{}, fmt.Errorf("mcpserver: filename is required")
	}

	idx, err := s.resources.Indexer(ctx)
	if err != nil {
		return nil, IndexOutput{}, err
	}
	rec, err := ingestion.Record(ctx, s.store, idx, filename, input.Content, ingestion.SourceText, s.log)
	if err != nil {
		return nil, IndexOutput{}, err
	}

	return nil, IndexOutput{
		TranscriptID:  rec.ID,
		Filename:      rec.Filename,
		ChunksIndexed: rec.ChunksIndexed,
	}, nil
}

// handleStats handles the index_stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	idx, err := s.resources.Index(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	n, err := idx.Count(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}

	settings := s.resources.Settings()
	return nil, StatsOutput{
		TotalDocuments:     n,
		EmbeddingsProvider: settings.Embeddings.Provider,
		LLMProvider:        settings.LLM.Provider,
	}, nil
}

// parseDate parses an optional RFC 3339 tool argument. Empty means unset.
func parseDate(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: %s must be RFC 3339: %w", field, err)
	}
	return &t, nil
}
