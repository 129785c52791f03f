package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/meetmind/internal/budget"
)

// ErrEmptyResponse is returned when the model returns no message.
var ErrEmptyResponse = errors.New("provider: model returned no message")

// ChatGenerator adapts an eino chat model to the Generator interface. The
// prompt is sent as a single user message and the reply content is returned
// unmodified.
type ChatGenerator struct {
	model model.BaseChatModel
	log   *slog.Logger
}

// NewGenerator wraps m as a Generator. A nil log uses slog.Default().
func NewGenerator(m model.BaseChatModel, log *slog.Logger) (*ChatGenerator, error) {
	if m == nil {
		return nil, fmt.Errorf("provider: chat model must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ChatGenerator{model: m, log: log}, nil
}

// Generate performs one non-streaming completion of prompt.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := []*schema.Message{schema.UserMessage(prompt)}
	start := time.Now()
	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("provider: generate failed: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	g.log.Debug("provider: generation complete",
		slog.Int("input_tokens_est", budget.EstimateMessages(msgs)),
		slog.Int("output_tokens_est", budget.Estimate(resp.Content)),
		slog.Duration("duration", time.Since(start)),
	)
	return resp.Content, nil
}

// Model returns the wrapped chat model, e.g. for health probes.
func (g *ChatGenerator) Model() model.BaseChatModel { return g.model }
