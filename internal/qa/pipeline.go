// Package qa implements the retrieval-answering pipeline: it turns a
// question and an optional upload-date range into a grounded answer plus the
// transcript passages the answer was generated from.
//
// The chain is fixed and deterministic apart from the model call:
// validate, count, search, join context, render prompt, generate, attach
// sources. No step is retried.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/54b3r/meetmind/internal/budget"
	"github.com/54b3r/meetmind/internal/provider"
	"github.com/54b3r/meetmind/internal/rag"
)

const (
	// DefaultTopK is the number of passages retrieved per question.
	DefaultTopK = 5

	// SourcePreviewLen is the number of characters of a passage kept in an
	// answer's source list before "..." is appended.
	SourcePreviewLen = 200

	// RecentWindow is the look-back used by DefaultRange.
	RecentWindow = 7 * 24 * time.Hour

	// ContextSeparator joins retrieved passages into the prompt context.
	ContextSeparator = "\n\n"
)

// DefaultPromptTemplate instructs the model to answer strictly from the
// retrieved meeting context.
const DefaultPromptTemplate = `Ты ассистент для анализа рабочих созвонов.
Отвечай только на основе предоставленного контекста.
Если информации нет в контексте, скажи об этом честно.

Контекст:
{context}

Вопрос: {question}

Ответ:`

var (
	// ErrEmptyQuestion is returned when the question is blank.
	ErrEmptyQuestion = errors.New("qa: question must not be empty")

	// ErrInvalidFilter is returned when exactly one date bound is given.
	ErrInvalidFilter = errors.New("qa: date range requires both date_from and date_to")

	// ErrNoDocumentsIndexed is returned when the index holds no entries.
	ErrNoDocumentsIndexed = errors.New("qa: no transcripts indexed yet; upload transcripts first")

	// ErrRetrievalFailed wraps embedding and vector index failures.
	ErrRetrievalFailed = errors.New("qa: retrieval failed")

	// ErrGenerationFailed wraps answer generator failures.
	ErrGenerationFailed = errors.New("qa: generation failed")

	// ErrCancelled is returned when the caller's context ends mid-pipeline.
	ErrCancelled = errors.New("qa: request cancelled")
)

// Query is a question plus an optional closed upload-date range.
// Both bounds nil means no filtering; both set means From <= uploaded_at <= To.
type Query struct {
	Question string
	From     *time.Time
	To       *time.Time
}

// Source is one retrieved passage attached to an answer.
type Source struct {
	// Content is the passage text, truncated to SourcePreviewLen characters.
	Content string `json:"content"`

	// Metadata is the full metadata stored with the passage.
	Metadata map[string]any `json:"metadata"`
}

// Answer is the pipeline result.
type Answer struct {
	// Answer is the generator output, unmodified.
	Answer string `json:"answer"`

	// Sources are the retrieved passages in the order they appear in the context.
	Sources []Source `json:"sources"`
}

// Config tunes a Pipeline.
type Config struct {
	// TopK is the number of passages retrieved. Zero means DefaultTopK.
	TopK int

	// PromptTemplate must contain {context} and {question}. Empty means
	// DefaultPromptTemplate.
	PromptTemplate string

	// MaxPromptTokens is the estimated prompt size above which a warning is
	// logged. Zero means budget.DefaultMaxContextTokens.
	MaxPromptTokens int

	// Logger receives pipeline logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Pipeline answers questions against a vector index. It is safe for
// concurrent use when its Index and Generator are.
type Pipeline struct {
	index     rag.Index
	generator provider.Generator
	template  string
	topK      int
	maxTokens int
	log       *slog.Logger
}

// New constructs a Pipeline. index and generator must be non-nil and the
// template must carry both placeholders.
func New(index rag.Index, generator provider.Generator, cfg Config) (*Pipeline, error) {
	if index == nil {
		return nil, fmt.Errorf("qa: index must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("qa: generator must not be nil")
	}

	tmpl := cfg.PromptTemplate
	if tmpl == "" {
		tmpl = DefaultPromptTemplate
	}
	if err := ValidateTemplate(tmpl); err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		index:     index,
		generator: generator,
		template:  tmpl,
		topK:      topK,
		maxTokens: cfg.MaxPromptTokens,
		log:       log,
	}, nil
}

// ValidateTemplate checks that tmpl contains the {context} and {question}
// placeholders.
func ValidateTemplate(tmpl string) error {
	for _, p := range []string{"{context}", "{question}"} {
		if !strings.Contains(tmpl, p) {
			return fmt.Errorf("qa: prompt template is missing the %s placeholder", p)
		}
	}
	return nil
}

// TopK returns the number of passages retrieved per question.
func (p *Pipeline) TopK() int { return p.topK }

// Answer runs the full chain for q.
func (p *Pipeline) Answer(ctx context.Context, q Query) (*Answer, error) {
	start := time.Now()

	if strings.TrimSpace(q.Question) == "" {
		return nil, ErrEmptyQuestion
	}
	filter, err := BuildFilter(q.From, q.To)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	n, err := p.index.Count(ctx)
	if err != nil {
		return nil, classify(ctx, err, ErrRetrievalFailed, "counting indexed entries")
	}
	if n == 0 {
		return nil, ErrNoDocumentsIndexed
	}

	hits, err := p.index.Search(ctx, q.Question, p.topK, filter)
	if err != nil {
		return nil, classify(ctx, err, ErrRetrievalFailed, "searching index")
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	prompt := p.Render(JoinContext(hits), q.Question)
	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Text
	}
	if r := budget.Check(prompt, p.maxTokens, passages...); r.Over() {
		p.log.Warn("qa: prompt exceeds token budget",
			slog.Int("tokens_est", r.Tokens),
			slog.Int("max_tokens", r.Max),
			slog.Int("excess", r.Excess()),
			slog.Int("passages", len(hits)),
			slog.Int("largest_passage_tokens", r.Largest),
		)
	}

	text, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, classify(ctx, err, ErrGenerationFailed, "generating answer")
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	p.log.Info("qa: question answered",
		slog.Int("passages", len(hits)),
		slog.Bool("filtered", filter != nil),
		slog.Duration("duration", time.Since(start)),
	)

	return &Answer{Answer: text, Sources: Sources(hits)}, nil
}

// Render substitutes passages and question into the pipeline's template.
// Substitution is single-pass, so placeholder text inside either value is
// left as-is.
func (p *Pipeline) Render(passages, question string) string {
	return strings.NewReplacer("{context}", passages, "{question}", question).Replace(p.template)
}

// BuildFilter converts an optional date range into an index filter on
// uploaded_at. Both nil yields a nil filter; exactly one nil is
// ErrInvalidFilter. from after to is accepted and matches nothing.
func BuildFilter(from, to *time.Time) (*rag.Filter, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil || to == nil:
		return nil, ErrInvalidFilter
	}
	return &rag.Filter{Must: []rag.Condition{
		{Field: rag.TimestampKey, Gte: rag.Bound(float64(from.Unix()))},
		{Field: rag.TimestampKey, Lte: rag.Bound(float64(to.Unix()))},
	}}, nil
}

// DefaultRange returns the closed range [now-RecentWindow, now].
func DefaultRange(now time.Time) (from, to time.Time) {
	return now.Add(-RecentWindow), now
}

// JoinContext concatenates hit texts in rank order.
func JoinContext(hits []rag.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Text
	}
	return strings.Join(parts, ContextSeparator)
}

// Sources converts hits into answer sources, preserving order.
func Sources(hits []rag.Hit) []Source {
	out := make([]Source, len(hits))
	for i, h := range hits {
		out[i] = Source{Content: Preview(h.Text), Metadata: h.Metadata}
	}
	return out
}

// Preview truncates s to SourcePreviewLen characters and appends "..." when
// it was longer.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= SourcePreviewLen {
		return s
	}
	return string([]rune(s)[:SourcePreviewLen]) + "..."
}

// classify wraps err with kind, or with ErrCancelled when the context has
// ended or err is itself a context error.
func classify(ctx context.Context, err, kind error, op string) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %s: %w", ErrCancelled, op, cerr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrCancelled, op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
