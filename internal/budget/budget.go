// Package budget estimates the token size of rendered prompts. Answer
// generation supports several LLM backends with different tokenizers, so the
// estimate uses a character heuristic: 1 token ≈ 4 characters. Characters are
// counted as runes so Cyrillic transcripts are not over-counted by their
// UTF-8 byte length.
//
// The budget never trims retrieved context: the sources returned to the user
// must be exactly the passages the model saw. Oversized prompts are reported
// so operators can lower TOP_K or CHUNK_SIZE.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	charsPerToken = 4

	// messageOverhead is the per-message framing cost most chat APIs add.
	messageOverhead = 4

	// DefaultMaxContextTokens fits 8k-context models (Llama 3 8B,
	// Mistral 7B) with room left for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s. Any non-empty string costs at
// least one token.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	if runes == 0 {
		return 0
	}
	return max(runes/charsPerToken, 1)
}

// EstimateMessages sums role, content and framing over msgs.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead + Estimate(string(m.Role)) + Estimate(m.Content)
	}
	return total
}

// Report is the outcome of checking a prompt against a budget.
type Report struct {
	// Tokens is the estimated prompt size.
	Tokens int
	// Max is the budget the prompt was checked against.
	Max int
	// Passages is the estimated size of the retrieved context alone.
	Passages int
	// Largest is the estimated size of the biggest single passage.
	Largest int
}

// Over reports whether the prompt exceeds its budget.
func (r Report) Over() bool { return r.Tokens > r.Max }

// Excess is how many tokens the prompt is over budget, or zero.
func (r Report) Excess() int { return max(r.Tokens-r.Max, 0) }

// Check estimates prompt against maxTokens. A non-positive maxTokens
// selects DefaultMaxContextTokens. passages are the retrieved texts that
// were rendered into prompt; they only feed the Passages and Largest
// fields.
func Check(prompt string, maxTokens int, passages ...string) Report {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	r := Report{Tokens: Estimate(prompt), Max: maxTokens}
	for _, p := range passages {
		n := Estimate(p)
		r.Passages += n
		r.Largest = max(r.Largest, n)
	}
	return r
}
