package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want int
	}{
		"empty":               {"", 0},
		"single char":         {"a", 1},
		"one token":           {"abcd", 1},
		"rounds down":         {"abcdefg", 1},
		"two tokens":          {"abcdefgh", 2},
		"ascii paragraph":     {strings.Repeat("x", 400), 100},
		"cyrillic uses runes": {strings.Repeat("ж", 400), 100},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Estimate(tt.in))
		})
	}
}

func TestEstimateMessages(t *testing.T) {
	t.Parallel()

	// 4 framing + 1 for "user" + 2 for "hello world", twice
	msgs := []*schema.Message{schema.UserMessage("hello world"), schema.UserMessage("hello world")}
	assert.Equal(t, 14, EstimateMessages(msgs))
	assert.Zero(t, EstimateMessages(nil))
}

func TestCheck(t *testing.T) {
	t.Parallel()

	r := Check(strings.Repeat("x", 400), 50)
	assert.True(t, r.Over())
	assert.Equal(t, 100, r.Tokens)
	assert.Equal(t, 50, r.Excess())

	r = Check("short prompt", 0)
	assert.Equal(t, DefaultMaxContextTokens, r.Max)
	assert.False(t, r.Over())
	assert.Zero(t, r.Excess())
}

func TestCheck_Passages(t *testing.T) {
	t.Parallel()

	a, b := strings.Repeat("a", 40), strings.Repeat("b", 120)
	r := Check("Context:\n"+a+"\n\n"+b, 0, a, b)
	assert.Equal(t, 40, r.Passages)
	assert.Equal(t, 30, r.Largest)
}
