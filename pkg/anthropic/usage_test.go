package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 6.0, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)
	assert.Zero(t, u.EstimateCost("unknown"))

	cached := TokenUsage{CacheCreationInputTokens: 1_000_000, CacheReadInputTokens: 1_000_000}
	assert.InDelta(t, 1.25+0.1, cached.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
}

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{InputTokens: 1, OutputTokens: 2, CacheReadInputTokens: 3}
	b := TokenUsage{InputTokens: 10, OutputTokens: 20, CacheCreationInputTokens: 5}
	assert.Equal(t, TokenUsage{InputTokens: 11, OutputTokens: 22, CacheCreationInputTokens: 5, CacheReadInputTokens: 3}, a.Add(b))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 10}.LogCost("claude-haiku-4-5-20251001", "advice")
	})
}
