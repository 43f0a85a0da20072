package promptbuilder

import (
	"strings"

	"github.com/chuk-ai/toolgraph/llm"
)

// TokenEstimator estimates the token cost of a message. The default
// WordCountEstimator is a deterministic word/character-based approximation;
// callers wanting tokenizer-exact budgets can supply one backed by a real
// tokenizer behind the same interface.
type TokenEstimator interface {
	Estimate(m llm.Message) int
}

// WordCountEstimator approximates token count as roughly 4/3 of a token per
// word plus a per-character fallback for content with few word breaks (JSON
// tool-result blobs, for instance), so it degrades gracefully on
// non-prose content instead of undercounting it.
type WordCountEstimator struct{}

// Estimate implements TokenEstimator.
func (WordCountEstimator) Estimate(m llm.Message) int {
	words := len(strings.Fields(m.Content))
	byChar := len(m.Content) / 4
	if words == 0 {
		return byChar
	}
	estimate := words * 4 / 3
	if byChar > estimate {
		return byChar
	}
	return estimate
}

// Truncate drops the oldest non-system messages from messages until the
// total estimated token count fits within maxTokens. System messages are
// never dropped, since they carry ancestor-session context the hierarchical
// strategy relies on. If system messages alone exceed maxTokens, they are
// returned as-is; Truncate never drops a system message to make budget.
func Truncate(messages []llm.Message, maxTokens int, estimator TokenEstimator) []llm.Message {
	if estimator == nil {
		estimator = WordCountEstimator{}
	}
	if maxTokens <= 0 {
		return messages
	}

	total := 0
	costs := make([]int, len(messages))
	for i, m := range messages {
		costs[i] = estimator.Estimate(m)
		total += costs[i]
	}
	if total <= maxTokens {
		return messages
	}

	kept := make([]bool, len(messages))
	for i := range kept {
		kept[i] = true
	}

	for i, m := range messages {
		if total <= maxTokens {
			break
		}
		if m.Role == llm.RoleSystem {
			continue
		}
		kept[i] = false
		total -= costs[i]
	}

	out := make([]llm.Message, 0, len(messages))
	for i, m := range messages {
		if kept[i] {
			out = append(out, m)
		}
	}
	return out
}
