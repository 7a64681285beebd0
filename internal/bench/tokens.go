package bench

import (
	"strings"

	"github.com/accelbench/vllmbench/internal/completions"
)

// TokenSource names the rule that produced a sample's token count.
type TokenSource string

const (
	SourceUsageDelta      TokenSource = "usage_total_minus_prompt"
	SourceUsageCompletion TokenSource = "usage_completion_tokens"
	SourceChoiceText      TokenSource = "choice_text_words"
	SourceMessageContent  TokenSource = "message_content_words"
	SourceNone            TokenSource = "none"
)

// Estimated reports whether the count is a word-count approximation rather
// than a figure reported by the server.
func (s TokenSource) Estimated() bool {
	return s != SourceUsageDelta && s != SourceUsageCompletion
}

type tokenStrategy struct {
	source TokenSource
	count  func(*completions.Response) (int, bool)
}

// tokenStrategies are tried in order; the first that applies wins.
// usage.completion_tokens is consulted before any word count, so a server
// that reports only completion_tokens is measured rather than estimated.
var tokenStrategies = []tokenStrategy{
	{SourceUsageDelta, usageDelta},
	{SourceUsageCompletion, usageCompletion},
	{SourceChoiceText, choiceTextWords},
	{SourceMessageContent, messageContentWords},
}

// countTokens returns the generated-token count for resp and the rule used.
// When no rule applies it returns 0 and SourceNone.
func countTokens(resp *completions.Response) (int, TokenSource) {
	for _, s := range tokenStrategies {
		if n, ok := s.count(resp); ok {
			return n, s.source
		}
	}
	return 0, SourceNone
}

func usageDelta(resp *completions.Response) (int, bool) {
	u := resp.Usage
	if u == nil || !u.TotalTokens.Valid || !u.PromptTokens.Valid {
		return 0, false
	}
	n := u.TotalTokens.Value - u.PromptTokens.Value
	return n, n > 0
}

func usageCompletion(resp *completions.Response) (int, bool) {
	u := resp.Usage
	if u == nil || !u.CompletionTokens.Valid || u.CompletionTokens.Value <= 0 {
		return 0, false
	}
	return u.CompletionTokens.Value, true
}

func choiceTextWords(resp *completions.Response) (int, bool) {
	if len(resp.Choices) == 0 || !resp.Choices[0].Text.Valid {
		return 0, false
	}
	return len(strings.Fields(resp.Choices[0].Text.Value)), true
}

func messageContentWords(resp *completions.Response) (int, bool) {
	if len(resp.Choices) == 0 {
		return 0, false
	}
	m := resp.Choices[0].Message
	if m == nil || !m.Content.Valid {
		return 0, false
	}
	return len(strings.Fields(m.Content.Value)), true
}
