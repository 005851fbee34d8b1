package segment

import "strings"

// Tokenizer counts tokens for chunk budgeting. Implementations return a
// non-negative count that grows with text length; the exact algorithm is
// up to the caller.
type Tokenizer interface {
	Count(text string) int
}

// WordCount counts whitespace-separated words. Useful when the budget is
// expressed in words rather than model tokens.
type WordCount struct{}

func (WordCount) Count(text string) int {
	return len(strings.Fields(text))
}

// Estimate is the default Tokenizer, using the word-based heuristic below.
type Estimate struct{}

func (Estimate) Count(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens gives a rough token count using a words-based heuristic.
// This is intentionally simple — exact tokenization is not required for
// budgeting.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per word for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}
