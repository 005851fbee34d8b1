// Package segment splits raw document text into bounded-size chunks at
// sentence boundaries. Chunks are the unit of storage and retrieval; each
// one later becomes a classified section.
package segment

import "strings"

// Config controls segmentation behavior.
type Config struct {
	MaxTokens int       // Token budget per chunk.
	Tokenizer Tokenizer // Counts tokens per sentence. Defaults to Estimate.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 500,
		Tokenizer: Estimate{},
	}
}

// Segmenter accumulates sentences into chunks under a token budget.
// It is stateless after construction and safe for concurrent use.
type Segmenter struct {
	maxTokens int
	tok       Tokenizer
}

// New builds a Segmenter, substituting defaults for zero config values.
func New(cfg Config) *Segmenter {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = Estimate{}
	}
	return &Segmenter{maxTokens: cfg.MaxTokens, tok: cfg.Tokenizer}
}

// Split breaks text into chunks at sentence boundaries. Sentences are
// appended to the current chunk while the running token count stays within
// the budget; the next sentence over budget closes the chunk and starts a
// new one. A single sentence that alone exceeds the budget becomes its own
// chunk rather than being split below sentence granularity. The final
// partial chunk is always emitted. Output order matches input order and the
// result is deterministic for a fixed Tokenizer.
func (s *Segmenter) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range sentences {
		sentTokens := s.tok.Count(sent)

		if currentTokens+sentTokens > s.maxTokens && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

// splitSentences does basic sentence splitting on terminal punctuation
// followed by whitespace. Periods inside numbers like "37.5" do not split
// because the next byte is not whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && isSpaceByte(text[i+1]) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
