// Package tokenizer provides token counting and truncation for prompt
// budget management, with tiktoken-backed exact counts and a
// character-ratio estimator fallback.
package tokenizer

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the token count of the given text.
	CountTokens(text string) (int, error)

	// Encode converts text to a list of token IDs.
	Encode(text string) ([]int, error)

	// Decode converts token IDs back to text.
	Decode(tokens []int) (string, error)

	// Name returns the tokenizer name.
	Name() string
}

// Truncate returns text cut down to at most maxTokens tokens. When the
// tokenizer cannot encode or decode, it falls back to a character-ratio
// cut so callers always get a bounded string.
func Truncate(t Tokenizer, text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return ""
	}

	count, err := t.CountTokens(text)
	if err == nil && count <= maxTokens {
		return text
	}

	tokens, err := t.Encode(text)
	if err == nil && len(tokens) > maxTokens {
		if cut, derr := t.Decode(tokens[:maxTokens]); derr == nil {
			return cut
		}
	}

	// Fallback: assume ~4 characters per token.
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
