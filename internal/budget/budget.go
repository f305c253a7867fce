// Package budget provides token budget estimation and grounding-context
// trimming for the answer pipeline. Because the pipeline supports multiple
// LLM backends with different tokenizers, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters. This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default grounding-context budget in
	// tokens. Conservative enough to fit within 8k-context models while
	// leaving room for the question, system prompt, and output.
	DefaultMaxContextTokens = 6000

	// chunkSeparatorTokens is the per-chunk overhead for the blank-line
	// separator joining chunks in the final prompt.
	chunkSeparatorTokens = 1
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimChunks returns the longest prefix of chunks whose combined estimated
// token count fits within maxTokens. Chunks arrive ranked most relevant
// first, so trimming drops the least relevant tail. The first chunk is
// always kept even when it alone exceeds the budget, so the model always
// sees some grounding text.
func TrimChunks(chunks []string, maxTokens int) []string {
	if len(chunks) == 0 {
		return chunks
	}

	total := 0
	for i, c := range chunks {
		total += Estimate(c) + chunkSeparatorTokens
		if total > maxTokens && i > 0 {
			return chunks[:i]
		}
	}
	return chunks
}
