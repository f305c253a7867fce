// Package chunker splits formatted row text into bounded, overlapping
// token windows suitable for embedding. Windows are measured in LLM tokens
// via an injected Tokenizer; when no tokenizer is available the chunker
// degrades to a word-count approximation (1 word ≈ 1 token) with the same
// windowing arithmetic.
package chunker

import (
	"fmt"
	"strings"
)

// Tokenizer converts text to a token-ID sequence and back. The concrete
// implementation is the tiktoken cl100k_base encoding; tests inject fakes.
type Tokenizer interface {
	// Encode converts text into its token-ID sequence.
	Encode(text string) []int
	// Decode converts a token-ID sequence back into text.
	Decode(tokens []int) string
}

// Chunker produces overlapping token windows over input text.
// Construct with New; the zero value is not usable.
type Chunker struct {
	// tok is the tokenizer, or nil when only word-approximate chunking is
	// available.
	tok Tokenizer

	// size is the window length in tokens.
	size int

	// overlap is the number of tokens shared by consecutive windows.
	overlap int
}

// New constructs a Chunker with the given window size and overlap, both in
// tokens. tok may be nil, in which case every Split call takes the degraded
// word-approximation path. overlap >= size is a configuration error: the
// window stride would be zero or negative and the walk would never terminate.
func New(tok Tokenizer, size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Chunker{tok: tok, size: size, overlap: overlap}, nil
}

// Approximate reports whether this chunker runs without a real tokenizer and
// therefore produces word-approximate (not bit-exact) chunk boundaries.
func (c *Chunker) Approximate() bool {
	return c.tok == nil
}

// Split breaks text into overlapping chunks. Empty or blank input yields no
// chunks. The windows cover the full token stream; each boundary repeats the
// configured overlap from the previous window.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.tok == nil {
		return c.splitWords(text)
	}

	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(tokens); start += c.size - c.overlap {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.tok.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// splitWords is the degraded path: the same sliding window over whitespace
// words, treating one word as one token.
func (c *Chunker) splitWords(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(words); start += c.size - c.overlap {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
