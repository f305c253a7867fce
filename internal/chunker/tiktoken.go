package chunker

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the tiktoken encoding used for chunk windows. cl100k_base
// is model-agnostic enough for sizing purposes across the supported backends.
const encodingName = "cl100k_base"

// tiktokenTokenizer adapts tiktoken-go to the Tokenizer interface.
type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// Encode converts text into its cl100k_base token-ID sequence.
func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode converts a token-ID sequence back into text.
func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// NewTokenizer returns the cl100k_base tokenizer, or nil when the encoding
// cannot be initialised (e.g. the BPE data is unreachable). A nil return is
// not an error: the chunker falls back to word-approximate windows, which is
// a degraded-accuracy path rather than a failure.
func NewTokenizer(log *slog.Logger) Tokenizer {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		log.Warn("chunker: tokenizer unavailable, falling back to word approximation",
			slog.String("encoding", encodingName),
			slog.Any("error", err),
		)
		return nil
	}
	return &tiktokenTokenizer{enc: enc}
}
