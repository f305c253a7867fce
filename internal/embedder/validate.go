package embedder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/avolkov/demandqa-go/internal/config"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If the configured embedding
// model matches any of these, a warning is emitted so the operator knows they
// may have misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks that the embedding configuration is usable before any
// network client is constructed. It returns an error when required
// credentials are missing for the chosen backend, and logs a warning when
// the configured model looks like a chat model rather than an embedding
// model. Call it at startup so operators get a clear error instead of a
// cryptic failure on the first embed call.
func Validate(cfg config.EmbeddingConfig, log *slog.Logger) error {
	switch cfg.Provider {
	case "ollama":
		// Local backend, nothing to require up front.

	case "openai":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: openai backend selected but no API key set (EMBEDDING_API_KEY)")
		}

	case "azure":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: azure backend selected but no API key set (EMBEDDING_API_KEY)")
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("embedder: azure backend selected but no endpoint set (EMBEDDING_ENDPOINT)")
		}

	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", cfg.Provider)
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: configured model looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
