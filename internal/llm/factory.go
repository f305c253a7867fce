package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/avolkov/demandqa-go/internal/config"
)

// New constructs a Client from the model config, delegating to the
// appropriate backend constructor. The config is assumed to have passed
// config.Validate already; backend-specific requirements (keys, endpoints)
// are checked here so callers get a clear error at startup rather than on
// the first request.
func New(ctx context.Context, cfg config.ModelConfig) (Client, error) {
	var (
		chat model.BaseChatModel
		err  error
	)
	switch cfg.Provider {
	case "ollama":
		chat, err = newOllama(ctx, cfg)
	case "openai":
		chat, err = newOpenAI(ctx, cfg)
	case "azure":
		chat, err = newAzure(ctx, cfg)
	case "gemini":
		chat, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm: unknown backend %q (valid values: ollama, openai, azure, gemini)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewModelClient(chat, cfg.Timeout), nil
}
