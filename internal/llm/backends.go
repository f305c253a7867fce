package llm

import (
	"context"
	"fmt"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/avolkov/demandqa-go/internal/config"
)

// newOllama constructs a chat model backed by a local Ollama instance.
// Requires MODEL_NAME; OLLAMA_HOST defaults to http://localhost:11434.
func newOllama(ctx context.Context, cfg config.ModelConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	v, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: baseURL,
		Model:   cfg.Name,
	})
	return v, err
}

// newOpenAI constructs a chat model backed by the OpenAI API.
// Requires MODEL_API_KEY and MODEL_NAME.
func newOpenAI(ctx context.Context, cfg config.ModelConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: MODEL_API_KEY is required for openai backend")
	}
	v, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:  cfg.Name,
		APIKey: cfg.APIKey,
	})
	return v, err
}

// newAzure constructs a chat model backed by Azure OpenAI Service.
// Requires MODEL_API_KEY, a base URL, and AZURE_OPENAI_DEPLOYMENT.
func newAzure(ctx context.Context, cfg config.ModelConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: MODEL_API_KEY is required for azure backend")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: model endpoint is required for azure backend")
	}
	if cfg.AzureDeployment == "" {
		return nil, fmt.Errorf("llm: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
	}
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:      cfg.AzureDeployment,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		ByAzure:    true,
		APIVersion: cfg.AzureAPIVersion,
		// Use the deployment name as-is; the default mapper strips dots/colons
		// which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	})
}

// newGemini constructs a chat model backed by Google Gemini (AI Studio).
// Requires MODEL_API_KEY and MODEL_NAME (e.g. "gemini-1.5-pro").
func newGemini(ctx context.Context, cfg config.ModelConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: MODEL_API_KEY is required for gemini backend")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create Gemini client: %w", err)
	}
	return einogemini.NewChatModel(ctx, &einogemini.Config{ //nolint:wrapcheck // constructor passthrough
		Client: client,
		Model:  cfg.Name,
	})
}
