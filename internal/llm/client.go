// Package llm defines the Client interface the answer pipeline uses to talk
// to a chat model, plus a factory for selecting and constructing the backend
// implementation at runtime. Supported backends: Ollama, OpenAI, Azure
// OpenAI, Google Gemini.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Client is the minimal surface the pipeline needs from a chat model: a
// single blocking completion with an explicit sampling temperature.
// Implementations must be safe to call from multiple goroutines.
type Client interface {
	// Generate sends one system+user exchange to the model and returns the
	// assistant's text. An empty system string omits the system message.
	Generate(ctx context.Context, system, prompt string, temperature float32) (string, error)
}

// ModelClient adapts an Eino chat model to the Client interface, applying a
// per-call timeout so a hung inference server cannot stall the pipeline
// indefinitely.
type ModelClient struct {
	// chat is the underlying model constructed by the backend factory.
	chat model.BaseChatModel
	// timeout bounds each Generate call (0 = no bound).
	timeout time.Duration
}

// NewModelClient wraps an Eino chat model with the given per-call timeout.
func NewModelClient(chat model.BaseChatModel, timeout time.Duration) *ModelClient {
	return &ModelClient{chat: chat, timeout: timeout}
}

// Generate implements Client.
func (c *ModelClient) Generate(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]*schema.Message, 0, 2)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(prompt))

	msg, err := c.chat.Generate(ctx, messages, model.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("llm: generate returned no message")
	}
	return msg.Content, nil
}
