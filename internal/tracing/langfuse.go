// Package tracing wires the Langfuse observability callback into the eino
// chat models. Tracing is opt-in: without credentials the pipeline runs
// untraced.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/avolkov/demandqa-go/internal/config"
)

// defaultHost is used when credentials are set but no host is configured.
const defaultHost = "http://localhost:3000"

// Setup initialises the Langfuse callback handler from cfg. It returns the
// handler, a flush function that must be called before process exit so
// buffered traces are sent, and whether tracing is enabled. With missing
// credentials all three are zero values and tracing is silently disabled.
func Setup(cfg config.TracingConfig) (callbacks.Handler, func(), bool) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, nil, false
	}
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})

	return handler, flusher, true
}
