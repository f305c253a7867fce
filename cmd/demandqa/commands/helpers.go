package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/avolkov/demandqa-go/internal/chunker"
	"github.com/avolkov/demandqa-go/internal/config"
	"github.com/avolkov/demandqa-go/internal/embedder"
	"github.com/avolkov/demandqa-go/internal/llm"
	"github.com/avolkov/demandqa-go/internal/pipeline"
	"github.com/avolkov/demandqa-go/internal/vecstore"
)

// buildIndex connects to Qdrant with the configured embedding backend and
// ensures the target collection exists.
func buildIndex(ctx context.Context, cfg *config.Config, log *slog.Logger) (*vecstore.QdrantIndex, error) {
	if err := embedder.Validate(cfg.Embedding, log); err != nil {
		return nil, err
	}
	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	index, err := vecstore.NewQdrantIndex(ctx, emb, &vecstore.QdrantConfig{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		Collection:     cfg.Qdrant.Collection,
		VectorSize:     uint64(cfg.Embedding.Dimensions),
		EmbeddingModel: cfg.Embedding.Model,
		APIKey:         cfg.Qdrant.APIKey,
		UseTLS:         cfg.Qdrant.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Qdrant.Host, cfg.Qdrant.Port, err)
	}
	return index, nil
}

// buildPipeline wires the full QA pipeline: embedder, Qdrant index, chat
// model, and chunker, all from the resolved config.
func buildPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pipeline.Pipeline, *vecstore.QdrantIndex, error) {
	index, err := buildIndex(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	client, err := llm.New(ctx, cfg.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise chat model: %w", err)
	}
	log.Info("chat model initialised",
		slog.String("provider", cfg.Model.Provider),
		slog.String("model", cfg.Model.Name),
	)

	ch, err := chunker.New(chunker.NewTokenizer(log), cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, nil, err
	}

	pipe, err := pipeline.New(index, client, ch, pipeline.Config{
		TopK:           cfg.Retrieval.TopK,
		MultiQuery:     cfg.Retrieval.MultiQuery,
		ExpansionCount: cfg.Retrieval.ExpansionCount,
		SourceFile:     filepath.Base(cfg.Data.Path),
	}, log)
	if err != nil {
		return nil, nil, err
	}

	return pipe, index, nil
}
