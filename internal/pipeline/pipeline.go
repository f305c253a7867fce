// Package pipeline implements the retrieval-augmented answer pipeline over
// the demand dataset: ingestion (rows → formatted text → chunks → vector
// index) and question answering (query expansion → per-query retrieval →
// dedupe and rank → grounded synthesis → aggregation fallback).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/avolkov/demandqa-go/internal/budget"
	"github.com/avolkov/demandqa-go/internal/chunker"
	"github.com/avolkov/demandqa-go/internal/format"
	"github.com/avolkov/demandqa-go/internal/llm"
	"github.com/avolkov/demandqa-go/internal/vecstore"
)

// Fixed user-visible answers. These are part of the observable contract:
// clients match on them, so the wording must stay stable.
const (
	// NoContextAnswer is returned when no chunk was retrieved across all
	// expanded queries. The model is never invoked with an empty context.
	NoContextAnswer = "Извините, я не могу ответить на этот вопрос на основе предоставленных данных, так как не найдено релевантной информации."

	// SynthesisFailedAnswer replaces the model answer when the final
	// synthesis call fails. Model failure is reported as text, not as an
	// error, so callers handle one shape.
	SynthesisFailedAnswer = "Извините, произошла ошибка при генерации ответа."
)

// answerTemperature keeps the final answer deterministic.
const answerTemperature = 0.0

// Config holds the pipeline's tuning knobs, validated by the caller before
// construction.
type Config struct {
	// TopK is the number of nearest chunks fetched per expanded query.
	TopK int
	// MultiQuery enables query expansion before retrieval.
	MultiQuery bool
	// ExpansionCount is the number of alternative queries requested from
	// the model when MultiQuery is enabled.
	ExpansionCount int
	// SourceFile is the provenance label stored with every chunk and echoed
	// back in answer sources.
	SourceFile string
	// MaxContextTokens bounds the grounding context passed to the model.
	// Zero means budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Pipeline wires the chunker, the vector index, and the chat model into the
// ingest and ask flows. Construct one per process and share it; all methods
// are safe for concurrent use as long as Ingest and Ask are not interleaved
// (ingestion replaces the backing collection).
type Pipeline struct {
	index   vecstore.Index
	llm     llm.Client
	chunker *chunker.Chunker
	cfg     Config
	log     *slog.Logger
}

// Answer is the result of one ask call.
type Answer struct {
	// Answer is the final answer text, possibly a refusal or apology string.
	Answer string `json:"answer"`
	// Sources lists the provenance of the chunks behind the answer,
	// deduplicated and lexicographically sorted.
	Sources []string `json:"sources"`
	// Duration is how long the whole ask took.
	Duration time.Duration `json:"-"`
}

// New constructs a Pipeline. All collaborators are required.
func New(index vecstore.Index, client llm.Client, ch *chunker.Chunker, cfg Config, log *slog.Logger) (*Pipeline, error) {
	if index == nil {
		return nil, fmt.Errorf("pipeline: index must not be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("pipeline: llm client must not be nil")
	}
	if ch == nil {
		return nil, fmt.Errorf("pipeline: chunker must not be nil")
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("pipeline: top_k must be positive, got %d", cfg.TopK)
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{index: index, llm: client, chunker: ch, cfg: cfg, log: log}, nil
}

// Ingest replaces the index contents with the chunked form of the given
// records. Reset and add form one logical unit: when the add fails after a
// successful reset, the index is left empty and the error is returned, never
// silently reported as success. Returns the number of chunks written.
func (p *Pipeline) Ingest(ctx context.Context, records []format.Record) (int, error) {
	p.log.Info("starting ingestion", "rows", len(records))

	var (
		chunks    []string
		metadatas []map[string]string
		ids       []string
	)
	for i, rec := range records {
		rowID := rec.RowID(i)
		text := format.Row(rec)
		for j, chunk := range p.chunker.Split(text) {
			chunks = append(chunks, chunk)
			metadatas = append(metadatas, map[string]string{
				"row_id":      rowID,
				"source_file": p.cfg.SourceFile,
			})
			ids = append(ids, fmt.Sprintf("doc_%s_chunk_%d", rowID, j))
		}
	}

	if err := p.index.Reset(ctx); err != nil {
		return 0, fmt.Errorf("pipeline: reset before ingest: %w", err)
	}
	if err := p.index.Add(ctx, chunks, metadatas, ids); err != nil {
		return 0, fmt.Errorf("pipeline: add %d chunks: %w", len(chunks), err)
	}

	p.log.Info("ingestion complete", "rows", len(records), "chunks", len(chunks))
	return len(chunks), nil
}

// Ask answers a question over the indexed data. It always returns an Answer:
// degraded paths (failed expansion, failed sub-queries, failed synthesis)
// produce apology or refusal text rather than errors, so the serving layer
// handles exactly one result shape.
func (p *Pipeline) Ask(ctx context.Context, question string) Answer {
	start := time.Now()
	log := p.log.With("question", question)
	log.Info("processing question")

	queries := []string{question}
	if p.cfg.MultiQuery {
		queries = p.expandQueries(ctx, question, p.cfg.ExpansionCount)
	}

	results := make([]queryResult, 0, len(queries))
	for _, q := range queries {
		chunks, err := p.retrieve(ctx, q, p.cfg.TopK)
		if err != nil {
			log.Warn("sub-query retrieval failed, skipping", "query", q, "error", err)
		}
		results = append(results, queryResult{Query: q, Chunks: chunks, Err: err})
	}

	ranked := dedupeAndRank(results)
	if len(ranked) == 0 {
		log.Warn("no relevant chunks retrieved")
		return Answer{Answer: NoContextAnswer, Sources: []string{}, Duration: time.Since(start)}
	}

	contextTexts := make([]string, len(ranked))
	for i, c := range ranked {
		contextTexts[i] = c.Text
	}
	contextTexts = budget.TrimChunks(contextTexts, p.cfg.MaxContextTokens)
	ranked = ranked[:len(contextTexts)]

	answer, err := p.llm.Generate(ctx, "", buildAnswerPrompt(contextTexts, question), answerTemperature)
	if err != nil {
		log.Error("answer synthesis failed", "error", err)
		answer = SynthesisFailedAnswer
	}

	if agg := aggregationFallback(question, contextTexts); agg != "" {
		log.Info("aggregation fallback applied")
		answer = agg + "\n\n" + answer
	}

	return Answer{
		Answer:   answer,
		Sources:  collectSources(ranked),
		Duration: time.Since(start),
	}
}

// ResetIndex empties the backing collection. Idempotent.
func (p *Pipeline) ResetIndex(ctx context.Context) error {
	if err := p.index.Reset(ctx); err != nil {
		return fmt.Errorf("pipeline: reset index: %w", err)
	}
	return nil
}

// Stats reports the current state of the backing collection.
func (p *Pipeline) Stats(ctx context.Context) (vecstore.Stats, error) {
	stats, err := p.index.Stats(ctx)
	if err != nil {
		return vecstore.Stats{}, fmt.Errorf("pipeline: index stats: %w", err)
	}
	return stats, nil
}

// collectSources maps ranked chunks to their human-readable provenance
// strings, deduplicated and lexicographically sorted.
func collectSources(ranked []scoredChunk) []string {
	seen := make(map[string]bool, len(ranked))
	sources := make([]string, 0, len(ranked))
	for _, c := range ranked {
		rowID := metadataOr(c.Metadata, "row_id", "N/A")
		sourceFile := metadataOr(c.Metadata, "source_file", "N/A")
		s := fmt.Sprintf("Строка %s из %s", rowID, sourceFile)
		if seen[s] {
			continue
		}
		seen[s] = true
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

func metadataOr(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return fallback
}
