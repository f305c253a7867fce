package pipeline

import (
	"context"
	"strings"
)

// expandTemperature biases expansion toward lexical diversity; the final
// answer is synthesized at temperature 0 to stay deterministic.
const expandTemperature = 0.4

// expandQueries turns a question into its QuerySet: the original question
// first, followed by up to count model-generated alternative phrasings, with
// exact-duplicate strings removed preserving first-occurrence order.
// Expansion is a recall optimization, never a hard dependency: any model
// failure degrades to just the original question.
func (p *Pipeline) expandQueries(ctx context.Context, question string, count int) []string {
	log := p.log.With("question", question)

	response, err := p.llm.Generate(ctx, "", buildExpandPrompt(question, count), expandTemperature)
	if err != nil {
		log.Warn("query expansion failed, falling back to single-query search", "error", err)
		return []string{question}
	}

	queries := []string{question}
	for _, line := range strings.Split(response, "\n") {
		if q := strings.TrimSpace(line); q != "" {
			queries = append(queries, q)
		}
	}

	deduped := dedupeStrings(queries)
	log.Debug("generated alternative queries", "queries", deduped)
	return deduped
}

// dedupeStrings removes exact duplicates preserving first-occurrence order.
func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
