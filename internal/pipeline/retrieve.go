package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/avolkov/demandqa-go/internal/vecstore"
)

// scoredChunk is one retrieved chunk tagged with its retrieval identity.
// The identity is distinct from the storage id: it must compare equal for
// the same underlying chunk regardless of which expanded query produced it,
// so duplicate suppression across queries is correct.
type scoredChunk struct {
	// ID is the retrieval-identity key: <row_id>_<rank>_<fnv64a(text)>.
	ID string
	// Text is the chunk text.
	Text string
	// Metadata holds the chunk's provenance fields.
	Metadata map[string]string
	// Distance is the similarity distance, smaller = more relevant.
	Distance float64
}

// queryResult is the outcome of retrieval for one expanded query. A failed
// sub-query carries its error here instead of aborting the whole request;
// the aggregation step simply skips it.
type queryResult struct {
	// Query is the expanded query string that was searched.
	Query string
	// Chunks are the tagged hits, ordered by ascending distance.
	Chunks []scoredChunk
	// Err is the search failure, if any. When set, Chunks is empty.
	Err error
}

// retrieve runs one query against the index and tags each hit with its
// retrieval identity.
func (p *Pipeline) retrieve(ctx context.Context, query string, topK int) ([]scoredChunk, error) {
	hits, err := p.index.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("pipeline: search %q: %w", query, err)
	}

	chunks := make([]scoredChunk, len(hits))
	for i, h := range hits {
		chunks[i] = scoredChunk{
			ID:       retrievalID(h, i),
			Text:     h.Text,
			Metadata: h.Metadata,
			Distance: h.Distance,
		}
	}
	return chunks, nil
}

// retrievalID derives the stable identity of a hit from its row id, its rank
// within the current search call, and a content hash of its text. Two
// queries returning the same underlying chunk at the same rank produce the
// same id.
func retrievalID(h vecstore.Hit, rank int) string {
	hash := fnv.New64a()
	hash.Write([]byte(h.Text))
	return fmt.Sprintf("%s_%d_%d", h.Metadata["row_id"], rank, hash.Sum64())
}

// dedupeAndRank merges per-query results into one ranked list: duplicates
// collapse by retrieval identity with the first occurrence winning, failed
// sub-queries contribute nothing, and the survivors sort ascending by
// distance. The sort is stable so equal distances keep their merge order.
func dedupeAndRank(results []queryResult) []scoredChunk {
	var merged []scoredChunk
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, c := range r.Chunks {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	return merged
}
