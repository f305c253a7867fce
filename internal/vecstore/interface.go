// Package vecstore defines the vector index contract consumed by the QA
// pipeline and its Qdrant-backed implementation. The pipeline never sees
// embeddings: it hands over chunk text and query text, and gets back hits
// ranked by ascending distance (smaller = more relevant).
package vecstore

import (
	"context"
)

// Hit is one retrieved chunk with its distance to the query.
type Hit struct {
	// Text is the chunk text as it was stored.
	Text string

	// Metadata holds the chunk's provenance fields (row_id, source_file).
	// Values are strings because the store is schema-less text.
	Metadata map[string]string

	// Distance is a non-negative similarity distance; smaller means more
	// relevant. Hits from Search arrive in ascending distance order.
	Distance float64
}

// Stats describes the current state of the backing collection.
type Stats struct {
	// Count is the number of chunks currently stored.
	Count uint64 `json:"count"`
	// CollectionName is the name of the backing collection.
	CollectionName string `json:"collection_name"`
	// EmbeddingModel is the model used to embed chunks and queries.
	EmbeddingModel string `json:"embedding_model"`
	// Path is the address of the backing store.
	Path string `json:"path"`
}

// Index is the vector index contract. Implementations must be safe to call
// from multiple goroutines.
type Index interface {
	// Reset atomically replaces the backing collection with an empty one of
	// the same name. Calling Reset on an already-empty index is a no-op.
	Reset(ctx context.Context) error

	// Add bulk-inserts chunks. The three slices are parallel: metadatas[i]
	// and ids[i] belong to chunks[i]. Metadata values are stored as strings.
	Add(ctx context.Context, chunks []string, metadatas []map[string]string, ids []string) error

	// Search returns the topK nearest chunks for the query text, ordered by
	// ascending distance.
	Search(ctx context.Context, query string, topK int) ([]Hit, error)

	// Stats returns the collection's current statistics.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the index.
	Close() error
}

// Embedder converts text into dense vector embeddings. Implementations must
// be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
