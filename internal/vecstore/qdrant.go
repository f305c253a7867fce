package vecstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// EmbeddingModel is the embedding model label reported by Stats.
	EmbeddingModel string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index backed by a Qdrant instance. Chunk and query
// text is embedded through the injected Embedder before it reaches Qdrant.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// embedder converts chunk and query text into dense vectors.
	embedder Embedder

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// payloadTextKey is the payload field holding the raw chunk text.
const payloadTextKey = "text"

// payloadChunkIDKey is the payload field holding the storage chunk id
// (doc_<row_id>_chunk_<idx>). Qdrant point IDs must be UUIDs, so the
// readable id travels in the payload instead.
const payloadChunkIDKey = "chunk_id"

// NewQdrantIndex creates a QdrantIndex, ensuring the target collection exists
// (creating it if necessary), and returns a ready-to-use Index.
func NewQdrantIndex(ctx context.Context, embedder Embedder, cfg *QdrantConfig) (*QdrantIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vecstore: embedder must not be nil")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vecstore: failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client, embedder: embedder, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// Client exposes the underlying Qdrant client for readiness probes.
func (s *QdrantIndex) Client() *qdrant.Client {
	return s.client
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("vecstore: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	return s.createCollection(ctx)
}

// createCollection creates the backing collection with cosine distance.
func (s *QdrantIndex) createCollection(ctx context.Context) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vecstore: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Reset deletes and recreates the backing collection, leaving an empty
// collection of the same name. Safe to call when the collection is missing.
func (s *QdrantIndex) Reset(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("vecstore: failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
			return fmt.Errorf("vecstore: failed to delete collection %q: %w", s.cfg.Collection, err)
		}
	}
	return s.createCollection(ctx)
}

// Add embeds and bulk-inserts chunks. The slices are parallel; metadata
// values are stored as strings alongside the chunk text.
func (s *QdrantIndex) Add(ctx context.Context, chunks []string, metadatas []map[string]string, ids []string) error {
	if len(chunks) != len(metadatas) || len(chunks) != len(ids) {
		return fmt.Errorf("vecstore: chunks/metadatas/ids length mismatch: %d/%d/%d",
			len(chunks), len(metadatas), len(ids))
	}
	if len(chunks) == 0 {
		return nil
	}

	embeddings, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("vecstore: embedding chunks failed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("vecstore: expected %d embeddings, got %d", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]any{
			payloadTextKey:    chunk,
			payloadChunkIDKey: ids[i],
		}
		for k, v := range metadatas[i] {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(ids[i])),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("vecstore: upsert failed: %w", err)
	}

	return nil
}

// Search embeds the query and returns the topK nearest chunks by ascending
// distance. Qdrant reports cosine similarity (higher = closer), which is
// converted to the pipeline's distance convention (lower = closer).
func (s *QdrantIndex) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	embeddings, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vecstore: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("vecstore: embedder returned empty result for query")
	}

	limit := uint64(topK) //nolint:gosec // topK is validated positive by config
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embeddings[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vecstore: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{
			Distance: cosineDistance(r.Score),
			Metadata: make(map[string]string),
		}
		for k, v := range r.Payload {
			if k == payloadTextKey {
				hit.Text = v.GetStringValue()
				continue
			}
			hit.Metadata[k] = v.GetStringValue()
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Stats returns the collection's current point count and identity labels.
func (s *QdrantIndex) Stats(ctx context.Context) (Stats, error) {
	exact := true
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("vecstore: count failed: %w", err)
	}

	return Stats{
		Count:          count,
		CollectionName: s.cfg.Collection,
		EmbeddingModel: s.cfg.EmbeddingModel,
		Path:           fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
	}, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// pointUUID derives a deterministic UUIDv5 point ID from the storage chunk
// id, so re-ingesting the same batch produces the same points.
func pointUUID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// cosineDistance converts a Qdrant cosine similarity score to a non-negative
// distance where smaller means more relevant.
func cosineDistance(score float32) float64 {
	d := 1.0 - float64(score)
	if d < 0 {
		return 0
	}
	return d
}
