package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avolkov/demandqa-go/internal/format"
	"github.com/avolkov/demandqa-go/internal/pipeline"
	"github.com/avolkov/demandqa-go/internal/store"
	"github.com/avolkov/demandqa-go/internal/vecstore"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed the LLM call timeout or long answers get cut off mid-response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// DataPath is the CSV file ingested by POST /api/ingest when the request
	// does not name one.
	DataPath string
	// HistoryLimit caps the number of entries GET /api/history returns when
	// the request does not specify a limit. Defaults to 50 if zero.
	HistoryLimit int
	// MetricsRegistry receives this server's Prometheus metrics. Defaults to
	// prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// asker is the pipeline surface the handlers call. *pipeline.Pipeline
// satisfies it; tests inject a fake.
type asker interface {
	// Ask answers a question over the indexed data.
	Ask(ctx context.Context, question string) pipeline.Answer
	// Ingest replaces the index contents with the chunked records and
	// returns the number of chunks written.
	Ingest(ctx context.Context, records []format.Record) (int, error)
	// ResetIndex empties the backing collection.
	ResetIndex(ctx context.Context) error
	// Stats reports the current state of the backing collection.
	Stats(ctx context.Context) (vecstore.Stats, error)
}

// Server is the HTTP server exposing the QA pipeline.
type Server struct {
	// pipe is the answer pipeline behind all /api routes.
	pipe asker
	// history records every answered question; nil disables /api/history.
	history store.HistoryStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
}

// ingestRequest is the JSON body for POST /api/ingest. The body is optional.
type ingestRequest struct {
	// Path overrides the configured dataset path for this ingestion.
	Path string `json:"path,omitempty"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	// Status is "success" on a completed ingestion.
	Status string `json:"status"`
	// Rows is the number of records read from the dataset.
	Rows int `json:"rows"`
	// Chunks is the number of chunks written to the index.
	Chunks int `json:"chunks"`
}

// resetResponse is the JSON response for POST /api/reset_index.
type resetResponse struct {
	// Status is "success" when the index was emptied.
	Status string `json:"status"`
	// Message is a human-readable confirmation.
	Message string `json:"message"`
}

// errorResponse is the JSON error body for all /api routes.
type errorResponse struct {
	// Error is the failure reason.
	Error string `json:"error"`
}
