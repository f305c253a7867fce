// Package server implements the HTTP server that exposes the demand QA
// pipeline via a REST API: question answering, dataset ingestion, index
// management, history, health, and metrics.
// The server is started by the `demandqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkov/demandqa-go/internal/loader"
	"github.com/avolkov/demandqa-go/internal/logging"
	"github.com/avolkov/demandqa-go/internal/store"
)

// defaultHistoryLimit caps /api/history output when neither the config nor
// the request specifies a limit.
const defaultHistoryLimit = 50

// New constructs a Server from the provided pipeline, history store, and
// config. history may be nil; /api/history then serves an empty list.
func New(pipe asker, history store.HistoryStore, cfg *Config) (*Server, error) {
	if pipe == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full LLM round trip.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.APIKey == "" {
		log.Warn("server: API key not set, authentication disabled")
	}

	s := &Server{
		pipe:    pipe,
		history: history,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	api := http.NewServeMux()
	api.HandleFunc("POST /api/ask", s.handleAsk)
	api.HandleFunc("POST /api/ingest", s.handleIngest)
	api.HandleFunc("POST /api/reset_index", s.handleResetIndex)
	api.HandleFunc("GET /api/index_stats", s.handleIndexStats)
	api.HandleFunc("GET /api/history", s.handleHistory)
	protected := authMiddleware(cfg.APIKey, rl.middleware(api))

	root := http.NewServeMux()
	root.Handle("/api/", protected)
	// Health, readiness, and metrics stay reachable without credentials so
	// probes and scrapers work out of the box.
	root.HandleFunc("GET /api/health", s.handleHealth)
	root.HandleFunc("GET /api/ready", s.handleReady)
	root.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.instrument(root)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.stopRL()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. The pipeline reports degraded paths as
// answer text, so this handler only fails on malformed requests.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer := s.pipe.Ask(r.Context(), req.Question)
	s.metrics.askRequestsTotal.WithLabelValues(askOutcome(answer.Answer)).Inc()
	s.metrics.askDurationSeconds.Observe(answer.Duration.Seconds())

	if s.history != nil {
		if err := s.history.Append(r.Context(), req.Question, answer.Answer, answer.Sources, answer.Duration); err != nil {
			// History is best-effort; the answer still goes out.
			log.Warn("failed to record history entry", slog.Any("error", err))
		}
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleIngest handles POST /api/ingest. The body is optional; without a
// path it ingests the configured dataset.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := req.Path
	if path == "" {
		path = s.cfg.DataPath
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, "no dataset path configured")
		return
	}

	records, err := loader.Load(path)
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	chunks, err := s.pipe.Ingest(r.Context(), records)
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues("error").Inc()
		log.Error("ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.ingestRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(chunks))
	writeJSON(w, http.StatusOK, ingestResponse{Status: "success", Rows: len(records), Chunks: chunks})
}

// handleResetIndex handles POST /api/reset_index.
func (s *Server) handleResetIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.ResetIndex(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Status: "success", Message: "index reset"})
}

// handleIndexStats handles GET /api/index_stats.
func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipe.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHistory handles GET /api/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries := []store.Entry{}
	if s.history != nil {
		var err error
		entries, err = s.history.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []store.Entry{}
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
