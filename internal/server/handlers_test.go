package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avolkov/demandqa-go/internal/format"
	"github.com/avolkov/demandqa-go/internal/pipeline"
	"github.com/avolkov/demandqa-go/internal/store"
	"github.com/avolkov/demandqa-go/internal/vecstore"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeAsker is a test double for the asker interface backing the handlers.
type fakeAsker struct {
	// answer is returned by Ask.
	answer pipeline.Answer
	// askedQuestions records every question passed to Ask.
	askedQuestions []string
	// ingestChunks and ingestErr configure Ingest.
	ingestChunks int
	ingestErr    error
	// ingested records the record batches passed to Ingest.
	ingested [][]format.Record
	// resetErr configures ResetIndex; resetCalls counts invocations.
	resetErr   error
	resetCalls int
	// stats and statsErr configure Stats.
	stats    vecstore.Stats
	statsErr error
}

func (f *fakeAsker) Ask(_ context.Context, question string) pipeline.Answer {
	f.askedQuestions = append(f.askedQuestions, question)
	return f.answer
}

func (f *fakeAsker) Ingest(_ context.Context, records []format.Record) (int, error) {
	f.ingested = append(f.ingested, records)
	if f.ingestErr != nil {
		return 0, f.ingestErr
	}
	return f.ingestChunks, nil
}

func (f *fakeAsker) ResetIndex(_ context.Context) error {
	f.resetCalls++
	return f.resetErr
}

func (f *fakeAsker) Stats(_ context.Context) (vecstore.Stats, error) {
	return f.stats, f.statsErr
}

// fakeHistory is an in-memory HistoryStore double.
type fakeHistory struct {
	// entries holds everything appended, oldest first.
	entries []store.Entry
	// appendErr forces Append to fail.
	appendErr error
	// recentErr forces Recent to fail.
	recentErr error
	// recentLimit records the limit passed to the last Recent call.
	recentLimit int
}

func (f *fakeHistory) Append(_ context.Context, question, answer string, sources []string, duration time.Duration) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, store.Entry{
		Question: question,
		Answer:   answer,
		Sources:  sources,
		Duration: duration,
	})
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, n int) ([]store.Entry, error) {
	f.recentLimit = n
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	out := make([]store.Entry, 0, n)
	for i := len(f.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

func (f *fakeHistory) Close() error { return nil }

// newTestServer builds a *Server with a fake pipeline, no history store, and
// an isolated metrics registry, suitable for calling handlers directly.
func newTestServer() *Server {
	return &Server{
		pipe:    &fakeAsker{},
		cfg:     &Config{HistoryLimit: defaultHistoryLimit},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

// postJSON is a shorthand for building a JSON POST request.
func postJSON(t *testing.T, target string, body any) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ---------------------------------------------------------------------------
// POST /api/ask
// ---------------------------------------------------------------------------

func TestHandleAsk_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fake := &fakeAsker{answer: pipeline.Answer{
		Answer:   "Средний процент удовлетворения спроса составляет 0.85.",
		Sources:  []string{"Строка 1 из test_data.csv"},
		Duration: 1200 * time.Millisecond,
	}}
	s.pipe = fake

	w := httptest.NewRecorder()
	s.handleAsk(w, postJSON(t, "/api/ask", askRequest{Question: "Какой средний процент?"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}

	var got pipeline.Answer
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Answer != fake.answer.Answer {
		t.Errorf("answer: expected %q, got %q", fake.answer.Answer, got.Answer)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "Строка 1 из test_data.csv" {
		t.Errorf("sources: expected the single formatted source, got %v", got.Sources)
	}
	if len(fake.askedQuestions) != 1 || fake.askedQuestions[0] != "Какой средний процент?" {
		t.Errorf("pipeline received questions %v", fake.askedQuestions)
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "malformed JSON",
			body:    "{not json",
			wantMsg: "invalid request body",
		},
		{
			name:    "missing question",
			body:    `{}`,
			wantMsg: "question is required",
		},
		{
			name:    "empty question",
			body:    `{"question": ""}`,
			wantMsg: "question is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer()
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			s.handleAsk(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error: expected %q, got %q", tt.wantMsg, body.Error)
			}
		})
	}
}

func TestHandleAsk_RecordsHistory(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.pipe = &fakeAsker{answer: pipeline.Answer{
		Answer:   "ответ",
		Sources:  []string{"Строка 3 из test_data.csv"},
		Duration: 2 * time.Second,
	}}
	hist := &fakeHistory{}
	s.history = hist

	w := httptest.NewRecorder()
	s.handleAsk(w, postJSON(t, "/api/ask", askRequest{Question: "вопрос"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if len(hist.entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(hist.entries))
	}
	e := hist.entries[0]
	if e.Question != "вопрос" || e.Answer != "ответ" {
		t.Errorf("unexpected history entry: %+v", e)
	}
	if e.Duration != 2*time.Second {
		t.Errorf("duration: expected 2s, got %v", e.Duration)
	}
}

func TestHandleAsk_HistoryFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.pipe = &fakeAsker{answer: pipeline.Answer{Answer: "ответ"}}
	s.history = &fakeHistory{appendErr: errors.New("disk full")}

	w := httptest.NewRecorder()
	s.handleAsk(w, postJSON(t, "/api/ask", askRequest{Question: "вопрос"}))

	if w.Code != http.StatusOK {
		t.Fatalf("history failure must not fail the request, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/ingest
// ---------------------------------------------------------------------------

// writeTestCSV writes a minimal two-column dataset and returns its path.
func writeTestCSV(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,Продукт_спроса\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, "%d,Арматура A\n", i)
	}
	path := filepath.Join(t.TempDir(), "test_data.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("failed to write test dataset: %v", err)
	}
	return path
}

func TestHandleIngest_OK(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, 3)
	s := newTestServer()
	fake := &fakeAsker{ingestChunks: 3}
	s.pipe = fake

	w := httptest.NewRecorder()
	s.handleIngest(w, postJSON(t, "/api/ingest", ingestRequest{Path: path}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status: expected success, got %q", resp.Status)
	}
	if resp.Rows != 3 || resp.Chunks != 3 {
		t.Errorf("expected 3 rows and 3 chunks, got %d/%d", resp.Rows, resp.Chunks)
	}
	if len(fake.ingested) != 1 || len(fake.ingested[0]) != 3 {
		t.Errorf("pipeline did not receive the 3 parsed records: %v", fake.ingested)
	}
}

func TestHandleIngest_EmptyBodyUsesConfiguredPath(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, 2)
	s := newTestServer()
	s.cfg.DataPath = path
	fake := &fakeAsker{ingestChunks: 2}
	s.pipe = fake

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", http.NoBody)
	w := httptest.NewRecorder()
	s.handleIngest(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if len(fake.ingested) != 1 || len(fake.ingested[0]) != 2 {
		t.Errorf("expected the configured dataset to be ingested, got %v", fake.ingested)
	}
}

func TestHandleIngest_MissingFile(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	w := httptest.NewRecorder()
	s.handleIngest(w, postJSON(t, "/api/ingest", ingestRequest{Path: filepath.Join(t.TempDir(), "absent.csv")}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing dataset, got %d", w.Code)
	}
}

func TestHandleIngest_NoPathConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", http.NoBody)
	w := httptest.NewRecorder()
	s.handleIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a dataset path, got %d", w.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Error != "no dataset path configured" {
		t.Errorf("error: got %q", body.Error)
	}
}

func TestHandleIngest_PipelineError(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, 1)
	s := newTestServer()
	s.pipe = &fakeAsker{ingestErr: errors.New("qdrant unavailable")}

	w := httptest.NewRecorder()
	s.handleIngest(w, postJSON(t, "/api/ingest", ingestRequest{Path: path}))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on ingestion failure, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/reset_index and GET /api/index_stats
// ---------------------------------------------------------------------------

func TestHandleResetIndex_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fake := &fakeAsker{}
	s.pipe = fake

	req := httptest.NewRequest(http.MethodPost, "/api/reset_index", http.NoBody)
	w := httptest.NewRecorder()
	s.handleResetIndex(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if fake.resetCalls != 1 {
		t.Errorf("expected 1 reset call, got %d", fake.resetCalls)
	}
	var resp resetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status: expected success, got %q", resp.Status)
	}
}

func TestHandleResetIndex_Error(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.pipe = &fakeAsker{resetErr: errors.New("collection locked")}

	req := httptest.NewRequest(http.MethodPost, "/api/reset_index", http.NoBody)
	w := httptest.NewRecorder()
	s.handleResetIndex(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHandleIndexStats_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.pipe = &fakeAsker{stats: vecstore.Stats{
		Count:          42,
		CollectionName: "demand_data_collection",
		EmbeddingModel: "nomic-embed-text:latest",
		Path:           "localhost:6334",
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/index_stats", nil)
	w := httptest.NewRecorder()
	s.handleIndexStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var got vecstore.Stats
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Count != 42 || got.CollectionName != "demand_data_collection" {
		t.Errorf("unexpected stats: %+v", got)
	}
}

// ---------------------------------------------------------------------------
// GET /api/history
// ---------------------------------------------------------------------------

func TestHandleHistory_DefaultLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	hist := &fakeHistory{}
	s.history = hist
	for i := 0; i < 3; i++ {
		_ = hist.Append(context.Background(), fmt.Sprintf("q%d", i), "a", nil, 0)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if hist.recentLimit != defaultHistoryLimit {
		t.Errorf("limit: expected the default %d, got %d", defaultHistoryLimit, hist.recentLimit)
	}
	var entries []store.Entry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Question != "q2" {
		t.Errorf("expected newest entry first, got %q", entries[0].Question)
	}
}

func TestHandleHistory_LimitParam(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	hist := &fakeHistory{}
	s.history = hist

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if hist.recentLimit != 5 {
		t.Errorf("limit: expected 5, got %d", hist.recentLimit)
	}
}

func TestHandleHistory_BadLimit(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"abc", "0", "-3"} {
		s := newTestServer()
		s.history = &fakeHistory{}

		req := httptest.NewRequest(http.MethodGet, "/api/history?limit="+v, nil)
		w := httptest.NewRecorder()
		s.handleHistory(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%q: expected 400, got %d", v, w.Code)
		}
	}
}

func TestHandleHistory_NoStore(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("expected an empty JSON array, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Routing through New
// ---------------------------------------------------------------------------

func TestNew_RoutesAndAuth(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeAsker{answer: pipeline.Answer{Answer: "ответ"}}, nil, &Config{
		APIKey:          "secret",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		MetricsRegistry: prometheus.NewRegistry(),
		MetricsGatherer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	handler := s.httpServer.Handler

	// Protected route without credentials.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, postJSON(t, "/api/ask", askRequest{Question: "вопрос"}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated /api/ask: expected 401, got %d", w.Code)
	}

	// Protected route with credentials.
	req := postJSON(t, "/api/ask", askRequest{Question: "вопрос"})
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated /api/ask: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Health and metrics stay open.
	for _, target := range []string{"/api/health", "/api/ready", "/metrics"} {
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s without credentials: expected 200, got %d", target, w.Code)
		}
	}
}

func TestNew_NilPipeline(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected an error for a nil pipeline")
	}
}
