package embedder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avolkov/demandqa-go/internal/config"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text:latest" {
			t.Errorf("model = %q", req.Model)
		}
		out := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			out.Embeddings[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text:latest")
	got, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d embeddings, want 3", len(got))
	}
	if got[2][0] != 2 {
		t.Errorf("got[2][0] = %v, want 2", got[2][0])
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "missing")
	_, err := e.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error = %q, want it to carry the server message", err)
	}
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m")
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error on embedding count mismatch")
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"dimensions":256`) {
			t.Errorf("request body missing dimensions: %s", body)
		}
		// Return data out of order to exercise index-based reassembly.
		io.WriteString(w, `{"data":[
			{"embedding":[2],"index":1},
			{"embedding":[1],"index":0}
		]}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "sk-test",
		Model:      "text-embedding-3-small",
		Dimensions: 256,
	})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("embeddings not reordered by index: %v", got)
	}
}

func TestOpenAIEmbedder_AzureRouting(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "az-key" {
			t.Errorf("api-key header = %q", got)
		}
		if !strings.Contains(r.URL.Path, "/deployments/embed-deploy/embeddings") {
			t.Errorf("path = %q, want azure deployments route", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2025-04-01-preview" {
			t.Errorf("api-version = %q", got)
		}
		io.WriteString(w, `{"data":[{"embedding":[1],"index":0}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "az-key",
		Model:      "embed-deploy",
		Azure:      true,
		APIVersion: "2025-04-01-preview",
	})
	if _, err := e.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
}

func TestNew_BackendSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantErr bool
	}{
		{
			name: "ollama with defaults",
			cfg:  config.EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text:latest"},
		},
		{
			name: "openai with key",
			cfg:  config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", APIKey: "sk"},
		},
		{
			name:    "openai without key",
			cfg:     config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small"},
			wantErr: true,
		},
		{
			name: "azure with key and endpoint",
			cfg: config.EmbeddingConfig{
				Provider: "azure",
				Model:    "embed-deploy",
				APIKey:   "az",
				Endpoint: "https://res.openai.azure.com",
			},
		},
		{
			name:    "azure without endpoint",
			cfg:     config.EmbeddingConfig{Provider: "azure", Model: "m", APIKey: "az"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     config.EmbeddingConfig{Provider: "chroma", Model: "m"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got == nil {
				t.Fatal("New returned nil embedder")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantErr bool
	}{
		{name: "ollama needs nothing", cfg: config.EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text:latest"}},
		{name: "openai missing key", cfg: config.EmbeddingConfig{Provider: "openai", Model: "m"}, wantErr: true},
		{name: "azure missing endpoint", cfg: config.EmbeddingConfig{Provider: "azure", Model: "m", APIKey: "k"}, wantErr: true},
		{name: "unknown backend", cfg: config.EmbeddingConfig{Provider: "pinecone", Model: "m"}, wantErr: true},
		{name: "chat model name only warns", cfg: config.EmbeddingConfig{Provider: "ollama", Model: "gemma3:4b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.cfg, log)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate: err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	chat := []string{"gpt-4o", "gemma3:4b", "llama3.2", "Mistral-7B"}
	embed := []string{"nomic-embed-text:latest", "text-embedding-3-small", "bge-m3"}

	for _, m := range chat {
		if !looksLikeChatModel(m) {
			t.Errorf("looksLikeChatModel(%q) = false, want true", m)
		}
	}
	for _, m := range embed {
		if looksLikeChatModel(m) {
			t.Errorf("looksLikeChatModel(%q) = true, want false", m)
		}
	}
}
