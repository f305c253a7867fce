// Package config provides the typed configuration for demandqa.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// env vars, then validated once at construction time so sizing mistakes
// (e.g. a chunk overlap as large as the chunk itself) are rejected before
// any work proceeds.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DEMANDQA_CONFIG environment variable
//  3. ~/.demandqa/config.yaml
//  4. ./demandqa.yaml
//
// If no file is found the system runs from defaults and env vars alone.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Retrieval configures the multi-query retrieval stage.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Chunking configures the token-window chunker.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Model configures the LLM backend used for expansion and synthesis.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector index connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Data configures the tabular source file for ingestion.
	Data DataConfig `yaml:"data"`

	// History configures the QA history store.
	History HistoryConfig `yaml:"history"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// RetrievalConfig holds multi-query retrieval settings.
type RetrievalConfig struct {
	// TopK is the number of chunks fetched per expanded query.
	TopK int `yaml:"top_k"`
	// MultiQuery toggles LLM-based query expansion.
	MultiQuery bool `yaml:"multi_query"`
	// ExpansionCount is how many alternative queries to request per question.
	ExpansionCount int `yaml:"expansion_count"`
}

// ChunkingConfig holds token-window chunker settings.
type ChunkingConfig struct {
	// Size is the chunk window length in tokens.
	Size int `yaml:"size"`
	// Overlap is the number of tokens shared by consecutive chunks.
	// Must be strictly smaller than Size.
	Overlap int `yaml:"overlap"`
}

// ModelConfig holds LLM backend settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, gemini.
	Provider string `yaml:"provider"`
	// Name is the model name or deployment ID (e.g. "gemma3:4b", "gpt-4o").
	Name string `yaml:"name"`
	// BaseURL overrides the default API endpoint (required for Ollama and Azure).
	BaseURL string `yaml:"base_url"`
	// APIKey is the authentication credential. Prefer the provider's env var.
	APIKey string `yaml:"api_key"`
	// AzureDeployment is the Azure OpenAI deployment name (Azure only).
	AzureDeployment string `yaml:"azure_deployment"`
	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string `yaml:"azure_api_version"`
	// Timeout bounds each generate call. A call exceeding it is a failure.
	Timeout time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: ollama, openai, azure.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Dimensions is the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// AzureAPIVersion is the Azure OpenAI API version (Azure only).
	AzureAPIVersion string `yaml:"azure_api_version"`
}

// QdrantConfig holds Qdrant vector index settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var DEMANDQA_API_KEY.
	APIKey string `yaml:"api_key"`
}

// DataConfig holds tabular source settings.
type DataConfig struct {
	// Path is the CSV file ingested by POST /api/ingest and `demandqa ingest`.
	Path string `yaml:"path"`
}

// HistoryConfig holds QA history store settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// Default constructs a Config populated with the shipped defaults.
func Default() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			TopK:           15,
			MultiQuery:     true,
			ExpansionCount: 3,
		},
		Chunking: ChunkingConfig{
			Size:    300,
			Overlap: 50,
		},
		Model: ModelConfig{
			Provider: "ollama",
			Name:     "gemma3:4b",
			BaseURL:  "http://localhost:11434",
			Timeout:  180 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text:latest",
			Dimensions: 768,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "demand_data_collection",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Data: DataConfig{
			Path: "data/test_data.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and env var
// overrides, in that precedence order. The returned config is validated.
func Load(explicitPath string, log *slog.Logger) (*Config, error) {
	cfg := Default()

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using defaults and env vars")
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		log.Info("config: loaded YAML config", slog.String("path", path))
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from environment variables. Env vars
// always win over both defaults and YAML.
func (c *Config) applyEnv() {
	setInt(&c.Retrieval.TopK, "RETRIEVAL_TOP_K")
	setInt(&c.Retrieval.ExpansionCount, "MULTI_QUERY_COUNT")
	if v := os.Getenv("MULTI_QUERY_ENABLED"); v != "" {
		c.Retrieval.MultiQuery = v == "true" || v == "1"
	}
	setInt(&c.Chunking.Size, "CHUNK_SIZE")
	setInt(&c.Chunking.Overlap, "CHUNK_OVERLAP")

	setString(&c.Model.Provider, "MODEL_PROVIDER")
	setString(&c.Model.Name, "MODEL_NAME")
	setString(&c.Model.BaseURL, "OLLAMA_HOST")
	setString(&c.Model.APIKey, "MODEL_API_KEY")
	setString(&c.Model.AzureDeployment, "AZURE_OPENAI_DEPLOYMENT")
	setString(&c.Model.AzureAPIVersion, "AZURE_OPENAI_API_VERSION")

	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setString(&c.Embedding.Endpoint, "EMBEDDING_ENDPOINT")
	setString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")
	setInt(&c.Embedding.Dimensions, "EMBEDDING_DIMENSIONS")

	setString(&c.Qdrant.Host, "QDRANT_HOST")
	setInt(&c.Qdrant.Port, "QDRANT_PORT")
	setString(&c.Qdrant.Collection, "QDRANT_COLLECTION")
	setString(&c.Qdrant.APIKey, "QDRANT_API_KEY")
	if v := os.Getenv("QDRANT_TLS"); v != "" {
		c.Qdrant.TLS = v == "true" || v == "1"
	}

	setString(&c.Server.Host, "SERVER_HOST")
	setInt(&c.Server.Port, "SERVER_PORT")
	setString(&c.Server.APIKey, "DEMANDQA_API_KEY")

	setString(&c.Data.Path, "DATA_PATH")
	setString(&c.History.DBPath, "DEMANDQA_HISTORY_DB")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	setString(&c.Tracing.PublicKey, "LANGFUSE_PUBLIC_KEY")
	setString(&c.Tracing.SecretKey, "LANGFUSE_SECRET_KEY")
	setString(&c.Tracing.Host, "LANGFUSE_HOST")
}

// Validate rejects configurations that would make the pipeline unsafe to run.
// It is called by Load; callers constructing a Config by hand must call it
// themselves before use.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("config: chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("config: chunking.overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("config: chunking.overlap %d must be smaller than chunking.size %d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("config: retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ExpansionCount < 0 {
		return fmt.Errorf("config: retrieval.expansion_count must not be negative, got %d",
			c.Retrieval.ExpansionCount)
	}
	if c.Model.Provider == "" {
		return fmt.Errorf("config: model.provider must not be empty")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("config: model.name must not be empty")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("config: model.timeout must be positive, got %s", c.Model.Timeout)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("config: embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("config: qdrant.collection must not be empty")
	}
	return nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DEMANDQA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".demandqa", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("demandqa.yaml"); err == nil {
		return "demandqa.yaml"
	}

	return ""
}

// setString overrides dst with the named env var when the var is non-empty.
func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt overrides the integer dst with the parsed value of the named env
// var when the var holds a valid integer.
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}
