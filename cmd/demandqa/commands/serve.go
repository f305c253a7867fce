package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/avolkov/demandqa-go/internal/logging"
	"github.com/avolkov/demandqa-go/internal/server"
	"github.com/avolkov/demandqa-go/internal/store"
	"github.com/avolkov/demandqa-go/internal/tracing"
)

// NewServeCmd constructs the `demandqa serve` command, which starts the HTTP
// server exposing the QA pipeline as a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demandqa HTTP server",
		Long: `Start the demandqa HTTP server.

The server exposes the QA pipeline as a REST API: POST /api/ask answers
questions, POST /api/ingest loads the dataset into the index, and
POST /api/reset_index empties it. GET /api/ready probes Qdrant and the
model backend so orchestrators can gate traffic on real dependencies.

Examples:
  demandqa serve
  demandqa serve --port 9090
  MODEL_PROVIDER=openai demandqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.NewWith(cfg.Logging.Level, cfg.Logging.Format)
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", cfg.Model.Provider))

			// Langfuse tracing is opt-in and a no-op without keys.
			handler, flush, ok := tracing.Setup(cfg.Tracing)
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			pipe, index, err := buildPipeline(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Open the QA history store. DEMANDQA_HISTORY_DB overrides the
			// default path (~/.demandqa/history.db); "disabled" turns it off.
			var historyStore store.HistoryStore
			dbPath := cfg.History.DBPath
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via config")
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(index.Client()),
			}
			if cfg.Model.Provider == "ollama" && cfg.Model.BaseURL != "" {
				pingers = append(pingers, server.NewHTTPPinger(cfg.Model.BaseURL, "ollama"))
			}

			if host == "" {
				host = cfg.Server.Host
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			srv, err := server.New(pipe, historyStore, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  pingers,
				APIKey:   cfg.Server.APIKey,
				DataPath: cfg.Data.Path,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: config server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: config server.port)")

	return cmd
}
