package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/avolkov/demandqa-go/internal/loader"
	"github.com/avolkov/demandqa-go/internal/logging"
)

// NewIngestCmd constructs the `demandqa ingest` command, which loads the
// demand dataset into the Qdrant index.
func NewIngestCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the demand dataset into the vector index",
		Long: `Read the demand planning CSV, render each row into a sentence, chunk and
embed the sentences, and store them in the Qdrant collection.

Ingestion replaces the collection contents: the index is reset first so
re-running the command never duplicates rows.

Examples:
  demandqa ingest
  demandqa ingest --data ./data/test_data.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.NewWith(cfg.Logging.Level, cfg.Logging.Format)
			ctx = logging.WithLogger(ctx, log)

			if path == "" {
				path = cfg.Data.Path
			}
			if path == "" {
				return fmt.Errorf("ingest: no dataset path configured, pass --data or set data.path")
			}

			records, err := loader.Load(path)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("dataset loaded", slog.String("path", path), slog.Int("rows", len(records)))

			pipe, _, err := buildPipeline(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			chunks, err := pipe.Ingest(ctx, records)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete", slog.Int("rows", len(records)), slog.Int("chunks", chunks))
			fmt.Printf("Ingested %d rows (%d chunks) from %s\n", len(records), chunks, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "data", "d", "", "Path to the CSV dataset (default: config data.path)")

	return cmd
}
