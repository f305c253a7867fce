package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avolkov/demandqa-go/internal/logging"
)

// NewStatsCmd constructs the `demandqa stats` command, which reports the
// current state of the Qdrant collection.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector index statistics",
		Long: `Show the current state of the Qdrant collection: chunk count, collection
name, embedding model, and server address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.NewWith(cfg.Logging.Level, cfg.Logging.Format)

			index, err := buildIndex(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			stats, err := index.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("Collection:      %s\n", stats.CollectionName)
			fmt.Printf("Chunks:          %d\n", stats.Count)
			fmt.Printf("Embedding model: %s\n", stats.EmbeddingModel)
			fmt.Printf("Server:          %s\n", stats.Path)
			return nil
		},
	}
}
