package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avolkov/demandqa-go/internal/logging"
)

// NewResetCmd constructs the `demandqa reset` command, which empties the
// Qdrant collection.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Empty the vector index",
		Long: `Replace the Qdrant collection with an empty one of the same name.

Resetting an already-empty index is a no-op. Run 'demandqa ingest' afterwards
to repopulate it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.NewWith(cfg.Logging.Level, cfg.Logging.Format)

			index, err := buildIndex(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}

			if err := index.Reset(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}

			fmt.Printf("Collection %s reset\n", cfg.Qdrant.Collection)
			return nil
		},
	}
}
