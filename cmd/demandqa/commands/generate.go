package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avolkov/demandqa-go/internal/loader"
)

// NewGenerateCmd constructs the `demandqa generate` command, which writes a
// synthetic demand planning dataset for local development and testing.
func NewGenerateCmd() *cobra.Command {
	var out string
	var rows int
	var seed int64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic demand dataset",
		Long: `Write a synthetic demand planning CSV with randomised customers, products,
volumes, revenues, and penalties.

The same seed always produces the same dataset, so generated files are
reproducible across machines.

Examples:
  demandqa generate
  demandqa generate --rows 500 --out ./data/test_data.csv
  demandqa generate --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = cfg.Data.Path
			}
			if rows <= 0 {
				return fmt.Errorf("generate: --rows must be positive, got %d", rows)
			}

			if err := loader.GenerateFile(out, rows, seed); err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			fmt.Printf("Wrote %d rows to %s\n", rows, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output CSV path (default: config data.path)")
	cmd.Flags().IntVarP(&rows, "rows", "n", 100, "Number of rows to generate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for reproducible datasets")

	return cmd
}
