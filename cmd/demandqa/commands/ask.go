package commands

import (
	"fmt"
	"os"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/avolkov/demandqa-go/internal/logging"
	"github.com/avolkov/demandqa-go/internal/tracing"
)

// NewAskCmd constructs the `demandqa ask` command, which answers a single
// natural language question over the indexed dataset and prints the answer
// with its sources to stdout.
func NewAskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the indexed demand data",
		Long: `Ask a natural language question about the indexed demand planning data.

The dataset must be ingested first (see 'demandqa ingest'). Questions about
average demand satisfaction additionally get a deterministic aggregation
computed from the retrieved rows.

Examples:
  demandqa ask "Какой средний процент удовлетворения спроса для Арматура A?"
  demandqa ask --sources "Какая выручка по заказам покупателя c2500?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.NewWith(cfg.Logging.Level, cfg.Logging.Format)
			ctx = logging.WithLogger(ctx, log)

			handler, flush, ok := tracing.Setup(cfg.Tracing)
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			pipe, _, err := buildPipeline(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			answer := pipe.Ask(ctx, args[0])

			fmt.Fprintln(os.Stdout, answer.Answer)
			if showSources && len(answer.Sources) > 0 {
				fmt.Fprintln(os.Stdout)
				fmt.Fprintln(os.Stdout, "Источники:")
				for _, src := range answer.Sources {
					fmt.Fprintf(os.Stdout, "  %s\n", src)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the source rows the answer is grounded in")

	return cmd
}
