// Package commands defines all Cobra CLI commands for the demandqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/avolkov/demandqa-go/internal/audit"
	"github.com/avolkov/demandqa-go/internal/config"
	"github.com/avolkov/demandqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// cfg holds the resolved configuration shared by all subcommands. It is
// populated by the root command's PersistentPreRunE before any RunE fires.
var cfg *config.Config

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "demandqa",
		Short: "Question answering over tabular demand planning data",
		Long: `demandqa answers natural language questions about a demand planning table.

Rows are rendered into sentences, chunked, embedded, and stored in a Qdrant
collection. Questions are expanded into query variants, relevant chunks are
retrieved and deduplicated, and an LLM synthesises an answer grounded in the
retrieved rows. Averaging questions additionally get a deterministic
aggregation computed directly from the retrieved context.

Configuration comes from ~/.demandqa/config.yaml (override with --config)
with environment variables taking precedence over YAML values.
See 'demandqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Env vars always override YAML values.
			loaded, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			cfg = loaded

			// Emit a structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), configPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.demandqa/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewStatsCmd(),
		NewResetCmd(),
		NewGenerateCmd(),
		NewVersionCmd(),
	)

	return root
}
