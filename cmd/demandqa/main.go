// Command demandqa is the entry point for the demand QA service.
// It provides a CLI (via Cobra) for one-shot questions, dataset ingestion,
// and index management, plus an HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/avolkov/demandqa-go/cmd/demandqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
