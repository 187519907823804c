package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bankctl",
		Short: "Operate a neuromorphic bank directory",
		Long: `bankctl inspects and mutates a bank directory: signed-vector
entries grouped into banks, linked by typed cross-bank edges, persisted
as self-describing snapshots with journal-backed crash recovery.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(
		newInitCommand(),
		newInsertCommand(),
		newQueryCommand(),
		newLinkCommand(),
		newTraverseCommand(),
		newTouchCommand(),
		newDeleteCommand(),
		newCountCommand(),
		newPromoteCommand(),
		newDemoteCommand(),
		newEvictCommand(),
		newCompactCommand(),
		newFlushCommand(),
		newLoadCommand(),
		newStatsCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
