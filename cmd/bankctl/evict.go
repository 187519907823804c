package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEvictCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
		n        int
		tick     uint64
	)

	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Remove a bank's n lowest-scoring entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			bankID, err := resolveBankID(e, bankName)
			if err != nil {
				return err
			}
			if tick == 0 {
				tick = defaultTick()
			}
			removed, err := e.Cluster().EvictEntries(bankID, n, tick)
			if err != nil {
				return fmt.Errorf("evict: %w", err)
			}
			if err := e.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", len(removed))
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().IntVar(&n, "n", 1, "number of entries to evict")
	cmd.Flags().Uint64Var(&tick, "tick", 0, "logical tick (defaults to current unix time)")
	cmd.MarkFlagRequired("bank")

	return cmd
}
