package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFlushCommand() *cobra.Command {
	var (
		df       dirFlags
		tick     int64
		snapshot bool
	)

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Force the journal to disk, or snapshot every dirty bank with --snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			if !snapshot {
				return e.Flush()
			}
			n, err := e.FlushDirty(tick)
			if err != nil {
				return fmt.Errorf("flush: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshotted %d bank(s)\n", n)
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "snapshot every dirty bank and truncate the journal, instead of just fsyncing it")
	cmd.Flags().Int64Var(&tick, "tick", 0, "tick recorded as each snapshotted bank's last-persist tick (with --snapshot)")

	return cmd
}
