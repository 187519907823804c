package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPromoteCommand() *cobra.Command {
	var (
		df          dirFlags
		bankName    string
		entry       string
		tick        uint64
		minAccesses uint32
		minAgeTicks uint64
	)

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Advance an entry one temperature step if it is eligible",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			b, err := resolveBank(e, bankName)
			if err != nil {
				return err
			}
			entryID, err := parseEntryID(entry)
			if err != nil {
				return err
			}
			if tick == 0 {
				tick = defaultTick()
			}
			promoted, err := b.Promote(entryID, tick, minAccesses, minAgeTicks)
			if err != nil {
				return fmt.Errorf("promote: %w", err)
			}
			if err := e.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%t\n", promoted)
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&entry, "entry", "", "entry id (required)")
	cmd.Flags().Uint64Var(&tick, "tick", 0, "logical tick (defaults to current unix time)")
	cmd.Flags().Uint32Var(&minAccesses, "min-accesses", 1, "minimum access_count required to promote")
	cmd.Flags().Uint64Var(&minAgeTicks, "min-age-ticks", 0, "minimum age in ticks required to promote")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("entry")

	return cmd
}
