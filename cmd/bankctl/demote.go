package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDemoteCommand() *cobra.Command {
	var (
		df        dirFlags
		bankName  string
		entry     string
		tick      uint64
		threshold uint8
	)

	cmd := &cobra.Command{
		Use:   "demote",
		Short: "Lower an entry one temperature step if its confidence is below threshold",
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
			demoted, err := b.Demote(entryID, tick, threshold)
			if err != nil {
				return fmt.Errorf("demote: %w", err)
			}
			if err := e.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%t\n", demoted)
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&entry, "entry", "", "entry id (required)")
	cmd.Flags().Uint64Var(&tick, "tick", 0, "logical tick (defaults to current unix time)")
	cmd.Flags().Uint8Var(&threshold, "threshold", 128, "confidence threshold; entries below it demote")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("entry")

	return cmd
}
