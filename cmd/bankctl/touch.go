package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTouchCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
		entry    string
		tick     uint64
	)

	cmd := &cobra.Command{
		Use:   "touch",
		Short: "Bump an entry's access bookkeeping",
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
			if err := b.Touch(entryID, tick); err != nil {
				return fmt.Errorf("touch: %w", err)
			}
			return e.Flush()
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&entry, "entry", "", "entry id (required)")
	cmd.Flags().Uint64Var(&tick, "tick", 0, "logical tick (defaults to current unix time)")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("entry")

	return cmd
}
