package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuromem/bankcore/internal/types"
)

func newDeleteCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
		entry    string
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove an entry, cleaning up any cross-bank reverse edges it held",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			bankID, err := resolveBankID(e, bankName)
			if err != nil {
				return err
			}
			entryID, err := parseEntryID(entry)
			if err != nil {
				return err
			}
			ref := types.BankRef{Bank: bankID, Entry: entryID}
			if err := e.Cluster().DeleteEntry(ref); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			return e.Flush()
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&entry, "entry", "", "entry id (required)")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("entry")

	return cmd
}
