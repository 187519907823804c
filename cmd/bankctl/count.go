package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCountCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print a bank's entry count",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			b, err := resolveBank(e, bankName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", b.Len())
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.MarkFlagRequired("bank")

	return cmd
}
