package main

import (
	"github.com/spf13/cobra"
)

func newCompactCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
	)

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Rebuild a bank's vector index, or every bank's if --bank is omitted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			if bankName == "" {
				e.Cluster().Compact()
				return nil
			}
			b, err := resolveBank(e, bankName)
			if err != nil {
				return err
			}
			b.Compact()
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (compacts every bank if omitted)")

	return cmd
}
