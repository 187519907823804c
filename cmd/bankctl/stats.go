package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuromem/bankcore/internal/bank"
)

func newStatsCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-bank summary: entry count, dirty flag, last-persist tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}

			var banks []*bank.DataBank
			if bankName != "" {
				b, err := resolveBank(e, bankName)
				if err != nil {
					return err
				}
				banks = []*bank.DataBank{b}
			} else {
				banks = e.Cluster().Banks()
			}

			for _, b := range banks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tentries=%d\tdirty=%t\tlast_persist_tick=%d\twidth=%d\n",
					b.Name(), b.Id().String(), b.Len(), b.Dirty(), b.LastPersistTick(), b.Config().VectorWidth)
			}
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (prints every bank if omitted)")

	return cmd
}
