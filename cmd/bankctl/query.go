package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
		values   string
		topK     int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run top-k sparse similarity search against a bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			b, err := resolveBank(e, bankName)
			if err != nil {
				return err
			}
			data, err := parseValues(values)
			if err != nil {
				return err
			}

			scored := b.QuerySparse(toVector(data), topK)
			for _, s := range scored {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", s.Score, uint64(s.ID))
			}
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&values, "values", "", "comma-separated query values (required)")
	cmd.Flags().IntVar(&topK, "top-k", 10, "number of results to return")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("values")

	return cmd
}
