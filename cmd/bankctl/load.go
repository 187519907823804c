package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoadCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
		entry    string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Print the vector stored at an entry, converted through to_i32",
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
			got, ok := b.Get(entryID)
			if !ok {
				return fmt.Errorf("load: no entry %s in bank %q", entry, bankName)
			}

			values := fromVector(got.Vector)
			strs := make([]string, len(values))
			for i, v := range values {
				strs[i] = fmt.Sprintf("%d", v)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(strs, ","))
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&entry, "entry", "", "entry id (required)")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("entry")

	return cmd
}
