package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuromem/bankcore/internal/types"
)

func newTraverseCommand() *cobra.Command {
	var (
		df       dirFlags
		bankName string
		entry    string
		kind     string
		depth    int
	)

	cmd := &cobra.Command{
		Use:   "traverse",
		Short: "Breadth-first walk from an entry along one edge kind (or all kinds)",
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
			edgeKind, err := parseEdgeKind(kind)
			if err != nil {
				return err
			}

			start := types.BankRef{Bank: bankID, Entry: entryID}
			refs, err := e.Cluster().Traverse(start, edgeKind, depth)
			if err != nil {
				return fmt.Errorf("traverse: %w", err)
			}

			names := make(map[types.BankId]string)
			for _, b := range e.Cluster().Banks() {
				names[b.Id()] = b.Name()
			}
			for _, ref := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", names[ref.Bank], uint64(ref.Entry))
			}
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "starting bank name (required)")
	cmd.Flags().StringVar(&entry, "entry", "", "starting entry id (required)")
	cmd.Flags().StringVar(&kind, "kind", "Any", "edge kind to follow, or Any for every kind")
	cmd.Flags().IntVar(&depth, "depth", 1, "maximum hop count")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("entry")

	return cmd
}
