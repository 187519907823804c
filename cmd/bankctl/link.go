package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuromem/bankcore/internal/types"
)

func newLinkCommand() *cobra.Command {
	var (
		df                 dirFlags
		srcBank, dstBank   string
		srcEntry, dstEntry string
		kind               string
		weight             uint8
		tick               uint64
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create a typed edge from one entry to another, possibly in another bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}
			srcID, err := resolveBankID(e, srcBank)
			if err != nil {
				return err
			}
			dstID, err := resolveBankID(e, dstBank)
			if err != nil {
				return err
			}
			srcEntryID, err := parseEntryID(srcEntry)
			if err != nil {
				return err
			}
			dstEntryID, err := parseEntryID(dstEntry)
			if err != nil {
				return err
			}
			edgeKind, err := parseEdgeKind(kind)
			if err != nil {
				return err
			}
			if tick == 0 {
				tick = defaultTick()
			}

			src := types.BankRef{Bank: srcID, Entry: srcEntryID}
			dst := types.BankRef{Bank: dstID, Entry: dstEntryID}
			if err := e.Cluster().Link(src, dst, edgeKind, weight, tick); err != nil {
				return fmt.Errorf("link: %w", err)
			}
			return e.Flush()
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&srcBank, "src-bank", "", "source bank name (required)")
	cmd.Flags().StringVar(&srcEntry, "src-entry", "", "source entry id (required)")
	cmd.Flags().StringVar(&dstBank, "dst-bank", "", "destination bank name (required)")
	cmd.Flags().StringVar(&dstEntry, "dst-entry", "", "destination entry id (required)")
	cmd.Flags().StringVar(&kind, "kind", "RelatedTo", "edge kind")
	cmd.Flags().Uint8Var(&weight, "weight", 128, "edge weight [0,255]")
	cmd.Flags().Uint64Var(&tick, "tick", 0, "logical tick (defaults to current unix time)")
	cmd.MarkFlagRequired("src-bank")
	cmd.MarkFlagRequired("src-entry")
	cmd.MarkFlagRequired("dst-bank")
	cmd.MarkFlagRequired("dst-entry")

	return cmd
}
