package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuromem/bankcore/internal/bank"
	"github.com/neuromem/bankcore/internal/types"
)

func newInsertCommand() *cobra.Command {
	var (
		df          dirFlags
		bankName    string
		region      string
		values      string
		temperature string
		confidence  uint8
		tick        uint64
		maxEntries  uint32
		maxEdges    uint16
	)

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a vector into a bank, creating the bank on first use",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExisting(&df)
			if err != nil {
				return err
			}

			data, err := parseValues(values)
			if err != nil {
				return err
			}
			temp, err := parseTemperature(temperature)
			if err != nil {
				return err
			}
			if tick == 0 {
				tick = defaultTick()
			}

			b, err := resolveBank(e, bankName)
			if err != nil {
				// First reference to this name: mint a fresh id. Later
				// inserts under the same name must resolve here rather
				// than mint again, or they would silently start a
				// same-named sibling bank instead of reusing this one.
				id := types.NewBankId(uint32(tick), region, 0)
				b = e.GetOrCreateBank(id, bankName, bank.Config{
					VectorWidth:      uint16(len(data)),
					MaxEntries:       maxEntries,
					MaxEdgesPerEntry: maxEdges,
					IndexKind:        df.indexKind(),
				})
			}

			entry, err := b.Insert(toVector(data), temp, tick, confidence)
			if err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			if err := e.Flush(); err != nil {
				return fmt.Errorf("insert: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", uint64(entry))
			return nil
		},
	}

	bindDirFlags(cmd, &df)
	cmd.Flags().StringVar(&bankName, "bank", "", "bank name (required)")
	cmd.Flags().StringVar(&region, "region", "", "region tag used when minting a new bank id (defaults to --bank)")
	cmd.Flags().StringVar(&values, "values", "", "comma-separated signed values, e.g. 100,-50,0,255")
	cmd.Flags().StringVar(&temperature, "temp", "hot", "initial temperature: hot, warm, cool or cold")
	cmd.Flags().Uint8Var(&confidence, "confidence", 200, "initial confidence [0,255]")
	cmd.Flags().Uint64Var(&tick, "tick", 0, "logical tick (defaults to current unix time)")
	cmd.Flags().Uint32Var(&maxEntries, "max-entries", 10000, "bank capacity, used only when creating the bank")
	cmd.Flags().Uint16Var(&maxEdges, "max-edges", 32, "max edges per entry, used only when creating the bank")
	cmd.MarkFlagRequired("bank")
	cmd.MarkFlagRequired("values")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if region == "" {
			region = bankName
		}
		return nil
	}

	return cmd
}
