package main

import (
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/token-swap/internal/program/amm"
)

// quote prices a swap offline against given reserves.
func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against explicit reserves without touching any ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			reserveIn, _ := f.GetUint64("reserve-in")
			reserveOut, _ := f.GetUint64("reserve-out")
			amount, _ := f.GetUint64("amount")
			feeBps, _ := f.GetUint16("fee-bps")
			shareBps, _ := f.GetUint16("protocol-share-bps")

			q, err := amm.ComputeSwap(reserveIn, reserveOut, amount, feeBps, shareBps)
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		},
	}
	f := cmd.Flags()
	f.Uint64("reserve-in", 0, "reserve of the input asset")
	f.Uint64("reserve-out", 0, "reserve of the output asset")
	f.Uint64("amount", 0, "input amount")
	f.Uint16("fee-bps", 30, "pool fee rate")
	f.Uint16("protocol-share-bps", 0, "protocol share of the fee")
	_ = cmd.MarkFlagRequired("reserve-in")
	_ = cmd.MarkFlagRequired("reserve-out")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
