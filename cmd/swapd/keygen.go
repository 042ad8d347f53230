package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/token-swap/internal/wallet"
)

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen <name>",
		Short: "Generate a signing key and append it to a wallets CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("wallets")
			w, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := wallet.AppendWallet(path, args[0], w); err != nil {
				return fmt.Errorf("failed to save wallet: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), w.PublicKey)
			return nil
		},
	}
	cmd.Flags().String("wallets", "wallets.csv", "wallets CSV file")
	return cmd
}
