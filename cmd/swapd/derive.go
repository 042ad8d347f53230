package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/token-swap/internal/program/authority"
	"github.com/rovshanmuradov/token-swap/internal/server"
)

func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <mint-a> <mint-b>",
		Short: "Print the pool, authority, vault and share mint addresses of a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			programID, err := cfg.Program()
			if err != nil {
				return err
			}
			a, b, err := parseMints(args[0], args[1])
			if err != nil {
				return err
			}
			addrs, err := authority.DeriveAll(programID, a, b)
			if err != nil {
				return err
			}
			return printJSON(cmd, server.PairResponse{
				AssetA:        a,
				AssetB:        b,
				Authority:     addrs.Authority,
				AuthorityBump: addrs.AuthorityBump,
				Pool:          addrs.Pool,
				VaultA:        addrs.VaultA,
				VaultB:        addrs.VaultB,
				ShareMint:     addrs.ShareMint,
			})
		},
	}
	return cmd
}

func parseMints(a, b string) (solana.PublicKey, solana.PublicKey, error) {
	mintA, err := solana.PublicKeyFromBase58(a)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("invalid mint a: %w", err)
	}
	mintB, err := solana.PublicKeyFromBase58(b)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("invalid mint b: %w", err)
	}
	if mintA.Equals(mintB) {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("mints must differ")
	}
	return mintA, mintB, nil
}
