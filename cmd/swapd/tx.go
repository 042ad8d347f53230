package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/token-swap/internal/config"
	"github.com/rovshanmuradov/token-swap/internal/program/authority"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
	"github.com/rovshanmuradov/token-swap/internal/server"
	"github.com/rovshanmuradov/token-swap/internal/wallet"
)

// txContext is what every instruction builder needs: the signer and the
// derived addresses of the pair.
type txContext struct {
	cfg       *config.Config
	programID solana.PublicKey
	signer    *wallet.Wallet
	mintA     solana.PublicKey
	mintB     solana.PublicKey
	addrs     *authority.Addresses
}

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Build and sign instructions for POST /v1/instructions",
	}
	cmd.PersistentFlags().String("wallets", "wallets.csv", "wallets CSV file")
	cmd.PersistentFlags().String("wallet", "", "name of the signing wallet")
	cmd.PersistentFlags().Uint64("nonce", 0, "nonce bound into the signature; random when unset")
	_ = cmd.MarkPersistentFlagRequired("wallet")

	cmd.AddCommand(
		newInitPoolTxCmd(),
		newAddLiquidityTxCmd(),
		newRemoveLiquidityTxCmd(),
		newSwapTxCmd(),
	)
	return cmd
}

func loadTxContext(cmd *cobra.Command, args []string) (*txContext, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	mintA, mintB, err := parseMints(args[0], args[1])
	if err != nil {
		return nil, err
	}
	addrs, err := authority.DeriveAll(programID, mintA, mintB)
	if err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("wallets")
	name, _ := cmd.Flags().GetString("wallet")
	wallets, err := wallet.LoadWallets(path)
	if err != nil {
		return nil, err
	}
	w, ok := wallets[name]
	if !ok {
		return nil, fmt.Errorf("wallet %q not found in %s", name, path)
	}
	return &txContext{cfg: cfg, programID: programID, signer: w, mintA: mintA, mintB: mintB, addrs: addrs}, nil
}

func (c *txContext) liquidityAccounts() (types.LiquidityAccounts, error) {
	acc := types.LiquidityAccounts{
		Owner:     c.signer.PublicKey,
		Pool:      c.addrs.Pool,
		Authority: c.addrs.Authority,
		VaultA:    c.addrs.VaultA,
		VaultB:    c.addrs.VaultB,
		ShareMint: c.addrs.ShareMint,
	}
	var err error
	if acc.UserTokenA, err = c.signer.GetATA(c.mintA); err != nil {
		return acc, err
	}
	if acc.UserTokenB, err = c.signer.GetATA(c.mintB); err != nil {
		return acc, err
	}
	acc.UserShares, err = c.signer.GetATA(c.addrs.ShareMint)
	return acc, err
}

func (c *txContext) emit(cmd *cobra.Command, ix *solana.GenericInstruction) error {
	nonce, _ := cmd.Flags().GetUint64("nonce")
	if nonce == 0 {
		nonce = server.NewNonce()
	}
	req, err := server.NewInstructionRequest(ix, nonce, c.signer)
	if err != nil {
		return err
	}
	return printJSON(cmd, req)
}

func optionalKey(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return solana.PublicKey{}, nil
	}
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return key, nil
}

func newInitPoolTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-pool <mint-a> <mint-b>",
		Short: "Create the pool of a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadTxContext(cmd, args)
			if err != nil {
				return err
			}
			collector, err := optionalKey(cmd, "fee-collector")
			if err != nil {
				return err
			}

			feeBps := c.cfg.Pool.DefaultFeeRateBps
			if cmd.Flags().Changed("fee-bps") {
				feeBps, _ = cmd.Flags().GetUint16("fee-bps")
			}
			shareBps := c.cfg.Pool.DefaultProtocolFeeShareBps
			if cmd.Flags().Changed("protocol-share-bps") {
				shareBps, _ = cmd.Flags().GetUint16("protocol-share-bps")
			}
			if collector.IsZero() {
				shareBps = 0
			}

			req := &types.InitializePoolRequest{
				Payer:               c.signer.PublicKey,
				Pool:                c.addrs.Pool,
				MintA:               c.mintA,
				MintB:               c.mintB,
				VaultA:              c.addrs.VaultA,
				VaultB:              c.addrs.VaultB,
				ShareMint:           c.addrs.ShareMint,
				Authority:           c.addrs.Authority,
				FeeRateBps:          feeBps,
				ProtocolFeeShareBps: shareBps,
				FeeCollector:        collector,
			}
			return c.emit(cmd, req.Instruction(c.programID))
		},
	}
	cmd.Flags().Uint16("fee-bps", 0, "fee rate, defaults to pool.default_fee_rate_bps")
	cmd.Flags().Uint16("protocol-share-bps", 0, "protocol share of the fee, defaults to pool.default_protocol_fee_share_bps")
	cmd.Flags().String("fee-collector", "", "owner of the protocol fee accounts")
	return cmd
}

func newAddLiquidityTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-liquidity <mint-a> <mint-b>",
		Short: "Deposit both assets for pool shares",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadTxContext(cmd, args)
			if err != nil {
				return err
			}
			acc, err := c.liquidityAccounts()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			req := &types.AddLiquidityRequest{LiquidityAccounts: acc}
			req.AmountA, _ = f.GetUint64("amount-a")
			req.AmountB, _ = f.GetUint64("amount-b")
			req.MinSharesOut, _ = f.GetUint64("min-shares")
			return c.emit(cmd, req.Instruction(c.programID))
		},
	}
	cmd.Flags().Uint64("amount-a", 0, "asset A to deposit")
	cmd.Flags().Uint64("amount-b", 0, "asset B to deposit")
	cmd.Flags().Uint64("min-shares", 0, "fail if fewer shares would be minted")
	return cmd
}

func newRemoveLiquidityTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-liquidity <mint-a> <mint-b>",
		Short: "Burn pool shares for both assets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadTxContext(cmd, args)
			if err != nil {
				return err
			}
			acc, err := c.liquidityAccounts()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			req := &types.RemoveLiquidityRequest{LiquidityAccounts: acc}
			req.SharesIn, _ = f.GetUint64("shares")
			req.MinAmountA, _ = f.GetUint64("min-a")
			req.MinAmountB, _ = f.GetUint64("min-b")
			return c.emit(cmd, req.Instruction(c.programID))
		},
	}
	cmd.Flags().Uint64("shares", 0, "shares to burn")
	cmd.Flags().Uint64("min-a", 0, "fail if less asset A would be returned")
	cmd.Flags().Uint64("min-b", 0, "fail if less asset B would be returned")
	return cmd
}

func newSwapTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap <mint-a> <mint-b>",
		Short: "Trade one pooled asset for the other",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadTxContext(cmd, args)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			dirFlag, _ := f.GetString("direction")
			dir, err := types.ParseDirection(dirFlag)
			if err != nil {
				return err
			}
			collector, err := optionalKey(cmd, "fee-collector")
			if err != nil {
				return err
			}

			req := &types.SwapRequest{
				Owner:     c.signer.PublicKey,
				Pool:      c.addrs.Pool,
				Authority: c.addrs.Authority,
				VaultA:    c.addrs.VaultA,
				VaultB:    c.addrs.VaultB,
				Direction: dir,
			}
			if req.UserTokenA, err = c.signer.GetATA(c.mintA); err != nil {
				return err
			}
			if req.UserTokenB, err = c.signer.GetATA(c.mintB); err != nil {
				return err
			}
			if !collector.IsZero() {
				mintIn := c.mintA
				if dir == types.BToA {
					mintIn = c.mintB
				}
				if req.FeeAccount, _, err = solana.FindAssociatedTokenAddress(collector, mintIn); err != nil {
					return err
				}
			}
			req.AmountIn, _ = f.GetUint64("amount")
			req.MinAmountOut, _ = f.GetUint64("min-out")
			return c.emit(cmd, req.Instruction(c.programID))
		},
	}
	cmd.Flags().String("direction", types.AToB.String(), "a_to_b or b_to_a")
	cmd.Flags().Uint64("amount", 0, "input amount")
	cmd.Flags().Uint64("min-out", 0, "fail if less would be received")
	cmd.Flags().String("fee-collector", "", "pool fee collector; required when the pool routes a protocol fee")
	return cmd
}
