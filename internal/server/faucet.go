package server

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/ledger/token"
)

// Faucet creates mints and funds accounts on the host ledger for local
// testing. It holds the mint authority of every mint it creates.
type Faucet struct {
	ledger    ledger.Ledger
	authority solana.PublicKey
	logger    *zap.Logger
}

func NewFaucet(l ledger.Ledger, logger *zap.Logger) *Faucet {
	return &Faucet{
		ledger:    l,
		authority: solana.NewWallet().PublicKey(),
		logger:    logger.Named("faucet"),
	}
}

// CreateMint registers a fresh mint with the given precision.
func (f *Faucet) CreateMint(ctx context.Context, decimals uint8) (solana.PublicKey, error) {
	mint := solana.NewWallet().PublicKey()
	err := f.ledger.Update(ctx, []solana.PublicKey{mint}, func(tx ledger.Txn) error {
		return token.InitializeMint(tx, mint, decimals, f.authority)
	})
	if err != nil {
		return solana.PublicKey{}, err
	}
	f.logger.Info("Mint created", zap.String("mint", mint.String()), zap.Uint8("decimals", decimals))
	return mint, nil
}

// OpenAccount creates the associated account of owner for mint. Opening an
// existing account is a no-op.
func (f *Faucet) OpenAccount(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated account: %w", err)
	}
	err = f.ledger.Update(ctx, []solana.PublicKey{mint, ata}, func(tx ledger.Txn) error {
		exists, err := tx.Exists(ata)
		if err != nil || exists {
			return err
		}
		return token.InitializeAccount(tx, ata, mint, owner)
	})
	if err != nil {
		return solana.PublicKey{}, err
	}
	return ata, nil
}

// Fund mints amount into owner's associated account, opening it if needed.
func (f *Faucet) Fund(ctx context.Context, owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	ata, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated account: %w", err)
	}
	err = f.ledger.Update(ctx, []solana.PublicKey{mint, ata}, func(tx ledger.Txn) error {
		exists, err := tx.Exists(ata)
		if err != nil {
			return err
		}
		if !exists {
			if err := token.InitializeAccount(tx, ata, mint, owner); err != nil {
				return err
			}
		}
		return token.MintTo(tx, mint, ata, amount, token.Signer(f.authority))
	})
	if err != nil {
		return solana.PublicKey{}, err
	}
	f.logger.Debug("Account funded",
		zap.String("owner", owner.String()),
		zap.String("mint", mint.String()),
		zap.Uint64("amount", amount))
	return ata, nil
}
