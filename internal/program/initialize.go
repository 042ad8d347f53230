package program

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/ledger/token"
	"github.com/rovshanmuradov/token-swap/internal/program/authority"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
	"github.com/rovshanmuradov/token-swap/internal/utils/logger"
)

// InitializePool creates the record, both vaults and the share mint for a
// pair. It succeeds at most once per pair: the record lives at an address
// derived from the pair, and a second attempt finds it occupied.
func (p *Program) InitializePool(ctx context.Context, req *types.InitializePoolRequest, signers ...solana.PublicKey) (*types.PoolState, error) {
	return p.initializePool(ctx, req, execution{signers: signers})
}

func (p *Program) initializePool(ctx context.Context, req *types.InitializePoolRequest, x execution) (pool *types.PoolState, err error) {
	defer logger.TrackPerformance(p.logger, KindInitializePool)()
	defer func() {
		if pool != nil {
			p.logOutcome(KindInitializePool, req.Pool, err, logger.PoolFields(pool)...)
			return
		}
		p.logOutcome(KindInitializePool, req.Pool, err,
			zap.String("asset_a", req.MintA.String()),
			zap.String("asset_b", req.MintB.String()),
			zap.Uint16("fee_rate_bps", req.FeeRateBps))
	}()

	if err := requireSigner(req.Payer, x.signers); err != nil {
		return nil, err
	}
	if err := p.validatePoolParams(req); err != nil {
		return nil, err
	}

	addrs, err := authority.DeriveAll(p.programID, req.MintA, req.MintB)
	if err != nil {
		return nil, types.ErrAuthorityMismatch.Wrap(err.Error())
	}
	if !req.Authority.Equals(addrs.Authority) {
		return nil, types.ErrAuthorityMismatch.Wrapf("supplied %s, derived %s", req.Authority, addrs.Authority)
	}
	switch {
	case !req.Pool.Equals(addrs.Pool):
		return nil, types.ErrAccountMismatch.Wrapf("pool: supplied %s, derived %s", req.Pool, addrs.Pool)
	case !req.VaultA.Equals(addrs.VaultA):
		return nil, types.ErrAccountMismatch.Wrapf("vault A: supplied %s, derived %s", req.VaultA, addrs.VaultA)
	case !req.VaultB.Equals(addrs.VaultB):
		return nil, types.ErrAccountMismatch.Wrapf("vault B: supplied %s, derived %s", req.VaultB, addrs.VaultB)
	case !req.ShareMint.Equals(addrs.ShareMint):
		return nil, types.ErrAccountMismatch.Wrapf("share mint: supplied %s, derived %s", req.ShareMint, addrs.ShareMint)
	}

	state := &types.PoolState{
		Version:             types.PoolStateVersion,
		Initialized:         true,
		AuthorityBump:       addrs.AuthorityBump,
		PoolBump:            addrs.PoolBump,
		AssetA:              req.MintA,
		AssetB:              req.MintB,
		VaultA:              addrs.VaultA,
		VaultB:              addrs.VaultB,
		ShareMint:           addrs.ShareMint,
		Authority:           addrs.Authority,
		Admin:               req.Payer,
		FeeCollector:        req.FeeCollector,
		FeeRateBps:          req.FeeRateBps,
		ProtocolFeeShareBps: req.ProtocolFeeShareBps,
	}

	err = p.commit(ctx, req.Keys(), x, func(tx ledger.Txn) (events.Event, error) {
		exists, err := tx.Exists(req.Pool)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, types.ErrAlreadyInitialized.Wrapf("pool %s", req.Pool)
		}
		if _, err := token.LoadMint(tx, req.MintA); err != nil {
			return nil, types.ErrAccountMismatch.Wrapf("mint A %s: %v", req.MintA, err)
		}
		if _, err := token.LoadMint(tx, req.MintB); err != nil {
			return nil, types.ErrAccountMismatch.Wrapf("mint B %s: %v", req.MintB, err)
		}

		if err := token.InitializeAccount(tx, state.VaultA, state.AssetA, state.Authority); err != nil {
			return nil, initError("vault A", err)
		}
		if err := token.InitializeAccount(tx, state.VaultB, state.AssetB, state.Authority); err != nil {
			return nil, initError("vault B", err)
		}
		if err := token.InitializeMint(tx, state.ShareMint, ShareDecimals, state.Authority); err != nil {
			return nil, initError("share mint", err)
		}
		if err := tx.Create(&ledger.Account{Address: req.Pool, Owner: p.programID, Data: state.Encode()}); err != nil {
			return nil, initError("pool record", err)
		}
		return &events.PoolInitializedEvent{
			BaseEvent:    events.NewBase(events.PoolInitialized, req.Pool),
			Admin:        state.Admin,
			AssetA:       state.AssetA,
			AssetB:       state.AssetB,
			ShareMint:    state.ShareMint,
			FeeRateBps:   state.FeeRateBps,
			FeeCollector: state.FeeCollector,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (p *Program) validatePoolParams(req *types.InitializePoolRequest) error {
	if req.MintA.IsZero() || req.MintB.IsZero() {
		return types.ErrInvalidInstruction.Wrap("both asset mints are required")
	}
	if req.MintA.Equals(req.MintB) {
		return types.ErrIdenticalAssets.Wrapf("%s", req.MintA)
	}
	if req.FeeRateBps > p.maxFeeBps {
		return types.ErrFeeTooHigh.Wrapf("fee rate %d bps, maximum %d", req.FeeRateBps, p.maxFeeBps)
	}
	if req.ProtocolFeeShareBps > types.BasisPoints {
		return types.ErrFeeTooHigh.Wrapf("protocol share %d bps exceeds %d", req.ProtocolFeeShareBps, types.BasisPoints)
	}
	if req.ProtocolFeeShareBps > 0 && req.FeeCollector.IsZero() {
		return types.ErrInvalidInstruction.Wrap("protocol fee share set without a fee collector")
	}
	return nil
}

// initError reports a pre-existing pool account as a repeated initialization.
func initError(what string, err error) error {
	if errors.Is(err, ledger.ErrAccountExists) {
		return types.ErrAlreadyInitialized.Wrapf("%s already exists", what)
	}
	return hostError(err)
}
