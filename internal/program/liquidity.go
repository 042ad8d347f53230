package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/ledger/token"
	"github.com/rovshanmuradov/token-swap/internal/program/amm"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
	"github.com/rovshanmuradov/token-swap/internal/utils/logger"
)

func liquidityPoolAccounts(a types.LiquidityAccounts) poolAccounts {
	return poolAccounts{
		pool:      a.Pool,
		authority: a.Authority,
		vaultA:    a.VaultA,
		vaultB:    a.VaultB,
		shareMint: a.ShareMint,
	}
}

// verifyOwnerAccounts checks the caller's three token accounts and returns
// their balances (A, B, shares).
func verifyOwnerAccounts(tx ledger.Txn, acc types.LiquidityAccounts, pool *types.PoolState) (uint64, uint64, uint64, error) {
	balA, err := verifyUserAccount(tx, acc.UserTokenA, pool.AssetA, acc.Owner, "user A")
	if err != nil {
		return 0, 0, 0, err
	}
	balB, err := verifyUserAccount(tx, acc.UserTokenB, pool.AssetB, acc.Owner, "user B")
	if err != nil {
		return 0, 0, 0, err
	}
	shares, err := verifyUserAccount(tx, acc.UserShares, pool.ShareMint, acc.Owner, "user shares")
	if err != nil {
		return 0, 0, 0, err
	}
	return balA, balB, shares, nil
}

// AddLiquidity deposits a pair at the current reserve ratio and mints shares
// to the caller. The first deposit into an empty pool sets the ratio.
func (p *Program) AddLiquidity(ctx context.Context, req *types.AddLiquidityRequest, signers ...solana.PublicKey) (*amm.DepositQuote, error) {
	return p.addLiquidity(ctx, req, execution{signers: signers})
}

func (p *Program) addLiquidity(ctx context.Context, req *types.AddLiquidityRequest, x execution) (quote *amm.DepositQuote, err error) {
	defer logger.TrackPerformance(p.logger, KindAddLiquidity)()
	defer func() {
		fields := []zap.Field{
			zap.String("owner", req.Owner.String()),
			zap.Uint64("amount_a", req.AmountA),
			zap.Uint64("amount_b", req.AmountB),
		}
		if quote != nil {
			fields = append(fields, zap.Uint64("shares", quote.Shares))
		}
		p.logOutcome(KindAddLiquidity, req.Pool, err, fields...)
	}()

	if err := requireSigner(req.Owner, x.signers); err != nil {
		return nil, err
	}
	if req.AmountA == 0 || req.AmountB == 0 {
		return nil, types.ErrInvalidAmount.Wrap("both deposit amounts must be positive")
	}

	err = p.commit(ctx, req.Keys(), x, func(tx ledger.Txn) (events.Event, error) {
		pc, err := p.loadPoolContext(tx, liquidityPoolAccounts(req.LiquidityAccounts))
		if err != nil {
			return nil, err
		}
		balA, balB, _, err := verifyOwnerAccounts(tx, req.LiquidityAccounts, pc.state)
		if err != nil {
			return nil, err
		}

		q, err := amm.ComputeDeposit(pc.reserveA, pc.reserveB, pc.supply, req.AmountA, req.AmountB, req.MinSharesOut)
		if err != nil {
			return nil, err
		}
		if balA < q.AmountA || balB < q.AmountB {
			return nil, types.ErrInvalidAmount.Wrapf("balances %d/%d cannot cover deposit %d/%d", balA, balB, q.AmountA, q.AmountB)
		}

		owner := token.Signer(req.Owner)
		if err := token.Transfer(tx, req.UserTokenA, pc.state.VaultA, q.AmountA, owner); err != nil {
			return nil, hostError(err)
		}
		if err := token.Transfer(tx, req.UserTokenB, pc.state.VaultB, q.AmountB, owner); err != nil {
			return nil, hostError(err)
		}
		if err := token.MintTo(tx, pc.state.ShareMint, req.UserShares, q.Shares, pc.signer); err != nil {
			return nil, hostError(err)
		}
		if err := pc.checkBacking(tx); err != nil {
			return nil, err
		}

		quote = q
		return &events.LiquidityAddedEvent{
			BaseEvent:   events.NewBase(events.LiquidityAdded, req.Pool),
			Owner:       req.Owner,
			AmountA:     q.AmountA,
			AmountB:     q.AmountB,
			Shares:      q.Shares,
			ReserveA:    pc.reserveA,
			ReserveB:    pc.reserveB,
			ShareSupply: pc.supply,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// RemoveLiquidity burns the caller's shares for a pro-rata cut of both
// reserves. Rounding dust stays in the vaults.
func (p *Program) RemoveLiquidity(ctx context.Context, req *types.RemoveLiquidityRequest, signers ...solana.PublicKey) (uint64, uint64, error) {
	return p.removeLiquidity(ctx, req, execution{signers: signers})
}

func (p *Program) removeLiquidity(ctx context.Context, req *types.RemoveLiquidityRequest, x execution) (amountA, amountB uint64, err error) {
	defer logger.TrackPerformance(p.logger, KindRemoveLiquidity)()
	defer func() {
		p.logOutcome(KindRemoveLiquidity, req.Pool, err,
			zap.String("owner", req.Owner.String()),
			zap.Uint64("shares", req.SharesIn),
			zap.Uint64("amount_a", amountA),
			zap.Uint64("amount_b", amountB))
	}()

	if err := requireSigner(req.Owner, x.signers); err != nil {
		return 0, 0, err
	}
	if req.SharesIn == 0 {
		return 0, 0, types.ErrInvalidAmount.Wrap("shares to burn must be positive")
	}

	err = p.commit(ctx, req.Keys(), x, func(tx ledger.Txn) (events.Event, error) {
		pc, err := p.loadPoolContext(tx, liquidityPoolAccounts(req.LiquidityAccounts))
		if err != nil {
			return nil, err
		}
		_, _, held, err := verifyOwnerAccounts(tx, req.LiquidityAccounts, pc.state)
		if err != nil {
			return nil, err
		}
		if req.SharesIn > held {
			return nil, types.ErrInvalidAmount.Wrapf("burning %d shares, account holds %d", req.SharesIn, held)
		}

		a, b, err := amm.ComputeWithdraw(pc.reserveA, pc.reserveB, pc.supply, req.SharesIn, req.MinAmountA, req.MinAmountB)
		if err != nil {
			return nil, err
		}

		if err := token.Burn(tx, req.UserShares, pc.state.ShareMint, req.SharesIn, token.Signer(req.Owner)); err != nil {
			return nil, hostError(err)
		}
		if err := token.Transfer(tx, pc.state.VaultA, req.UserTokenA, a, pc.signer); err != nil {
			return nil, hostError(err)
		}
		if err := token.Transfer(tx, pc.state.VaultB, req.UserTokenB, b, pc.signer); err != nil {
			return nil, hostError(err)
		}
		if err := pc.checkBacking(tx); err != nil {
			return nil, err
		}

		amountA, amountB = a, b
		return &events.LiquidityRemovedEvent{
			BaseEvent:   events.NewBase(events.LiquidityRemoved, req.Pool),
			Owner:       req.Owner,
			Shares:      req.SharesIn,
			AmountA:     a,
			AmountB:     b,
			ReserveA:    pc.reserveA,
			ReserveB:    pc.reserveB,
			ShareSupply: pc.supply,
		}, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return amountA, amountB, nil
}
