package program

import (
	"context"
	"math"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/ledger/token"
	"github.com/rovshanmuradov/token-swap/internal/program/amm"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
	"github.com/rovshanmuradov/token-swap/internal/utils/logger"
)

// Swap trades AmountIn of one pooled asset for the other at the
// constant-product price net of the pool fee.
func (p *Program) Swap(ctx context.Context, req *types.SwapRequest, signers ...solana.PublicKey) (*amm.SwapQuote, error) {
	return p.swap(ctx, req, execution{signers: signers})
}

func (p *Program) swap(ctx context.Context, req *types.SwapRequest, x execution) (quote *amm.SwapQuote, err error) {
	defer logger.TrackPerformance(p.logger, KindSwap)()
	defer func() {
		fields := []zap.Field{
			zap.String("owner", req.Owner.String()),
			zap.Stringer("direction", req.Direction),
			zap.Uint64("amount_in", req.AmountIn),
			zap.Uint64("min_amount_out", req.MinAmountOut),
		}
		if quote != nil {
			fields = append(fields,
				zap.Uint64("amount_out", quote.Output),
				zap.Uint64("fee", quote.Fee))
		}
		p.logOutcome(KindSwap, req.Pool, err, fields...)
	}()

	if err := requireSigner(req.Owner, x.signers); err != nil {
		return nil, err
	}
	if !req.Direction.Valid() {
		return nil, types.ErrInvalidInstruction.Wrapf("unknown swap direction %d", req.Direction)
	}
	if req.AmountIn == 0 {
		return nil, types.ErrInvalidAmount.Wrap("swap input must be positive")
	}

	err = p.commit(ctx, req.Keys(), x, func(tx ledger.Txn) (events.Event, error) {
		pc, err := p.loadPoolContext(tx, poolAccounts{
			pool:      req.Pool,
			authority: req.Authority,
			vaultA:    req.VaultA,
			vaultB:    req.VaultB,
		})
		if err != nil {
			return nil, err
		}
		state := pc.state
		mintIn, mintOut := state.Mints(req.Direction)

		balA, err := verifyUserAccount(tx, req.UserTokenA, state.AssetA, req.Owner, "user A")
		if err != nil {
			return nil, err
		}
		balB, err := verifyUserAccount(tx, req.UserTokenB, state.AssetB, req.Owner, "user B")
		if err != nil {
			return nil, err
		}
		userIn, userOut, balIn := req.UserTokenA, req.UserTokenB, balA
		if req.Direction == types.BToA {
			userIn, userOut, balIn = req.UserTokenB, req.UserTokenA, balB
		}
		if balIn < req.AmountIn {
			return nil, types.ErrInvalidAmount.Wrapf("input account holds %d, swapping %d", balIn, req.AmountIn)
		}

		var protocolShare uint16
		if state.HasFeeCollector() {
			if _, err := verifyUserAccount(tx, req.FeeAccount, mintIn, state.FeeCollector, "fee collector"); err != nil {
				return nil, err
			}
			protocolShare = state.ProtocolFeeShareBps
		}

		reserveIn, reserveOut := pc.reserves(req.Direction)
		q, err := amm.ComputeSwap(reserveIn, reserveOut, req.AmountIn, state.FeeRateBps, protocolShare)
		if err != nil {
			return nil, err
		}
		if q.Output == 0 {
			return nil, types.ErrSlippageExceeded.Wrapf("input %d buys nothing", req.AmountIn)
		}
		if q.Output < req.MinAmountOut {
			return nil, types.ErrSlippageExceeded.Wrapf("output %d < min %d", q.Output, req.MinAmountOut)
		}

		vaultIn, vaultOut := state.Vaults(req.Direction)
		owner := token.Signer(req.Owner)
		if err := token.Transfer(tx, userIn, vaultIn, q.VaultDeposit, owner); err != nil {
			return nil, hostError(err)
		}
		if q.ProtocolFee > 0 {
			if err := token.Transfer(tx, userIn, req.FeeAccount, q.ProtocolFee, owner); err != nil {
				return nil, hostError(err)
			}
		}
		if err := token.Transfer(tx, vaultOut, userOut, q.Output, pc.signer); err != nil {
			return nil, hostError(err)
		}

		if req.Direction == types.AToB {
			state.TotalFeesA = saturatingAdd(state.TotalFeesA, q.Fee)
		} else {
			state.TotalFeesB = saturatingAdd(state.TotalFeesB, q.Fee)
		}
		if err := p.storePool(tx, req.Pool, state); err != nil {
			return nil, err
		}

		// k по фактическим балансам хранилищ, а не по котировке
		afterIn, err := vaultBalance(tx, vaultIn, mintIn, state.Authority)
		if err != nil {
			return nil, err
		}
		afterOut, err := vaultBalance(tx, vaultOut, mintOut, state.Authority)
		if err != nil {
			return nil, err
		}
		if err := amm.CheckProduct(reserveIn, reserveOut, afterIn, afterOut); err != nil {
			return nil, err
		}

		quote = q
		return &events.SwapExecutedEvent{
			BaseEvent:   events.NewBase(events.SwapExecuted, req.Pool),
			Owner:       req.Owner,
			Direction:   req.Direction.String(),
			AmountIn:    q.AmountIn,
			AmountOut:   q.Output,
			Fee:         q.Fee,
			ProtocolFee: q.ProtocolFee,
			ReserveIn:   afterIn,
			ReserveOut:  afterOut,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
