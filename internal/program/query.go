package program

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/program/amm"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// PoolView is a pool record with its derived reserves and share supply.
type PoolView struct {
	Address     solana.PublicKey `json:"address"`
	State       *types.PoolState `json:"state"`
	ReserveA    uint64           `json:"reserve_a"`
	ReserveB    uint64           `json:"reserve_b"`
	TotalShares uint64           `json:"total_shares"`
}

// GetPool reads a pool and its live reserves from one consistent snapshot.
func (p *Program) GetPool(ctx context.Context, pool solana.PublicKey) (*PoolView, error) {
	// адреса хранилищ известны только из записи, поэтому читаем в два прохода
	var state *types.PoolState
	err := p.ledger.View(ctx, []solana.PublicKey{pool}, func(tx ledger.Txn) error {
		var err error
		state, err = p.readPool(tx, pool)
		return err
	})
	if err != nil {
		return nil, err
	}

	view := &PoolView{Address: pool}
	keys := []solana.PublicKey{pool, state.VaultA, state.VaultB, state.ShareMint}
	err = p.ledger.View(ctx, keys, func(tx ledger.Txn) error {
		pc, err := p.loadPoolContext(tx, poolAccounts{
			pool:      pool,
			authority: state.Authority,
			vaultA:    state.VaultA,
			vaultB:    state.VaultB,
			shareMint: state.ShareMint,
		})
		if err != nil {
			return err
		}
		view.State = pc.state
		view.ReserveA, view.ReserveB, view.TotalShares = pc.reserveA, pc.reserveB, pc.supply
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// QuoteSwap prices a swap against the current reserves without moving
// anything. The protocol cut is included when the pool has a collector.
func (p *Program) QuoteSwap(ctx context.Context, pool solana.PublicKey, dir types.Direction, amountIn uint64) (*amm.SwapQuote, error) {
	if !dir.Valid() {
		return nil, types.ErrInvalidInstruction.Wrapf("unknown swap direction %d", dir)
	}
	view, err := p.GetPool(ctx, pool)
	if err != nil {
		return nil, err
	}

	var share uint16
	if view.State.HasFeeCollector() {
		share = view.State.ProtocolFeeShareBps
	}
	reserveIn, reserveOut := view.ReserveA, view.ReserveB
	if dir == types.BToA {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	return amm.ComputeSwap(reserveIn, reserveOut, amountIn, view.State.FeeRateBps, share)
}

// QuoteDeposit sizes a deposit of amountA plus the matching amount of B.
func (p *Program) QuoteDeposit(ctx context.Context, pool solana.PublicKey, amountA uint64) (*amm.DepositQuote, error) {
	view, err := p.GetPool(ctx, pool)
	if err != nil {
		return nil, err
	}
	amountB, err := amm.MatchDeposit(view.ReserveA, view.ReserveB, amountA)
	if err != nil {
		return nil, err
	}
	return amm.ComputeDeposit(view.ReserveA, view.ReserveB, view.TotalShares, amountA, amountB, 0)
}
