// internal/program/program.go
package program

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/program/amm"
	"github.com/rovshanmuradov/token-swap/internal/program/authority"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
	"github.com/rovshanmuradov/token-swap/internal/utils/binary"
)

// ShareDecimals is the precision of every pool share mint.
const ShareDecimals = 9

// DefaultMaxFeeRateBps caps fee_rate_bps when Options leave it unset.
const DefaultMaxFeeRateBps = 1000

type Options struct {
	ProgramID     solana.PublicKey
	MaxFeeRateBps uint16
	// Events receives pool events after each commit; nil disables them.
	Events *events.Bus
}

// Program executes swap-pool instructions against a host ledger. Each call
// is one atomic unit of work: either every transfer, mint, burn and record
// update lands, or none does.
type Program struct {
	programID solana.PublicKey
	maxFeeBps uint16
	ledger    ledger.Ledger
	bus       *events.Bus
	logger    *zap.Logger
}

func New(l ledger.Ledger, opts Options, logger *zap.Logger) (*Program, error) {
	if opts.ProgramID.IsZero() {
		return nil, fmt.Errorf("program id is required")
	}
	if opts.MaxFeeRateBps == 0 {
		opts.MaxFeeRateBps = DefaultMaxFeeRateBps
	}
	if opts.MaxFeeRateBps > types.BasisPoints {
		return nil, fmt.Errorf("max fee rate %d bps exceeds %d", opts.MaxFeeRateBps, types.BasisPoints)
	}
	return &Program{
		programID: opts.ProgramID,
		maxFeeBps: opts.MaxFeeRateBps,
		ledger:    l,
		bus:       opts.Events,
		logger:    logger.Named("program"),
	}, nil
}

func (p *Program) ProgramID() solana.PublicKey { return p.programID }

func (p *Program) MaxFeeRateBps() uint16 { return p.maxFeeBps }

// Result is the outcome of one processed instruction. Only the fields of the
// executed kind are set.
type Result struct {
	Kind    string           `json:"kind"`
	Pool    *types.PoolState `json:"pool,omitempty"`
	Shares  uint64           `json:"shares,omitempty"`
	AmountA uint64           `json:"amount_a,omitempty"`
	AmountB uint64           `json:"amount_b,omitempty"`
	Swap    *amm.SwapQuote   `json:"swap,omitempty"`
}

const (
	KindInitializePool  = "initialize_pool"
	KindAddLiquidity    = "add_liquidity"
	KindRemoveLiquidity = "remove_liquidity"
	KindSwap            = "swap"
)

// Process decodes a wire instruction and runs it. signers are the keys whose
// signatures over SigningMessage(ix, nonce) were already verified by the
// caller. Every processed message leaves a receipt in the same unit of work,
// so submitting it again fails with InvalidInstruction.
func (p *Program) Process(ctx context.Context, ix solana.Instruction, nonce uint64, signers []solana.PublicKey) (*Result, error) {
	if !ix.ProgramID().Equals(p.programID) {
		return nil, types.ErrInvalidInstruction.Wrapf("instruction for program %s, this is %s", ix.ProgramID(), p.programID)
	}
	data, err := ix.Data()
	if err != nil {
		return nil, types.ErrInvalidInstruction.Wrapf("instruction data: %v", err)
	}
	decoded, err := types.DecodeInstruction(ix.Accounts(), data)
	if err != nil {
		return nil, err
	}
	msg, err := types.SigningMessage(ix, nonce)
	if err != nil {
		return nil, err
	}
	receipt, err := authority.DeriveReceipt(p.programID, msg)
	if err != nil {
		return nil, types.ErrInvalidInstruction.Wrapf("receipt address: %v", err)
	}
	x := execution{signers: signers, receipt: receipt}

	switch req := decoded.(type) {
	case *types.InitializePoolRequest:
		pool, err := p.initializePool(ctx, req, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindInitializePool, Pool: pool}, nil
	case *types.AddLiquidityRequest:
		q, err := p.addLiquidity(ctx, req, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindAddLiquidity, Shares: q.Shares, AmountA: q.AmountA, AmountB: q.AmountB}, nil
	case *types.RemoveLiquidityRequest:
		a, b, err := p.removeLiquidity(ctx, req, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindRemoveLiquidity, Shares: req.SharesIn, AmountA: a, AmountB: b}, nil
	case *types.SwapRequest:
		q, err := p.swap(ctx, req, x)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindSwap, Swap: q}, nil
	default:
		return nil, types.ErrInvalidInstruction.Wrapf("unsupported request %T", decoded)
	}
}

// execution is what the caller established about one request.
type execution struct {
	signers []solana.PublicKey
	receipt solana.PublicKey // zero for direct calls that bypass Process
}

// commit runs fn as one unit of work over keys. A receipt, when present, is
// claimed inside the same unit, and the event fn returns is queued from the
// commit hook while the pool's accounts are still held, so the bus sees a
// pool's events in commit order.
func (p *Program) commit(ctx context.Context, keys []solana.PublicKey, x execution, fn func(ledger.Txn) (events.Event, error)) error {
	if !x.receipt.IsZero() {
		keys = append(keys[:len(keys):len(keys)], x.receipt)
	}
	return p.ledger.Update(ctx, keys, func(tx ledger.Txn) error {
		if !x.receipt.IsZero() {
			if err := p.claimReceipt(tx, x.receipt); err != nil {
				return err
			}
		}
		event, err := fn(tx)
		if err != nil {
			return err
		}
		if event != nil {
			tx.AfterCommit(func() { p.publish(event) })
		}
		return nil
	})
}

// claimReceipt creates the receipt account; an existing one means the
// message was already processed.
func (p *Program) claimReceipt(tx ledger.Txn, addr solana.PublicKey) error {
	w := binary.NewWriter(8)
	w.Uint64(uint64(time.Now().Unix()))
	err := tx.Create(&ledger.Account{Address: addr, Owner: p.programID, Data: w.Bytes()})
	if errors.Is(err, ledger.ErrAccountExists) {
		return types.ErrInvalidInstruction.Wrapf("instruction already processed (receipt %s)", addr)
	}
	return err
}

func requireSigner(key solana.PublicKey, signers []solana.PublicKey) error {
	if key.IsZero() {
		return types.ErrMissingSignature.Wrap("no signer account supplied")
	}
	for _, s := range signers {
		if s.Equals(key) {
			return nil
		}
	}
	return types.ErrMissingSignature.Wrapf("%s did not sign", key)
}

func (p *Program) publish(event events.Event) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(event); err != nil {
		p.logger.Warn("Failed to publish pool event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}

// logOutcome records a finished request; rejected requests are expected
// traffic and stay at debug.
func (p *Program) logOutcome(op string, pool solana.PublicKey, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op), zap.String("pool", pool.String()))
	if err != nil {
		fields = append(fields, zap.String("kind", types.Kind(err)), zap.Error(err))
		p.logger.Debug("Request rejected", fields...)
		return
	}
	p.logger.Info("Request applied", fields...)
}
