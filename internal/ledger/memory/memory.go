// internal/ledger/memory/memory.go
package memory

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
)

// Ledger is an in-process host ledger. Units of work lock the stripes of
// their declared accounts, so units over disjoint pools run in parallel and
// overlapping ones serialize without deadlock.
type Ledger struct {
	locks ledger.KeyLocks

	mu       sync.RWMutex // guards accounts
	accounts map[solana.PublicKey]*ledger.Account
}

var _ ledger.Ledger = (*Ledger)(nil)

// New создает пустой in-memory леджер.
func New() *Ledger {
	return &Ledger{accounts: make(map[solana.PublicKey]*ledger.Account)}
}

func (l *Ledger) load(addr solana.PublicKey) (*ledger.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[addr].Clone(), nil
}

func (l *Ledger) run(ctx context.Context, keys []solana.PublicKey, readOnly bool, fn func(ledger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := l.locks.Lock(keys)
	defer unlock()

	stage := ledger.NewStage(keys, l.load, readOnly)
	if err := fn(stage); err != nil {
		return err
	}
	if !readOnly {
		writes := stage.Writes()
		l.mu.Lock()
		for _, acc := range writes {
			l.accounts[acc.Address] = acc
		}
		l.mu.Unlock()
	}
	stage.RunHooks()
	return nil
}

func (l *Ledger) Update(ctx context.Context, keys []solana.PublicKey, fn func(ledger.Txn) error) error {
	return l.run(ctx, keys, false, fn)
}

func (l *Ledger) View(ctx context.Context, keys []solana.PublicKey, fn func(ledger.Txn) error) error {
	return l.run(ctx, keys, true, fn)
}

// Len returns the number of stored accounts.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}

func (l *Ledger) Close() error { return nil }
