// internal/ledger/ledger.go
package ledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// Host ledger errors.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrUndeclaredAccount = errors.New("account not declared by the transaction")
	ErrReadOnly          = errors.New("write in read-only transaction")
	ErrConflict          = errors.New("concurrent modification, transaction aborted")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOwnerMismatch     = errors.New("owner mismatch")
	ErrMintMismatch      = errors.New("mint mismatch")
	ErrOverflow          = errors.New("balance overflow")
)

// Account is one addressable record: its owning program and raw data.
type Account struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Account{Address: a.Address, Owner: a.Owner, Data: data}
}

// Txn is the view a unit of work has over its declared accounts. Reads see
// the unit's own earlier writes; nothing is visible to others before commit.
type Txn interface {
	Get(addr solana.PublicKey) (*Account, error)
	Exists(addr solana.PublicKey) (bool, error)
	Create(acc *Account) error
	Put(acc *Account) error
	// AfterCommit registers fn to run once the unit has committed, before
	// its accounts are released to the next unit. Hooks are dropped when
	// the unit fails or is retried; they must not block.
	AfterCommit(fn func())
}

// Ledger runs units of work atomically. Every account a unit touches must be
// declared up front so that backends can serialize on exactly those keys.
type Ledger interface {
	// Update commits all writes made by fn, or none of them if fn (or the
	// commit) fails.
	Update(ctx context.Context, keys []solana.PublicKey, fn func(Txn) error) error
	// View runs fn against a consistent snapshot; writes are rejected.
	View(ctx context.Context, keys []solana.PublicKey, fn func(Txn) error) error
	Close() error
}
