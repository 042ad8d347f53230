// internal/ledger/stage.go
package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
)

// Loader fetches the committed state of an account; (nil, nil) means absent.
type Loader func(addr solana.PublicKey) (*Account, error)

// Stage buffers the writes of one unit of work on top of committed state.
// Backends load through it and commit Writes() once fn succeeds.
type Stage struct {
	declared map[solana.PublicKey]struct{}
	load     Loader
	readOnly bool

	loaded  map[solana.PublicKey]*Account // nil value = known absent
	dirty   map[solana.PublicKey]*Account
	created map[solana.PublicKey]struct{}
	hooks   []func()
}

// NewStage prepares a stage over keys.
func NewStage(keys []solana.PublicKey, load Loader, readOnly bool) *Stage {
	s := &Stage{
		declared: make(map[solana.PublicKey]struct{}, len(keys)),
		load:     load,
		readOnly: readOnly,
		loaded:   make(map[solana.PublicKey]*Account, len(keys)),
		dirty:    make(map[solana.PublicKey]*Account),
		created:  make(map[solana.PublicKey]struct{}),
	}
	for _, k := range keys {
		s.declared[k] = struct{}{}
	}
	return s
}

func (s *Stage) current(addr solana.PublicKey) (*Account, error) {
	if _, ok := s.declared[addr]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUndeclaredAccount, addr)
	}
	if acc, ok := s.dirty[addr]; ok {
		return acc, nil
	}
	if acc, ok := s.loaded[addr]; ok {
		return acc, nil
	}
	acc, err := s.load(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", addr, err)
	}
	s.loaded[addr] = acc
	return acc, nil
}

func (s *Stage) Get(addr solana.PublicKey) (*Account, error) {
	acc, err := s.current(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc.Clone(), nil
}

func (s *Stage) Exists(addr solana.PublicKey) (bool, error) {
	acc, err := s.current(addr)
	if err != nil {
		return false, err
	}
	return acc != nil, nil
}

func (s *Stage) Create(acc *Account) error {
	if s.readOnly {
		return ErrReadOnly
	}
	cur, err := s.current(acc.Address)
	if err != nil {
		return err
	}
	if cur != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, acc.Address)
	}
	s.dirty[acc.Address] = acc.Clone()
	s.created[acc.Address] = struct{}{}
	return nil
}

func (s *Stage) Put(acc *Account) error {
	if s.readOnly {
		return ErrReadOnly
	}
	cur, err := s.current(acc.Address)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, acc.Address)
	}
	s.dirty[acc.Address] = acc.Clone()
	return nil
}

func (s *Stage) AfterCommit(fn func()) {
	s.hooks = append(s.hooks, fn)
}

// RunHooks runs the AfterCommit hooks in registration order. Backends call
// it after a successful commit while they still hold the unit's keys.
func (s *Stage) RunHooks() {
	for _, fn := range s.hooks {
		fn()
	}
	s.hooks = nil
}

// Writes returns the staged accounts in address order.
func (s *Stage) Writes() []*Account {
	out := make([]*Account, 0, len(s.dirty))
	for _, acc := range s.dirty {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// Created reports whether addr was created by this unit of work.
func (s *Stage) Created(addr solana.PublicKey) bool {
	_, ok := s.created[addr]
	return ok
}

// SortKeys returns keys deduplicated and in address order.
func SortKeys(keys []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	out := make([]solana.PublicKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
