package program

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/ledger/token"
	"github.com/rovshanmuradov/token-swap/internal/program/authority"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// poolContext is a validated pool record plus its live reserves, read inside
// the unit of work that is about to mutate them.
type poolContext struct {
	address  solana.PublicKey
	state    *types.PoolState
	reserveA uint64
	reserveB uint64
	supply   uint64
	signer   token.Authority
}

// poolAccounts are the pool-owned addresses a request claims to use. Zero
// fields are not checked (swap does not name the share mint).
type poolAccounts struct {
	pool      solana.PublicKey
	authority solana.PublicKey
	vaultA    solana.PublicKey
	vaultB    solana.PublicKey
	shareMint solana.PublicKey
}

// readPool loads and decodes the record without touching the vaults.
func (p *Program) readPool(tx ledger.Txn, addr solana.PublicKey) (*types.PoolState, error) {
	acc, err := tx.Get(addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, types.ErrPoolNotInitialized.Wrapf("no pool record at %s", addr)
	}
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(p.programID) {
		return nil, types.ErrAccountMismatch.Wrapf("%s is owned by %s, not this program", addr, acc.Owner)
	}
	state, err := types.DecodePoolState(acc.Data)
	if err != nil {
		return nil, types.ErrAccountMismatch.Wrapf("%s is not a pool record: %v", addr, err)
	}
	if !state.Initialized {
		return nil, types.ErrPoolNotInitialized.Wrapf("pool %s", addr)
	}
	return state, nil
}

func (p *Program) loadPoolContext(tx ledger.Txn, accs poolAccounts) (*poolContext, error) {
	state, err := p.readPool(tx, accs.pool)
	if err != nil {
		return nil, err
	}
	if err := authority.Verify(p.programID, state); err != nil {
		return nil, err
	}
	if !accs.authority.Equals(state.Authority) {
		return nil, types.ErrAuthorityMismatch.Wrapf("supplied %s, pool authority is %s", accs.authority, state.Authority)
	}
	if !accs.vaultA.Equals(state.VaultA) || !accs.vaultB.Equals(state.VaultB) {
		return nil, types.ErrAccountMismatch.Wrap("supplied vaults do not belong to the pool")
	}
	if !accs.shareMint.IsZero() && !accs.shareMint.Equals(state.ShareMint) {
		return nil, types.ErrAccountMismatch.Wrapf("supplied share mint %s, pool uses %s", accs.shareMint, state.ShareMint)
	}

	ctx := &poolContext{
		address: accs.pool,
		state:   state,
		signer:  token.ProgramSigner(p.programID, authority.Seeds(state.AssetA, state.AssetB, state.AuthorityBump)),
	}
	if ctx.reserveA, err = vaultBalance(tx, state.VaultA, state.AssetA, state.Authority); err != nil {
		return nil, err
	}
	if ctx.reserveB, err = vaultBalance(tx, state.VaultB, state.AssetB, state.Authority); err != nil {
		return nil, err
	}
	if !accs.shareMint.IsZero() {
		mint, err := token.LoadMint(tx, state.ShareMint)
		if err != nil {
			return nil, types.ErrAccountMismatch.Wrapf("share mint %s: %v", state.ShareMint, err)
		}
		ctx.supply = mint.Supply
	}
	return ctx, nil
}

func vaultBalance(tx ledger.Txn, vault, mint, owner solana.PublicKey) (uint64, error) {
	acc, err := token.LoadAccount(tx, vault)
	if err != nil {
		return 0, types.ErrAccountMismatch.Wrapf("vault %s: %v", vault, err)
	}
	if !acc.Mint.Equals(mint) || !acc.Owner.Equals(owner) {
		return 0, types.ErrAccountMismatch.Wrapf("vault %s holds %s for %s", vault, acc.Mint, acc.Owner)
	}
	return acc.Amount, nil
}

// verifyUserAccount checks that addr is a token account of mint held by owner.
func verifyUserAccount(tx ledger.Txn, addr, mint, owner solana.PublicKey, label string) (uint64, error) {
	if addr.IsZero() {
		return 0, types.ErrAccountMismatch.Wrapf("%s account missing", label)
	}
	acc, err := token.LoadAccount(tx, addr)
	if err != nil {
		return 0, types.ErrAccountMismatch.Wrapf("%s account %s: %v", label, addr, err)
	}
	if !acc.Mint.Equals(mint) {
		return 0, types.ErrAccountMismatch.Wrapf("%s account %s holds %s, expected %s", label, addr, acc.Mint, mint)
	}
	if !acc.Owner.Equals(owner) {
		return 0, types.ErrAccountMismatch.Wrapf("%s account %s belongs to %s", label, addr, acc.Owner)
	}
	return acc.Amount, nil
}

func (p *Program) storePool(tx ledger.Txn, addr solana.PublicKey, state *types.PoolState) error {
	return tx.Put(&ledger.Account{Address: addr, Owner: p.programID, Data: state.Encode()})
}

// checkBacking re-reads the reserves after a liquidity change: the share
// supply is zero exactly when both vaults are empty.
func (c *poolContext) checkBacking(tx ledger.Txn) error {
	reserveA, err := vaultBalance(tx, c.state.VaultA, c.state.AssetA, c.state.Authority)
	if err != nil {
		return err
	}
	reserveB, err := vaultBalance(tx, c.state.VaultB, c.state.AssetB, c.state.Authority)
	if err != nil {
		return err
	}
	mint, err := token.LoadMint(tx, c.state.ShareMint)
	if err != nil {
		return err
	}
	empty := reserveA == 0 && reserveB == 0
	if (mint.Supply == 0) != empty {
		return types.ErrInsufficientReserves.Wrapf(
			"share supply %d does not match reserves (%d, %d)", mint.Supply, reserveA, reserveB)
	}
	c.reserveA, c.reserveB, c.supply = reserveA, reserveB, mint.Supply
	return nil
}

// reserves orders the live reserves as (in, out) for a direction.
func (c *poolContext) reserves(d types.Direction) (uint64, uint64) {
	if d == types.AToB {
		return c.reserveA, c.reserveB
	}
	return c.reserveB, c.reserveA
}

// hostError maps token-program failures that reach the processor onto the
// program taxonomy; anything else passes through untouched.
func hostError(err error) error {
	switch {
	case err == nil:
		return nil
	case types.Kind(err) != "":
		return err
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return types.ErrInvalidAmount.Wrap(err.Error())
	case errors.Is(err, ledger.ErrOverflow):
		return types.ErrArithmeticOverflow.Wrap(err.Error())
	case errors.Is(err, ledger.ErrOwnerMismatch), errors.Is(err, ledger.ErrMintMismatch):
		return types.ErrAccountMismatch.Wrap(err.Error())
	default:
		return err
	}
}
