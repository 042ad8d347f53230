// internal/ledger/token/token.go
package token

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	spltoken "github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
)

// ProgramID owns every mint and token account the host ledger creates.
var ProgramID = spltoken.ProgramID

// Authority proves the right to move tokens: either a key that signed the
// request, or program seeds that re-derive the owning address.
type Authority struct {
	signer    solana.PublicKey
	programID solana.PublicKey
	seeds     [][]byte
}

// Signer is an authority backed by a verified signature of key.
func Signer(key solana.PublicKey) Authority {
	return Authority{signer: key}
}

// ProgramSigner is an authority backed by seeds (bump included) of programID.
func ProgramSigner(programID solana.PublicKey, seeds [][]byte) Authority {
	return Authority{programID: programID, seeds: seeds}
}

// Key resolves the address this authority acts for.
func (a Authority) Key() (solana.PublicKey, error) {
	if a.seeds == nil {
		return a.signer, nil
	}
	addr, err := solana.CreateProgramAddress(a.seeds, a.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid signer seeds: %v", ledger.ErrOwnerMismatch, err)
	}
	return addr, nil
}

func (a Authority) authorizes(owner solana.PublicKey) error {
	key, err := a.Key()
	if err != nil {
		return err
	}
	if key.IsZero() || !key.Equals(owner) {
		return fmt.Errorf("%w: authority %s, owner %s", ledger.ErrOwnerMismatch, key, owner)
	}
	return nil
}

func encode(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBinEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func load(tx ledger.Txn, addr solana.PublicKey) (*ledger.Account, error) {
	acc, err := tx.Get(addr)
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: %s is not a token program account", ledger.ErrOwnerMismatch, addr)
	}
	return acc, nil
}

// LoadMint decodes the mint at addr.
func LoadMint(tx ledger.Txn, addr solana.PublicKey) (*spltoken.Mint, error) {
	acc, err := load(tx, addr)
	if err != nil {
		return nil, err
	}
	var mint spltoken.Mint
	if err := bin.NewBinDecoder(acc.Data).Decode(&mint); err != nil {
		return nil, fmt.Errorf("failed to decode mint %s: %w", addr, err)
	}
	if !mint.IsInitialized {
		return nil, fmt.Errorf("%w: mint %s is not initialized", ledger.ErrAccountNotFound, addr)
	}
	return &mint, nil
}

// LoadAccount decodes the token account at addr.
func LoadAccount(tx ledger.Txn, addr solana.PublicKey) (*spltoken.Account, error) {
	acc, err := load(tx, addr)
	if err != nil {
		return nil, err
	}
	var account spltoken.Account
	if err := bin.NewBinDecoder(acc.Data).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode token account %s: %w", addr, err)
	}
	if account.State == spltoken.Uninitialized {
		return nil, fmt.Errorf("%w: token account %s is not initialized", ledger.ErrAccountNotFound, addr)
	}
	return &account, nil
}

func storeMint(tx ledger.Txn, addr solana.PublicKey, mint *spltoken.Mint) error {
	data, err := encode(mint)
	if err != nil {
		return fmt.Errorf("failed to encode mint %s: %w", addr, err)
	}
	return tx.Put(&ledger.Account{Address: addr, Owner: ProgramID, Data: data})
}

func storeAccount(tx ledger.Txn, addr solana.PublicKey, account *spltoken.Account) error {
	data, err := encode(account)
	if err != nil {
		return fmt.Errorf("failed to encode token account %s: %w", addr, err)
	}
	return tx.Put(&ledger.Account{Address: addr, Owner: ProgramID, Data: data})
}

// InitializeMint creates a mint whose supply only mintAuthority can grow.
func InitializeMint(tx ledger.Txn, addr solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey) error {
	authority := mintAuthority
	data, err := encode(&spltoken.Mint{
		MintAuthority: &authority,
		Decimals:      decimals,
		IsInitialized: true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mint %s: %w", addr, err)
	}
	return tx.Create(&ledger.Account{Address: addr, Owner: ProgramID, Data: data})
}

// InitializeAccount creates an empty token account for mint held by owner.
func InitializeAccount(tx ledger.Txn, addr, mint, owner solana.PublicKey) error {
	if _, err := LoadMint(tx, mint); err != nil {
		return err
	}
	data, err := encode(&spltoken.Account{
		Mint:  mint,
		Owner: owner,
		State: spltoken.Initialized,
	})
	if err != nil {
		return fmt.Errorf("failed to encode token account %s: %w", addr, err)
	}
	return tx.Create(&ledger.Account{Address: addr, Owner: ProgramID, Data: data})
}

// Transfer moves amount between two accounts of the same mint.
func Transfer(tx ledger.Txn, from, to solana.PublicKey, amount uint64, auth Authority) error {
	src, err := LoadAccount(tx, from)
	if err != nil {
		return err
	}
	dst, err := LoadAccount(tx, to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: %s holds %s, %s holds %s", ledger.ErrMintMismatch, from, src.Mint, to, dst.Mint)
	}
	if err := auth.authorizes(src.Owner); err != nil {
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ledger.ErrInsufficientFunds, from, src.Amount, amount)
	}
	if from.Equals(to) || amount == 0 {
		return nil
	}
	if dst.Amount > ^uint64(0)-amount {
		return fmt.Errorf("%w: %s", ledger.ErrOverflow, to)
	}

	src.Amount -= amount
	dst.Amount += amount
	if err := storeAccount(tx, from, src); err != nil {
		return err
	}
	return storeAccount(tx, to, dst)
}

// MintTo grows supply and credits to.
func MintTo(tx ledger.Txn, mintAddr, to solana.PublicKey, amount uint64, auth Authority) error {
	mint, err := LoadMint(tx, mintAddr)
	if err != nil {
		return err
	}
	dst, err := LoadAccount(tx, to)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(mintAddr) {
		return fmt.Errorf("%w: %s holds %s, not %s", ledger.ErrMintMismatch, to, dst.Mint, mintAddr)
	}
	if mint.MintAuthority == nil {
		return fmt.Errorf("%w: mint %s has a fixed supply", ledger.ErrOwnerMismatch, mintAddr)
	}
	if err := auth.authorizes(*mint.MintAuthority); err != nil {
		return err
	}
	if mint.Supply > ^uint64(0)-amount {
		return fmt.Errorf("%w: supply of %s", ledger.ErrOverflow, mintAddr)
	}

	mint.Supply += amount
	dst.Amount += amount
	if err := storeMint(tx, mintAddr, mint); err != nil {
		return err
	}
	return storeAccount(tx, to, dst)
}

// Burn destroys amount from an account the authority owns.
func Burn(tx ledger.Txn, from, mintAddr solana.PublicKey, amount uint64, auth Authority) error {
	mint, err := LoadMint(tx, mintAddr)
	if err != nil {
		return err
	}
	src, err := LoadAccount(tx, from)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(mintAddr) {
		return fmt.Errorf("%w: %s holds %s, not %s", ledger.ErrMintMismatch, from, src.Mint, mintAddr)
	}
	if err := auth.authorizes(src.Owner); err != nil {
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, burning %d", ledger.ErrInsufficientFunds, from, src.Amount, amount)
	}

	src.Amount -= amount
	mint.Supply -= amount
	if err := storeMint(tx, mintAddr, mint); err != nil {
		return err
	}
	return storeAccount(tx, from, src)
}

// AssociatedAddress is the canonical token account of owner for mint.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}
