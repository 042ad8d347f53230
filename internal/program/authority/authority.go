// internal/program/authority/authority.go
package authority

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// Seed prefixes. Changing any of them moves every derived address.
const (
	AuthoritySeed = "pool_authority"
	PoolSeed      = "pool"
	VaultSeed     = "vault"
	ShareMintSeed = "lp_mint"
	ReceiptSeed   = "receipt"
)

// Addresses collects every deterministic address of one asset pair.
type Addresses struct {
	Authority     solana.PublicKey
	AuthorityBump uint8
	Pool          solana.PublicKey
	PoolBump      uint8
	VaultA        solana.PublicKey
	VaultB        solana.PublicKey
	ShareMint     solana.PublicKey
}

// Seeds returns the signer seeds of the pool authority, bump included.
func Seeds(mintA, mintB solana.PublicKey, bump uint8) [][]byte {
	return [][]byte{[]byte(AuthoritySeed), mintA.Bytes(), mintB.Bytes(), {bump}}
}

// Derive returns the keyless authority for a pair and the bump that puts it
// off the ed25519 curve.
func Derive(programID, mintA, mintB solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(AuthoritySeed), mintA.Bytes(), mintB.Bytes()},
		programID,
	)
}

// DerivePool вычисляет адрес записи пула для пары.
func DerivePool(programID, mintA, mintB solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(PoolSeed), mintA.Bytes(), mintB.Bytes()},
		programID,
	)
}

// DeriveVault вычисляет адрес хранилища резерва для одного из активов пула.
func DeriveVault(programID, pool, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(VaultSeed), pool.Bytes(), mint.Bytes()},
		programID,
	)
	return addr, err
}

func DeriveShareMint(programID, pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(ShareMintSeed), pool.Bytes()},
		programID,
	)
	return addr, err
}

// DeriveReceipt returns the account that marks a signed message as
// processed. The message is hashed to fit a single seed.
func DeriveReceipt(programID solana.PublicKey, message []byte) (solana.PublicKey, error) {
	digest := sha256.Sum256(message)
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(ReceiptSeed), digest[:]},
		programID,
	)
	return addr, err
}

// DeriveAll resolves the full address set for a pair.
func DeriveAll(programID, mintA, mintB solana.PublicKey) (*Addresses, error) {
	var (
		out Addresses
		err error
	)
	if out.Authority, out.AuthorityBump, err = Derive(programID, mintA, mintB); err != nil {
		return nil, fmt.Errorf("failed to derive pool authority: %w", err)
	}
	if out.Pool, out.PoolBump, err = DerivePool(programID, mintA, mintB); err != nil {
		return nil, fmt.Errorf("failed to derive pool address: %w", err)
	}
	if out.VaultA, err = DeriveVault(programID, out.Pool, mintA); err != nil {
		return nil, fmt.Errorf("failed to derive vault A: %w", err)
	}
	if out.VaultB, err = DeriveVault(programID, out.Pool, mintB); err != nil {
		return nil, fmt.Errorf("failed to derive vault B: %w", err)
	}
	if out.ShareMint, err = DeriveShareMint(programID, out.Pool); err != nil {
		return nil, fmt.Errorf("failed to derive share mint: %w", err)
	}
	return &out, nil
}

// Verify recomputes the authority from the record's pair and stored bump.
func Verify(programID solana.PublicKey, pool *types.PoolState) error {
	addr, err := solana.CreateProgramAddress(Seeds(pool.AssetA, pool.AssetB, pool.AuthorityBump), programID)
	if err != nil {
		return types.ErrAuthorityMismatch.Wrapf("bump %d does not derive an authority: %v", pool.AuthorityBump, err)
	}
	if !addr.Equals(pool.Authority) {
		return types.ErrAuthorityMismatch.Wrapf("stored %s, derived %s", pool.Authority, addr)
	}
	return nil
}
