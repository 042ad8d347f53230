// internal/ledger/codec.go
package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MarshalAccount packs owner and data for backends that store opaque values.
func MarshalAccount(acc *Account) []byte {
	out := make([]byte, 0, solana.PublicKeyLength+len(acc.Data))
	out = append(out, acc.Owner[:]...)
	return append(out, acc.Data...)
}

// UnmarshalAccount is the inverse of MarshalAccount.
func UnmarshalAccount(addr solana.PublicKey, raw []byte) (*Account, error) {
	if len(raw) < solana.PublicKeyLength {
		return nil, fmt.Errorf("account %s: stored value too short (%d bytes)", addr, len(raw))
	}
	data := make([]byte, len(raw)-solana.PublicKeyLength)
	copy(data, raw[solana.PublicKeyLength:])
	return &Account{
		Address: addr,
		Owner:   solana.PublicKeyFromBytes(raw[:solana.PublicKeyLength]),
		Data:    data,
	}, nil
}
