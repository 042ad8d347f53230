package server

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/rovshanmuradov/token-swap/internal/wallet"
)

// NewNonce returns a random nonce for one submission.
func NewNonce() uint64 {
	id := uuid.New()
	return binary.LittleEndian.Uint64(id[:8])
}

// NewInstructionRequest encodes ix for POST /v1/instructions and signs it
// together with nonce by every given wallet. The server accepts a signed
// (instruction, nonce) pair once.
func NewInstructionRequest(ix *solana.GenericInstruction, nonce uint64, signers ...*wallet.Wallet) (*InstructionRequest, error) {
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to encode instruction: %w", err)
	}
	req := &InstructionRequest{
		ProgramID: ix.ProgramID().String(),
		Data:      base58.Encode(data),
		Nonce:     nonce,
	}
	for _, m := range ix.Accounts() {
		req.Accounts = append(req.Accounts, AccountMetaJSON{
			PublicKey:  m.PublicKey.String(),
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
		})
	}
	for _, w := range signers {
		sig, err := w.SignInstruction(ix, nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to sign with %s: %w", w.PublicKey, err)
		}
		req.Signatures = append(req.Signatures, SignatureJSON{PublicKey: w.PublicKey.String(), Signature: sig.String()})
	}
	return req, nil
}
