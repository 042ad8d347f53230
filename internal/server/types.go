package server

import (
	"github.com/gagliardetto/solana-go"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`                  // Human-readable error message
	Code    int    `json:"code"`                   // HTTP status code
	Kind    string `json:"kind,omitempty"`         // Program error kind, e.g. SlippageExceeded
	Program uint32 `json:"program_code,omitempty"` // Registered program error code
	Details any    `json:"details,omitempty"`      // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK        bool   `json:"ok"`
	ProgramID string `json:"program_id"`
}

// PairResponse lists every derived address of an asset pair.
type PairResponse struct {
	AssetA        solana.PublicKey `json:"asset_a"`
	AssetB        solana.PublicKey `json:"asset_b"`
	Authority     solana.PublicKey `json:"authority"`
	AuthorityBump uint8            `json:"authority_bump"`
	Pool          solana.PublicKey `json:"pool"`
	VaultA        solana.PublicKey `json:"vault_a"`
	VaultB        solana.PublicKey `json:"vault_b"`
	ShareMint     solana.PublicKey `json:"share_mint"`
}

// AccountMetaJSON is one account of a submitted instruction.
type AccountMetaJSON struct {
	PublicKey  string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// SignatureJSON is a base58 ed25519 signature over the instruction message.
type SignatureJSON struct {
	PublicKey string `json:"pubkey"`
	Signature string `json:"signature"`
}

// InstructionRequest carries one program instruction and its signatures.
type InstructionRequest struct {
	ProgramID  string            `json:"program_id,omitempty"` // defaults to the served program
	Accounts   []AccountMetaJSON `json:"accounts"`
	Data       string            `json:"data"` // base58
	Nonce      uint64            `json:"nonce"`
	Signatures []SignatureJSON   `json:"signatures"`
}

// TokenAccountResponse describes one token account held by the host ledger.
type TokenAccountResponse struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
	Amount  uint64           `json:"amount"`
}

// CreateMintRequest asks the faucet for a new mint.
type CreateMintRequest struct {
	Decimals uint8 `json:"decimals"`
}

// CreateMintResponse returns the new mint address.
type CreateMintResponse struct {
	Mint solana.PublicKey `json:"mint"`
}

// OpenAccountRequest opens the associated token account of owner for mint.
type OpenAccountRequest struct {
	Owner string `json:"owner"`
	Mint  string `json:"mint"`
}

// FundRequest mints amount of mint into owner's associated account.
type FundRequest struct {
	Owner  string `json:"owner"`
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}
