package types

import (
	"bytes"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token-swap/internal/utils/binary"
)

// Instruction discriminators: sha256("global:<name>")[:8].
var (
	InitializePoolDiscriminator  = []byte{95, 180, 10, 172, 84, 174, 232, 40}
	AddLiquidityDiscriminator    = []byte{181, 157, 89, 67, 143, 182, 52, 72}
	RemoveLiquidityDiscriminator = []byte{80, 85, 209, 72, 24, 206, 177, 108}
	SwapDiscriminator            = []byte{248, 198, 158, 145, 225, 117, 135, 200}
)

const (
	initializePoolDataSize  = 8 + 2 + 2 + 32
	addLiquidityDataSize    = 8 + 8 + 8 + 8
	removeLiquidityDataSize = 8 + 8 + 8 + 8
	swapDataSize            = 8 + 1 + 8 + 8
)

// InitializePoolRequest creates the record, vaults and share mint for a pair.
type InitializePoolRequest struct {
	Payer     solana.PublicKey // signer, recorded as admin
	Pool      solana.PublicKey
	MintA     solana.PublicKey
	MintB     solana.PublicKey
	VaultA    solana.PublicKey
	VaultB    solana.PublicKey
	ShareMint solana.PublicKey
	Authority solana.PublicKey

	FeeRateBps          uint16
	ProtocolFeeShareBps uint16
	FeeCollector        solana.PublicKey
}

// LiquidityAccounts are the accounts shared by add- and remove-liquidity.
type LiquidityAccounts struct {
	Owner      solana.PublicKey // signer
	Pool       solana.PublicKey
	Authority  solana.PublicKey
	VaultA     solana.PublicKey
	VaultB     solana.PublicKey
	ShareMint  solana.PublicKey
	UserTokenA solana.PublicKey
	UserTokenB solana.PublicKey
	UserShares solana.PublicKey
}

// AddLiquidityRequest deposits a proportional pair and mints shares.
type AddLiquidityRequest struct {
	LiquidityAccounts
	AmountA      uint64
	AmountB      uint64
	MinSharesOut uint64
}

// RemoveLiquidityRequest burns shares for a pro-rata cut of both reserves.
type RemoveLiquidityRequest struct {
	LiquidityAccounts
	SharesIn   uint64
	MinAmountA uint64
	MinAmountB uint64
}

// SwapRequest trades one pooled asset for the other.
type SwapRequest struct {
	Owner      solana.PublicKey // signer
	Pool       solana.PublicKey
	Authority  solana.PublicKey
	VaultA     solana.PublicKey
	VaultB     solana.PublicKey
	UserTokenA solana.PublicKey
	UserTokenB solana.PublicKey
	FeeAccount solana.PublicKey // collector token account for the input asset; zero if none

	Direction    Direction
	AmountIn     uint64
	MinAmountOut uint64
}

// Keys lists every account the request may read or write.
func (r *InitializePoolRequest) Keys() []solana.PublicKey {
	return compactKeys(r.Pool, r.MintA, r.MintB, r.VaultA, r.VaultB, r.ShareMint)
}

func (a *LiquidityAccounts) Keys() []solana.PublicKey {
	return compactKeys(a.Pool, a.VaultA, a.VaultB, a.ShareMint, a.UserTokenA, a.UserTokenB, a.UserShares)
}

func (r *SwapRequest) Keys() []solana.PublicKey {
	return compactKeys(r.Pool, r.VaultA, r.VaultB, r.UserTokenA, r.UserTokenB, r.FeeAccount)
}

func compactKeys(keys ...solana.PublicKey) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(keys))
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	for _, k := range keys {
		if k.IsZero() {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Instruction builds the wire instruction for programID.
func (r *InitializePoolRequest) Instruction(programID solana.PublicKey) *solana.GenericInstruction {
	w := binary.NewWriter(initializePoolDataSize)
	w.Raw(InitializePoolDiscriminator)
	w.Uint16(r.FeeRateBps)
	w.Uint16(r.ProtocolFeeShareBps)
	w.PubKey(r.FeeCollector)

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(r.Payer, true, true),
		solana.NewAccountMeta(r.Pool, true, false),
		solana.NewAccountMeta(r.MintA, false, false),
		solana.NewAccountMeta(r.MintB, false, false),
		solana.NewAccountMeta(r.VaultA, true, false),
		solana.NewAccountMeta(r.VaultB, true, false),
		solana.NewAccountMeta(r.ShareMint, true, false),
		solana.NewAccountMeta(r.Authority, false, false),
	}, w.Bytes())
}

func (a *LiquidityAccounts) metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Owner, false, true),
		solana.NewAccountMeta(a.Pool, true, false),
		solana.NewAccountMeta(a.Authority, false, false),
		solana.NewAccountMeta(a.VaultA, true, false),
		solana.NewAccountMeta(a.VaultB, true, false),
		solana.NewAccountMeta(a.ShareMint, true, false),
		solana.NewAccountMeta(a.UserTokenA, true, false),
		solana.NewAccountMeta(a.UserTokenB, true, false),
		solana.NewAccountMeta(a.UserShares, true, false),
	}
}

func (r *AddLiquidityRequest) Instruction(programID solana.PublicKey) *solana.GenericInstruction {
	w := binary.NewWriter(addLiquidityDataSize)
	w.Raw(AddLiquidityDiscriminator)
	w.Uint64(r.AmountA)
	w.Uint64(r.AmountB)
	w.Uint64(r.MinSharesOut)
	return solana.NewInstruction(programID, r.metas(), w.Bytes())
}

func (r *RemoveLiquidityRequest) Instruction(programID solana.PublicKey) *solana.GenericInstruction {
	w := binary.NewWriter(removeLiquidityDataSize)
	w.Raw(RemoveLiquidityDiscriminator)
	w.Uint64(r.SharesIn)
	w.Uint64(r.MinAmountA)
	w.Uint64(r.MinAmountB)
	return solana.NewInstruction(programID, r.metas(), w.Bytes())
}

func (r *SwapRequest) Instruction(programID solana.PublicKey) *solana.GenericInstruction {
	w := binary.NewWriter(swapDataSize)
	w.Raw(SwapDiscriminator)
	w.Uint8(uint8(r.Direction))
	w.Uint64(r.AmountIn)
	w.Uint64(r.MinAmountOut)

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(r.Owner, false, true),
		solana.NewAccountMeta(r.Pool, true, false),
		solana.NewAccountMeta(r.Authority, false, false),
		solana.NewAccountMeta(r.VaultA, true, false),
		solana.NewAccountMeta(r.VaultB, true, false),
		solana.NewAccountMeta(r.UserTokenA, true, false),
		solana.NewAccountMeta(r.UserTokenB, true, false),
		solana.NewAccountMeta(r.FeeAccount, true, false),
	}, w.Bytes())
}

// DecodeInstruction turns raw instruction data plus its ordered accounts back
// into one of the typed requests (as a pointer).
func DecodeInstruction(accounts []*solana.AccountMeta, data []byte) (interface{}, error) {
	if len(data) < 8 {
		return nil, ErrInvalidInstruction.Wrap("instruction data shorter than discriminator")
	}
	disc, r := data[:8], binary.NewReader(data[8:])

	switch {
	case bytes.Equal(disc, InitializePoolDiscriminator):
		keys, err := accountKeys(accounts, 8)
		if err != nil {
			return nil, err
		}
		req := &InitializePoolRequest{
			Payer: keys[0], Pool: keys[1], MintA: keys[2], MintB: keys[3],
			VaultA: keys[4], VaultB: keys[5], ShareMint: keys[6], Authority: keys[7],
		}
		req.FeeRateBps = r.Uint16()
		req.ProtocolFeeShareBps = r.Uint16()
		req.FeeCollector = r.PubKey()
		if err := argsErr(r); err != nil {
			return nil, err
		}
		return req, nil

	case bytes.Equal(disc, AddLiquidityDiscriminator):
		acc, err := liquidityAccounts(accounts)
		if err != nil {
			return nil, err
		}
		req := &AddLiquidityRequest{LiquidityAccounts: acc}
		req.AmountA = r.Uint64()
		req.AmountB = r.Uint64()
		req.MinSharesOut = r.Uint64()
		if err := argsErr(r); err != nil {
			return nil, err
		}
		return req, nil

	case bytes.Equal(disc, RemoveLiquidityDiscriminator):
		acc, err := liquidityAccounts(accounts)
		if err != nil {
			return nil, err
		}
		req := &RemoveLiquidityRequest{LiquidityAccounts: acc}
		req.SharesIn = r.Uint64()
		req.MinAmountA = r.Uint64()
		req.MinAmountB = r.Uint64()
		if err := argsErr(r); err != nil {
			return nil, err
		}
		return req, nil

	case bytes.Equal(disc, SwapDiscriminator):
		keys, err := accountKeys(accounts, 8)
		if err != nil {
			return nil, err
		}
		req := &SwapRequest{
			Owner: keys[0], Pool: keys[1], Authority: keys[2], VaultA: keys[3], VaultB: keys[4],
			UserTokenA: keys[5], UserTokenB: keys[6], FeeAccount: keys[7],
		}
		req.Direction = Direction(r.Uint8())
		req.AmountIn = r.Uint64()
		req.MinAmountOut = r.Uint64()
		if err := argsErr(r); err != nil {
			return nil, err
		}
		if !req.Direction.Valid() {
			return nil, ErrInvalidInstruction.Wrapf("unknown swap direction %d", req.Direction)
		}
		return req, nil

	default:
		return nil, ErrInvalidInstruction.Wrapf("unknown discriminator %v", disc)
	}
}

func liquidityAccounts(accounts []*solana.AccountMeta) (LiquidityAccounts, error) {
	keys, err := accountKeys(accounts, 9)
	if err != nil {
		return LiquidityAccounts{}, err
	}
	return LiquidityAccounts{
		Owner: keys[0], Pool: keys[1], Authority: keys[2], VaultA: keys[3], VaultB: keys[4],
		ShareMint: keys[5], UserTokenA: keys[6], UserTokenB: keys[7], UserShares: keys[8],
	}, nil
}

func accountKeys(accounts []*solana.AccountMeta, want int) ([]solana.PublicKey, error) {
	if len(accounts) < want {
		return nil, ErrInvalidInstruction.Wrapf("expected %d accounts, got %d", want, len(accounts))
	}
	keys := make([]solana.PublicKey, want)
	for i := 0; i < want; i++ {
		if accounts[i] == nil {
			return nil, ErrInvalidInstruction.Wrapf("account %d is nil", i)
		}
		keys[i] = accounts[i].PublicKey
	}
	return keys, nil
}

func argsErr(r *binary.Reader) error {
	if err := r.Err(); err != nil {
		return ErrInvalidInstruction.Wrap(err.Error())
	}
	return nil
}

// SigningMessage is the byte string signers commit to for one instruction:
// program id, each account meta (key + signer/writable flags), data, then the
// caller's nonce. The nonce makes two otherwise identical instructions
// distinct; a message is accepted once.
func SigningMessage(ix solana.Instruction, nonce uint64) ([]byte, error) {
	data, err := ix.Data()
	if err != nil {
		return nil, ErrInvalidInstruction.Wrapf("instruction data: %v", err)
	}
	accounts := ix.Accounts()
	if len(accounts) > 255 {
		return nil, ErrInvalidInstruction.Wrapf("too many accounts: %d", len(accounts))
	}

	w := binary.NewWriter(32 + 1 + len(accounts)*33 + len(data) + 8)
	w.PubKey(ix.ProgramID())
	w.Uint8(uint8(len(accounts)))
	for _, meta := range accounts {
		var flags uint8
		if meta.IsSigner {
			flags |= 1
		}
		if meta.IsWritable {
			flags |= 2
		}
		w.PubKey(meta.PublicKey)
		w.Uint8(flags)
	}
	w.Raw(data)
	w.Uint64(nonce)
	return w.Bytes(), nil
}
