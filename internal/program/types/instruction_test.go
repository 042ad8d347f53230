package types

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = solana.MustPublicKeyFromBase58("SwapsVeCiPHMUAtzQWZw7RjsKjgCPFwS7TmGgeCALpo")

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

func sampleLiquidityAccounts() LiquidityAccounts {
	return LiquidityAccounts{
		Owner: newKey(), Pool: newKey(), Authority: newKey(), VaultA: newKey(), VaultB: newKey(),
		ShareMint: newKey(), UserTokenA: newKey(), UserTokenB: newKey(), UserShares: newKey(),
	}
}

func decode(t *testing.T, ix *solana.GenericInstruction) interface{} {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	out, err := DecodeInstruction(ix.Accounts(), data)
	require.NoError(t, err)
	return out
}

func TestInstructionEncoding(t *testing.T) {
	t.Run("initialize pool", func(t *testing.T) {
		req := &InitializePoolRequest{
			Payer: newKey(), Pool: newKey(), MintA: newKey(), MintB: newKey(),
			VaultA: newKey(), VaultB: newKey(), ShareMint: newKey(), Authority: newKey(),
			FeeRateBps: 30, ProtocolFeeShareBps: 2500, FeeCollector: newKey(),
		}
		ix := req.Instruction(testProgram)
		assert.True(t, ix.Accounts()[0].IsSigner)
		assert.Equal(t, req, decode(t, ix))
	})

	t.Run("add liquidity", func(t *testing.T) {
		req := &AddLiquidityRequest{LiquidityAccounts: sampleLiquidityAccounts(), AmountA: 1, AmountB: 2, MinSharesOut: 3}
		assert.Equal(t, req, decode(t, req.Instruction(testProgram)))
	})

	t.Run("remove liquidity", func(t *testing.T) {
		req := &RemoveLiquidityRequest{LiquidityAccounts: sampleLiquidityAccounts(), SharesIn: 10, MinAmountA: 4, MinAmountB: 5}
		assert.Equal(t, req, decode(t, req.Instruction(testProgram)))
	})

	t.Run("swap without collector", func(t *testing.T) {
		req := &SwapRequest{
			Owner: newKey(), Pool: newKey(), Authority: newKey(), VaultA: newKey(), VaultB: newKey(),
			UserTokenA: newKey(), UserTokenB: newKey(),
			Direction: BToA, AmountIn: 1_000, MinAmountOut: 990,
		}
		ix := req.Instruction(testProgram)
		data, err := ix.Data()
		require.NoError(t, err)
		assert.Equal(t, SwapDiscriminator, data[:8])
		assert.Len(t, data, swapDataSize)
		assert.Equal(t, req, decode(t, ix))
	})
}

func TestDecodeInstructionRejects(t *testing.T) {
	swap := (&SwapRequest{Owner: newKey(), Pool: newKey(), AmountIn: 1}).Instruction(testProgram)
	data, err := swap.Data()
	require.NoError(t, err)
	accounts := swap.Accounts()

	badDirection := append([]byte(nil), data...)
	badDirection[8] = 2
	unknown := append([]byte(nil), data...)
	unknown[0] ^= 0xff

	tests := []struct {
		name     string
		accounts []*solana.AccountMeta
		data     []byte
	}{
		{"no discriminator", accounts, data[:7]},
		{"unknown discriminator", accounts, unknown},
		{"truncated args", accounts, data[:len(data)-1]},
		{"missing accounts", accounts[:7], data},
		{"bad direction", accounts, badDirection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInstruction(tt.accounts, tt.data)
			assert.ErrorIs(t, err, ErrInvalidInstruction)
		})
	}
}

func TestKeysSkipZeroAndDuplicates(t *testing.T) {
	vault := newKey()
	req := &SwapRequest{Pool: newKey(), VaultA: vault, VaultB: vault, UserTokenA: newKey(), UserTokenB: newKey()}
	keys := req.Keys()
	assert.Len(t, keys, 4)
	assert.NotContains(t, keys, solana.PublicKey{})
}

func TestSigningMessageCoversEverything(t *testing.T) {
	req := &SwapRequest{Owner: newKey(), Pool: newKey(), AmountIn: 5, MinAmountOut: 1}
	base, err := SigningMessage(req.Instruction(testProgram), 1)
	require.NoError(t, err)

	other := *req
	other.MinAmountOut = 2
	changedData, err := SigningMessage(other.Instruction(testProgram), 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, changedData)

	changedProgram, err := SigningMessage(req.Instruction(newKey()), 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, changedProgram)

	ix := req.Instruction(testProgram)
	ix.AccountValues[1].IsWritable = false
	changedFlags, err := SigningMessage(ix, 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, changedFlags)

	changedNonce, err := SigningMessage(req.Instruction(testProgram), 2)
	require.NoError(t, err)
	assert.NotEqual(t, base, changedNonce)
}

func TestErrorTaxonomy(t *testing.T) {
	err := ErrSlippageExceeded.Wrapf("got %d", 5)
	assert.Equal(t, "SlippageExceeded", Kind(err))
	assert.Equal(t, uint32(6005), Code(err))

	wrapped := errors.Join(errors.New("context"), ErrMissingSignature)
	assert.Equal(t, "MissingSignature", Kind(wrapped))
	assert.Equal(t, uint32(6010), Code(wrapped))

	assert.Empty(t, Kind(errors.New("plain")))
	assert.Zero(t, Code(nil))
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"a_to_b": AToB, "B_TO_A": BToA, " atob ": AToB, "btoa": BToA} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidInstruction)
	assert.Equal(t, "b_to_a", BToA.String())
	assert.False(t, Direction(2).Valid())
}
