package types

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePool() *PoolState {
	key := func() solana.PublicKey { return solana.NewWallet().PublicKey() }
	return &PoolState{
		Version:             PoolStateVersion,
		Initialized:         true,
		AuthorityBump:       254,
		PoolBump:            253,
		AssetA:              key(),
		AssetB:              key(),
		VaultA:              key(),
		VaultB:              key(),
		ShareMint:           key(),
		Authority:           key(),
		Admin:               key(),
		FeeCollector:        key(),
		FeeRateBps:          30,
		ProtocolFeeShareBps: 5000,
		TotalFeesA:          123,
		TotalFeesB:          1 << 60,
	}
}

func TestPoolStateLayout(t *testing.T) {
	p := samplePool()
	data := p.Encode()
	require.Len(t, data, PoolStateSize)
	assert.Equal(t, 320, PoolStateSize)
	assert.Equal(t, PoolDiscriminator, data[:8])
	assert.Equal(t, PoolStateVersion, data[8])
	assert.Equal(t, p.AssetA[:], data[12:44])

	decoded, err := DecodePoolState(data)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodePoolStateRejects(t *testing.T) {
	good := samplePool().Encode()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:PoolStateSize-1] }},
		{"foreign discriminator", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"version zero", func(b []byte) []byte { b[8] = 0; return b }},
		{"newer version", func(b []byte) []byte { b[8] = PoolStateVersion + 1; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), good...)
			_, err := DecodePoolState(tt.mutate(data))
			assert.Error(t, err)
		})
	}
}

func TestPoolDirectionHelpers(t *testing.T) {
	p := samplePool()

	in, out := p.Vaults(AToB)
	assert.Equal(t, []solana.PublicKey{p.VaultA, p.VaultB}, []solana.PublicKey{in, out})
	in, out = p.Vaults(BToA)
	assert.Equal(t, []solana.PublicKey{p.VaultB, p.VaultA}, []solana.PublicKey{in, out})

	in, out = p.Mints(BToA)
	assert.Equal(t, []solana.PublicKey{p.AssetB, p.AssetA}, []solana.PublicKey{in, out})

	assert.True(t, p.HasFeeCollector())
	p.ProtocolFeeShareBps = 0
	assert.False(t, p.HasFeeCollector())
	p.ProtocolFeeShareBps = 1
	p.FeeCollector = solana.PublicKey{}
	assert.False(t, p.HasFeeCollector())
}
