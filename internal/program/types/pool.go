package types

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token-swap/internal/utils/binary"
)

// PoolDiscriminator is sha256("account:SwapPool")[:8].
var PoolDiscriminator = []byte{209, 31, 14, 115, 93, 168, 247, 50}

const (
	// PoolStateVersion is the layout version written by this build.
	PoolStateVersion uint8 = 1

	poolReservedBytes = 32

	// PoolStateSize is the fixed serialized size of a pool record.
	PoolStateSize = 8 + // discriminator
		1 + // version
		1 + // initialized
		1 + // authority_bump
		1 + // pool_bump
		32 + // asset_a
		32 + // asset_b
		32 + // vault_a
		32 + // vault_b
		32 + // share_mint
		32 + // authority
		32 + // admin
		32 + // fee_collector
		2 + // fee_rate_bps
		2 + // protocol_fee_share_bps
		8 + // total_fees_a
		8 + // total_fees_b
		poolReservedBytes
)

// BasisPoints is the denominator for every bps value in the record.
const BasisPoints = 10_000

// PoolState is the persistent record binding one asset pair to its vaults,
// share mint and authority.
type PoolState struct {
	Version             uint8            `json:"version"`
	Initialized         bool             `json:"initialized"`
	AuthorityBump       uint8            `json:"authority_bump"`
	PoolBump            uint8            `json:"pool_bump"`
	AssetA              solana.PublicKey `json:"asset_a"`
	AssetB              solana.PublicKey `json:"asset_b"`
	VaultA              solana.PublicKey `json:"vault_a"`
	VaultB              solana.PublicKey `json:"vault_b"`
	ShareMint           solana.PublicKey `json:"share_mint"`
	Authority           solana.PublicKey `json:"authority"`
	Admin               solana.PublicKey `json:"admin"`
	FeeCollector        solana.PublicKey `json:"fee_collector"` // zero when every fee stays in the vaults
	FeeRateBps          uint16           `json:"fee_rate_bps"`
	ProtocolFeeShareBps uint16           `json:"protocol_fee_share_bps"`
	TotalFeesA          uint64           `json:"total_fees_a"` // lifetime fees charged on A inputs
	TotalFeesB          uint64           `json:"total_fees_b"` // lifetime fees charged on B inputs
}

// HasFeeCollector reports whether part of each swap fee leaves the pool.
func (p *PoolState) HasFeeCollector() bool {
	return !p.FeeCollector.IsZero() && p.ProtocolFeeShareBps > 0
}

// Vaults returns (input vault, output vault) for a swap direction.
func (p *PoolState) Vaults(d Direction) (solana.PublicKey, solana.PublicKey) {
	if d == AToB {
		return p.VaultA, p.VaultB
	}
	return p.VaultB, p.VaultA
}

// Mints returns (input mint, output mint) for a swap direction.
func (p *PoolState) Mints(d Direction) (solana.PublicKey, solana.PublicKey) {
	if d == AToB {
		return p.AssetA, p.AssetB
	}
	return p.AssetB, p.AssetA
}

// Encode serializes the record into its fixed-size layout.
func (p *PoolState) Encode() []byte {
	w := binary.NewWriter(PoolStateSize)
	w.Raw(PoolDiscriminator)
	w.Uint8(p.Version)
	w.Bool(p.Initialized)
	w.Uint8(p.AuthorityBump)
	w.Uint8(p.PoolBump)
	w.PubKey(p.AssetA)
	w.PubKey(p.AssetB)
	w.PubKey(p.VaultA)
	w.PubKey(p.VaultB)
	w.PubKey(p.ShareMint)
	w.PubKey(p.Authority)
	w.PubKey(p.Admin)
	w.PubKey(p.FeeCollector)
	w.Uint16(p.FeeRateBps)
	w.Uint16(p.ProtocolFeeShareBps)
	w.Uint64(p.TotalFeesA)
	w.Uint64(p.TotalFeesB)
	w.Skip(poolReservedBytes)
	return w.Bytes()
}

// DecodePoolState parses a record, rejecting foreign or newer layouts.
func DecodePoolState(data []byte) (*PoolState, error) {
	if len(data) < PoolStateSize {
		return nil, fmt.Errorf("pool data too short: %d < %d", len(data), PoolStateSize)
	}
	if !bytes.Equal(data[:8], PoolDiscriminator) {
		return nil, fmt.Errorf("invalid discriminator for pool account")
	}

	r := binary.NewReader(data[8:])
	p := &PoolState{}
	p.Version = r.Uint8()
	if p.Version == 0 || p.Version > PoolStateVersion {
		return nil, fmt.Errorf("unsupported pool layout version %d", p.Version)
	}
	p.Initialized = r.Bool()
	p.AuthorityBump = r.Uint8()
	p.PoolBump = r.Uint8()
	p.AssetA = r.PubKey()
	p.AssetB = r.PubKey()
	p.VaultA = r.PubKey()
	p.VaultB = r.PubKey()
	p.ShareMint = r.PubKey()
	p.Authority = r.PubKey()
	p.Admin = r.PubKey()
	p.FeeCollector = r.PubKey()
	p.FeeRateBps = r.Uint16()
	p.ProtocolFeeShareBps = r.Uint16()
	p.TotalFeesA = r.Uint64()
	p.TotalFeesB = r.Uint64()
	r.Skip(poolReservedBytes)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// String implements fmt.Stringer for logs.
func (p *PoolState) String() string {
	return fmt.Sprintf(
		"SwapPool{asset_a=%s,asset_b=%s,vault_a=%s,vault_b=%s,share_mint=%s,authority=%s,bump=%d,fee_bps=%d,protocol_share_bps=%d}",
		p.AssetA, p.AssetB, p.VaultA, p.VaultB, p.ShareMint, p.Authority,
		p.AuthorityBump, p.FeeRateBps, p.ProtocolFeeShareBps,
	)
}
