// internal/program/amm/swap.go
package amm

import (
	"cosmossdk.io/math"

	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// SwapQuote is the full breakdown of one constant-product swap.
type SwapQuote struct {
	AmountIn     uint64 `json:"amount_in"`
	Fee          uint64 `json:"fee"`          // floor(amount_in * fee_bps / 10000)
	ProtocolFee  uint64 `json:"protocol_fee"` // part of Fee routed to the collector
	NetInput     uint64 `json:"net_input"`    // amount_in - Fee; the only input that moves the price
	Output       uint64 `json:"output"`
	VaultDeposit uint64 `json:"vault_deposit"` // amount_in - ProtocolFee

	ReserveInAfter  uint64         `json:"reserve_in_after"`
	ReserveOutAfter uint64         `json:"reserve_out_after"`
	PriceImpact     math.LegacyDec `json:"price_impact"`
}

// ComputeSwap prices amountIn against (reserveIn, reserveOut).
//
// output = floor(reserveOut * net / (reserveIn + net)), net = amountIn - fee.
// The fee still lands in the input vault (minus the protocol cut), so the
// product of the reserves can only grow.
func ComputeSwap(reserveIn, reserveOut, amountIn uint64, feeBps, protocolShareBps uint16) (*SwapQuote, error) {
	if amountIn == 0 {
		return nil, types.ErrInvalidAmount.Wrap("swap input must be positive")
	}
	if feeBps > types.BasisPoints {
		return nil, types.ErrFeeTooHigh.Wrapf("fee %d bps", feeBps)
	}
	if protocolShareBps > types.BasisPoints {
		return nil, types.ErrFeeTooHigh.Wrapf("protocol share %d bps", protocolShareBps)
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, types.ErrInsufficientReserves.Wrapf("reserves %d/%d", reserveIn, reserveOut)
	}

	fee, err := mulDiv(amountIn, uint64(feeBps), types.BasisPoints, "fee")
	if err != nil {
		return nil, err
	}
	protocolFee, err := mulDiv(fee, uint64(protocolShareBps), types.BasisPoints, "protocol fee")
	if err != nil {
		return nil, err
	}
	net := amountIn - fee

	denominator := toInt(reserveIn).Add(toInt(net))
	output, err := toUint64(toInt(reserveOut).Mul(toInt(net)).Quo(denominator), "swap output")
	if err != nil {
		return nil, err
	}
	if output >= reserveOut {
		return nil, types.ErrInsufficientReserves.Wrapf("output %d would drain reserve %d", output, reserveOut)
	}

	q := &SwapQuote{
		AmountIn:        amountIn,
		Fee:             fee,
		ProtocolFee:     protocolFee,
		NetInput:        net,
		Output:          output,
		VaultDeposit:    amountIn - protocolFee,
		ReserveOutAfter: reserveOut - output,
		PriceImpact:     PriceImpact(reserveIn, reserveOut, net, output),
	}
	if q.ReserveInAfter, err = checkedAdd(reserveIn, q.VaultDeposit, "input reserve"); err != nil {
		return nil, err
	}
	if err := CheckProduct(reserveIn, reserveOut, q.ReserveInAfter, q.ReserveOutAfter); err != nil {
		return nil, err
	}
	return q, nil
}

// CheckProduct enforces reserveIn' * reserveOut' >= reserveIn * reserveOut.
func CheckProduct(reserveIn, reserveOut, reserveInAfter, reserveOutAfter uint64) error {
	before := toInt(reserveIn).Mul(toInt(reserveOut))
	after := toInt(reserveInAfter).Mul(toInt(reserveOutAfter))
	if after.LT(before) {
		return types.ErrInsufficientReserves.Wrapf("constant product decreased: %s -> %s", before, after)
	}
	return nil
}

// PriceImpact is 1 - execution/spot, i.e. 1 - output*reserveIn/(net*reserveOut).
func PriceImpact(reserveIn, reserveOut, net, output uint64) math.LegacyDec {
	if net == 0 || reserveIn == 0 || reserveOut == 0 {
		return math.LegacyZeroDec()
	}
	exec := math.LegacyNewDecFromInt(toInt(output).Mul(toInt(reserveIn)))
	spot := math.LegacyNewDecFromInt(toInt(net).Mul(toInt(reserveOut)))
	return math.LegacyOneDec().Sub(exec.Quo(spot))
}
