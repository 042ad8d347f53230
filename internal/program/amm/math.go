// internal/program/amm/math.go
package amm

import (
	"math/big"

	"cosmossdk.io/math"

	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

func toInt(v uint64) math.Int {
	return math.NewIntFromUint64(v)
}

// toUint64 narrows a widened result back to the ledger's amount type.
func toUint64(v math.Int, what string) (uint64, error) {
	if v.IsNegative() || !v.IsUint64() {
		return 0, types.ErrArithmeticOverflow.Wrapf("%s %s does not fit in u64", what, v)
	}
	return v.Uint64(), nil
}

// mulDiv returns floor(a*b/c).
func mulDiv(a, b, c uint64, what string) (uint64, error) {
	if c == 0 {
		return 0, types.ErrArithmeticOverflow.Wrapf("%s: division by zero", what)
	}
	return toUint64(toInt(a).Mul(toInt(b)).Quo(toInt(c)), what)
}

// mulDivCeil returns ceil(a*b/c).
func mulDivCeil(a, b, c uint64, what string) (uint64, error) {
	if c == 0 {
		return 0, types.ErrArithmeticOverflow.Wrapf("%s: division by zero", what)
	}
	num := toInt(a).Mul(toInt(b))
	den := toInt(c)
	q := num.Quo(den)
	if !num.Mod(den).IsZero() {
		q = q.Add(math.OneInt())
	}
	return toUint64(q, what)
}

func checkedAdd(a, b uint64, what string) (uint64, error) {
	return toUint64(toInt(a).Add(toInt(b)), what)
}

// isqrt returns floor(sqrt(a*b)); the product is at most 128 bits.
func isqrt(a, b uint64) uint64 {
	p := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return new(big.Int).Sqrt(p).Uint64()
}
