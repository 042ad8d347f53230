// internal/program/amm/liquidity.go
package amm

import (
	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// DepositQuote describes an accepted deposit.
type DepositQuote struct {
	AmountA uint64 `json:"amount_a"`
	AmountB uint64 `json:"amount_b"`
	Shares  uint64 `json:"shares"`
	Initial bool   `json:"initial"` // first deposit into an empty share supply
}

// InitialShares is floor(sqrt(amountA * amountB)).
func InitialShares(amountA, amountB uint64) (uint64, error) {
	shares := isqrt(amountA, amountB)
	if shares == 0 {
		return 0, types.ErrInsufficientReserves.Wrapf("deposit %d/%d mints no shares", amountA, amountB)
	}
	return shares, nil
}

// ComputeDeposit sizes a deposit against the current reserves.
//
// Once shares exist the deposit has to match the reserve ratio exactly: the
// side that fits is the anchor and the other side must equal the rounded-up
// counterpart. Anything else is refused rather than donated.
func ComputeDeposit(reserveA, reserveB, totalShares, amountA, amountB, minShares uint64) (*DepositQuote, error) {
	if amountA == 0 || amountB == 0 {
		return nil, types.ErrInvalidAmount.Wrap("both deposit amounts must be positive")
	}

	if totalShares == 0 {
		shares, err := InitialShares(amountA, amountB)
		if err != nil {
			return nil, err
		}
		if shares < minShares {
			return nil, types.ErrSlippageExceeded.Wrapf("minted %d < min %d", shares, minShares)
		}
		return finishDeposit(reserveA, reserveB, totalShares, &DepositQuote{
			AmountA: amountA, AmountB: amountB, Shares: shares, Initial: true,
		})
	}

	if reserveA == 0 || reserveB == 0 {
		return nil, types.ErrInsufficientReserves.Wrapf("shares %d outstanding over reserves %d/%d", totalShares, reserveA, reserveB)
	}

	requiredB, err := mulDivCeil(amountA, reserveB, reserveA, "required B")
	if err != nil {
		return nil, err
	}

	var shares uint64
	if requiredB <= amountB {
		if requiredB != amountB {
			return nil, types.ErrSlippageExceeded.Wrapf("deposit of %d A needs exactly %d B, got %d", amountA, requiredB, amountB)
		}
		if shares, err = mulDiv(totalShares, amountA, reserveA, "shares"); err != nil {
			return nil, err
		}
	} else {
		requiredA, err := mulDivCeil(amountB, reserveA, reserveB, "required A")
		if err != nil {
			return nil, err
		}
		if requiredA != amountA {
			return nil, types.ErrSlippageExceeded.Wrapf("deposit of %d B needs exactly %d A, got %d", amountB, requiredA, amountA)
		}
		if shares, err = mulDiv(totalShares, amountB, reserveB, "shares"); err != nil {
			return nil, err
		}
	}

	if shares == 0 {
		return nil, types.ErrSlippageExceeded.Wrap("deposit too small to mint a share")
	}
	if shares < minShares {
		return nil, types.ErrSlippageExceeded.Wrapf("minted %d < min %d", shares, minShares)
	}
	return finishDeposit(reserveA, reserveB, totalShares, &DepositQuote{
		AmountA: amountA, AmountB: amountB, Shares: shares,
	})
}

// MatchDeposit returns the B amount that pairs with amountA at the current
// reserve ratio, rounded up.
func MatchDeposit(reserveA, reserveB, amountA uint64) (uint64, error) {
	if amountA == 0 {
		return 0, types.ErrInvalidAmount.Wrap("deposit amount must be positive")
	}
	if reserveA == 0 || reserveB == 0 {
		return 0, types.ErrInsufficientReserves.Wrap("empty pool has no ratio to match")
	}
	return mulDivCeil(amountA, reserveB, reserveA, "required B")
}

func finishDeposit(reserveA, reserveB, totalShares uint64, q *DepositQuote) (*DepositQuote, error) {
	if _, err := checkedAdd(reserveA, q.AmountA, "reserve A"); err != nil {
		return nil, err
	}
	if _, err := checkedAdd(reserveB, q.AmountB, "reserve B"); err != nil {
		return nil, err
	}
	if _, err := checkedAdd(totalShares, q.Shares, "share supply"); err != nil {
		return nil, err
	}
	return q, nil
}

// ComputeWithdraw returns the pro-rata amounts for burning sharesIn.
func ComputeWithdraw(reserveA, reserveB, totalShares, sharesIn, minA, minB uint64) (uint64, uint64, error) {
	if sharesIn == 0 {
		return 0, 0, types.ErrInvalidAmount.Wrap("shares to burn must be positive")
	}
	if sharesIn > totalShares {
		return 0, 0, types.ErrInvalidAmount.Wrapf("burning %d of %d outstanding shares", sharesIn, totalShares)
	}

	amountA, err := mulDiv(reserveA, sharesIn, totalShares, "withdraw A")
	if err != nil {
		return 0, 0, err
	}
	amountB, err := mulDiv(reserveB, sharesIn, totalShares, "withdraw B")
	if err != nil {
		return 0, 0, err
	}

	if amountA < minA {
		return 0, 0, types.ErrSlippageExceeded.Wrapf("A out %d < min %d", amountA, minA)
	}
	if amountB < minB {
		return 0, 0, types.ErrSlippageExceeded.Wrapf("B out %d < min %d", amountB, minB)
	}
	return amountA, amountB, nil
}
