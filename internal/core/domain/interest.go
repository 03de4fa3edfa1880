package domain

import (
	"errors"
	"math"
	"math/big"
)

const (
	// SecondsPerYear uses a fixed 365-day year.
	SecondsPerYear = 365 * 24 * 60 * 60

	// BasisPointDenominator converts basis points to a fraction (10000 = 100%).
	BasisPointDenominator = 10_000

	// MaxRateBps is the rate ceiling enforced by SetRate (50%).
	MaxRateBps int32 = 5_000
)

// ErrAmountOverflow is returned when an accrual or payout computation does
// not fit in an int64.
var ErrAmountOverflow = errors.New("amount overflows int64")

// AccruedInterest computes simple linear interest:
//
//	floor(principal * rateBps * elapsedSeconds / (SecondsPerYear * 10000))
//
// Integer floor division rounds down to the smallest unit, never up, so the
// ledger never owes more than it collects in aggregate rounding. The
// three-term product is taken over big integers; only a result that does not
// fit in an int64 is an error.
func AccruedInterest(principal int64, rateBps int32, elapsedSeconds int64) (int64, error) {
	if principal <= 0 || rateBps <= 0 || elapsedSeconds <= 0 {
		return 0, nil
	}

	num := new(big.Int).SetInt64(principal)
	num.Mul(num, big.NewInt(int64(rateBps)))
	num.Mul(num, big.NewInt(elapsedSeconds))
	num.Quo(num, big.NewInt(int64(SecondsPerYear)*BasisPointDenominator))

	if !num.IsInt64() {
		return 0, ErrAmountOverflow
	}
	return num.Int64(), nil
}

// Payout returns principal plus interest with an explicit overflow check.
func Payout(principal, interest int64) (int64, error) {
	if principal > math.MaxInt64-interest {
		return 0, ErrAmountOverflow
	}
	return principal + interest, nil
}

// ValidRateBps reports whether bps is within [0, MaxRateBps].
func ValidRateBps(bps int32) bool {
	return bps >= 0 && bps <= MaxRateBps
}
