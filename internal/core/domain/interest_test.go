package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccruedInterest_FullYearAtFivePercent(t *testing.T) {
	// 5% on 1,000,000 units over exactly 365 days.
	got, err := AccruedInterest(1_000_000, 500, SecondsPerYear)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), got)
}

func TestAccruedInterest_ZeroElapsed(t *testing.T) {
	got, err := AccruedInterest(1_000_000, 500, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestAccruedInterest_FloorsDown(t *testing.T) {
	// 1 unit at 1 bps for 1 second is far below the smallest unit.
	got, err := AccruedInterest(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	// Half a year at 5% on 999,999: exact value 24999.975 -> 24999.
	got, err = AccruedInterest(999_999, 500, SecondsPerYear/2)
	require.NoError(t, err)
	assert.Equal(t, int64(24_999), got)
}

func TestAccruedInterest_MonotonicInElapsedTime(t *testing.T) {
	prev := int64(-1)
	for _, elapsed := range []int64{0, 1, 60, 3600, 86_400, SecondsPerYear / 2, SecondsPerYear, 3 * SecondsPerYear} {
		got, err := AccruedInterest(123_456_789, 1_250, elapsed)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev, "accrual must be nondecreasing in elapsed time")
		prev = got
	}
}

func TestAccruedInterest_LargePrincipalNoIntermediateOverflow(t *testing.T) {
	// principal * rateBps * elapsed overflows int64 as a naive product; the
	// big-integer path must still return the exact floored quotient.
	principal := int64(math.MaxInt64 / 2)
	got, err := AccruedInterest(principal, 1, SecondsPerYear)
	require.NoError(t, err)
	assert.Equal(t, principal/BasisPointDenominator, got)
}

func TestAccruedInterest_ResultOverflow(t *testing.T) {
	// Max principal at max rate over millennia exceeds int64.
	_, err := AccruedInterest(math.MaxInt64, MaxRateBps, math.MaxInt64)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestAccruedInterest_ClampedInputs(t *testing.T) {
	got, err := AccruedInterest(0, 500, SecondsPerYear)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	got, err = AccruedInterest(1_000, 0, SecondsPerYear)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestPayout(t *testing.T) {
	got, err := Payout(1_000_000, 50_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_050_000), got)

	_, err = Payout(math.MaxInt64, 1)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestValidRateBps(t *testing.T) {
	assert.True(t, ValidRateBps(0))
	assert.True(t, ValidRateBps(500))
	assert.True(t, ValidRateBps(MaxRateBps))
	assert.False(t, ValidRateBps(5_001))
	assert.False(t, ValidRateBps(-1))
}
