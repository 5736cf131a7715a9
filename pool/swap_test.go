package pool

import (
	"math"
	"testing"

	"github.com/defistate/defistate-amm-go/fullmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwap(t *testing.T) {
	testCases := []struct {
		name      string
		low, high uint64
		fee       uint64
		direction Direction
		amountIn  uint64
		minOut    uint64
		expected  uint64
		after     State
	}{
		{
			// inWithFee = floor(100*9970/10000) = 99, out = floor(99*5000/1099)
			name: "low for high",
			low:  1000, high: 5000, fee: 30,
			direction: LowToHigh, amountIn: 100, minOut: 450,
			expected: 450,
			after:    State{ReserveLow: 1100, ReserveHigh: 4550, LPSupply: 2236, FeePoints: 30},
		},
		{
			// out = floor(99*1000/5099)
			name: "high for low",
			low:  1000, high: 5000, fee: 30,
			direction: HighToLow, amountIn: 100,
			expected: 19,
			after:    State{ReserveLow: 981, ReserveHigh: 5100, LPSupply: 2236, FeePoints: 30},
		},
		{
			name: "zero fee",
			low:  1000, high: 5000, fee: 0,
			direction: LowToHigh, amountIn: 100,
			expected: 454,
			after:    State{ReserveLow: 1100, ReserveHigh: 4546, LPSupply: 2236, FeePoints: 0},
		},
		{
			// inWithFee rounds to zero; the input still accrues to the pool
			name: "dust input",
			low:  1000, high: 5000, fee: 30,
			direction: LowToHigh, amountIn: 1,
			expected: 0,
			after:    State{ReserveLow: 1001, ReserveHigh: 5000, LPSupply: 2236, FeePoints: 30},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, _, err := New(testKey, tc.low, tc.high, tc.fee)
			require.NoError(t, err)

			quoted, err := p.Quote(tc.direction, tc.amountIn)
			require.NoError(t, err)

			var res SwapResult
			if tc.direction == LowToHigh {
				res, err = p.SwapExactLowForHigh(tc.amountIn, tc.minOut)
			} else {
				res, err = p.SwapExactHighForLow(tc.amountIn, tc.minOut)
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.AmountOut)
			assert.Equal(t, tc.expected, quoted, "quote must match the executed swap")
			assert.Equal(t, tc.amountIn, res.AmountIn)
			assert.Equal(t, tc.direction, res.Direction)
			assert.Equal(t, tc.after, res.After)
			assert.Equal(t, tc.after, p.State())
		})
	}
}

func TestSwapProductIncreases(t *testing.T) {
	p := newTestPool(t, 1000, 5000)
	before := p.State()

	_, err := p.SwapExactLowForHigh(100, 0)
	require.NoError(t, err)
	after := p.State()

	// 1100*4550 > 1000*5000
	assert.Equal(t, 1, fullmath.CompareProducts(after.ReserveLow, after.ReserveHigh, before.ReserveLow, before.ReserveHigh))
}

func TestSwapErrors(t *testing.T) {
	t.Run("zero input", func(t *testing.T) {
		p := newTestPool(t, 1000, 5000)
		_, err := p.SwapExactLowForHigh(0, 0)
		assert.ErrorIs(t, err, ErrZeroInput)
		_, err = p.SwapExactHighForLow(0, 0)
		assert.ErrorIs(t, err, ErrZeroInput)
		assert.Equal(t, State{ReserveLow: 1000, ReserveHigh: 5000, LPSupply: 2236, FeePoints: 30}, p.State())
	})

	t.Run("slippage only when strictly below minimum", func(t *testing.T) {
		p := newTestPool(t, 1000, 5000)
		before := p.State()

		_, err := p.SwapExactLowForHigh(100, 451)
		assert.ErrorIs(t, err, ErrExcessiveSlippage)
		assert.Equal(t, before, p.State())

		res, err := p.SwapExactLowForHigh(100, 450)
		require.NoError(t, err)
		assert.Equal(t, uint64(450), res.AmountOut)
	})

	t.Run("input reserve overflow", func(t *testing.T) {
		p := newTestPool(t, math.MaxUint64-5, 1000)
		before := p.State()

		_, err := p.SwapExactLowForHigh(10, 0)
		assert.ErrorIs(t, err, fullmath.ErrArithmeticOverflow)
		assert.Equal(t, before, p.State())
	})
}

func TestGetAmountOut(t *testing.T) {
	out, err := GetAmountOut(100, 1000, 5000, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(450), out)

	_, err = GetAmountOut(100, 0, 5000, 30)
	assert.ErrorIs(t, err, ErrNoLiquidity)

	_, err = GetAmountOut(100, 1000, 5000, FeeDenominator)
	assert.ErrorIs(t, err, ErrInvalidFee)
}

func TestGetAmountIn(t *testing.T) {
	t.Run("inverse of amount out", func(t *testing.T) {
		in, err := GetAmountIn(450, 1000, 5000, 30)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), in)

		// one unit less must fall short
		out, err := GetAmountOut(in-1, 1000, 5000, 30)
		require.NoError(t, err)
		assert.Less(t, out, uint64(450))
	})

	t.Run("round trips over a range", func(t *testing.T) {
		for want := uint64(1); want < 4_000; want += 37 {
			in, err := GetAmountIn(want, 1_000, 5_000, 30)
			require.NoError(t, err)
			out, err := GetAmountOut(in, 1_000, 5_000, 30)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, out, want)
			if in > 1 {
				short, err := GetAmountOut(in-1, 1_000, 5_000, 30)
				require.NoError(t, err)
				assert.Less(t, short, want)
			}
		}
	})

	t.Run("errors", func(t *testing.T) {
		_, err := GetAmountIn(0, 1000, 5000, 30)
		assert.ErrorIs(t, err, ErrZeroInput)
		_, err = GetAmountIn(5000, 1000, 5000, 30)
		assert.ErrorIs(t, err, ErrNoLiquidity)
		_, err = GetAmountIn(1, 1000, 5000, 10_001)
		assert.ErrorIs(t, err, ErrInvalidFee)
	})

	t.Run("pool quote in", func(t *testing.T) {
		p := newTestPool(t, 1000, 5000)
		in, err := p.QuoteIn(LowToHigh, 450)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), in)
	})
}
