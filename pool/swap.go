package pool

import (
	"fmt"

	"github.com/defistate/defistate-amm-go/fullmath"
)

// Direction selects which reserve a swap pays into.
type Direction uint8

const (
	LowToHigh Direction = iota
	HighToLow
)

func (d Direction) String() string {
	switch d {
	case LowToHigh:
		return "low_to_high"
	case HighToLow:
		return "high_to_low"
	default:
		return "unknown"
	}
}

// SwapResult describes an applied swap.
type SwapResult struct {
	Direction Direction `json:"direction"`
	AmountIn  uint64    `json:"amountIn"`
	AmountOut uint64    `json:"amountOut"`
	After     State     `json:"after"`
	Sequence  uint64    `json:"sequence"`
}

// SwapExactLowForHigh sells exactly amountIn of the low asset for at least minOut of the high asset.
func (p *Pool) SwapExactLowForHigh(amountIn, minOut uint64) (SwapResult, error) {
	return p.swap(LowToHigh, amountIn, minOut)
}

// SwapExactHighForLow sells exactly amountIn of the high asset for at least minOut of the low asset.
func (p *Pool) SwapExactHighForLow(amountIn, minOut uint64) (SwapResult, error) {
	return p.swap(HighToLow, amountIn, minOut)
}

// Quote returns the output a swap of amountIn would produce right now,
// without changing the pool.
func (p *Pool) Quote(d Direction, amountIn uint64) (uint64, error) {
	s := p.State()
	if amountIn == 0 {
		return 0, fmt.Errorf("%w: swap amount must be positive", ErrZeroInput)
	}
	reserveIn, reserveOut := s.reserves(d)
	return GetAmountOut(amountIn, reserveIn, reserveOut, s.FeePoints)
}

// QuoteIn returns the smallest input that yields at least amountOut right now.
func (p *Pool) QuoteIn(d Direction, amountOut uint64) (uint64, error) {
	s := p.State()
	reserveIn, reserveOut := s.reserves(d)
	return GetAmountIn(amountOut, reserveIn, reserveOut, s.FeePoints)
}

func (p *Pool) swap(d Direction, amountIn, minOut uint64) (SwapResult, error) {
	var amountOut uint64
	after, seq, err := p.update(func(s State) (State, error) {
		var err error
		s, amountOut, err = s.swap(d, amountIn, minOut)
		return s, err
	})
	if err != nil {
		return SwapResult{}, err
	}
	return SwapResult{
		Direction: d,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		After:     after,
		Sequence:  seq,
	}, nil
}

// reserves returns (reserveIn, reserveOut) for direction d.
func (s State) reserves(d Direction) (uint64, uint64) {
	if d == HighToLow {
		return s.ReserveHigh, s.ReserveLow
	}
	return s.ReserveLow, s.ReserveHigh
}

func (s State) withReserves(d Direction, reserveIn, reserveOut uint64) State {
	if d == HighToLow {
		s.ReserveHigh, s.ReserveLow = reserveIn, reserveOut
	} else {
		s.ReserveLow, s.ReserveHigh = reserveIn, reserveOut
	}
	return s
}

// swap prices amountIn along the curve. The full input is credited to the
// input reserve; the fee only discounts the quote, so it accrues to LPs.
func (s State) swap(d Direction, amountIn, minOut uint64) (State, uint64, error) {
	if amountIn == 0 {
		return s, 0, fmt.Errorf("%w: swap amount must be positive", ErrZeroInput)
	}
	if s.ReserveLow == 0 || s.ReserveHigh == 0 {
		return s, 0, fmt.Errorf("%w: reserves (%d, %d)", ErrNoLiquidity, s.ReserveLow, s.ReserveHigh)
	}

	reserveIn, reserveOut := s.reserves(d)
	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut, s.FeePoints)
	if err != nil {
		return s, 0, err
	}
	if amountOut < minOut {
		return s, 0, fmt.Errorf("%w: output %d < minimum %d", ErrExcessiveSlippage, amountOut, minOut)
	}

	newReserveIn, err := fullmath.Add(reserveIn, amountIn)
	if err != nil {
		return s, 0, fmt.Errorf("%w: input reserve", err)
	}
	newReserveOut, err := fullmath.Sub(reserveOut, amountOut)
	if err != nil {
		return s, 0, fmt.Errorf("%w: output reserve", err)
	}

	return s.withReserves(d, newReserveIn, newReserveOut), amountOut, nil
}

// GetAmountOut is the constant-product quote:
//
//	inWithFee = floor(amountIn * (10000 - feePoints) / 10000)
//	amountOut = floor(inWithFee * reserveOut / (reserveIn + inWithFee))
func GetAmountOut(amountIn, reserveIn, reserveOut, feePoints uint64) (uint64, error) {
	if err := ValidateFeePoints(feePoints); err != nil {
		return 0, err
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, fmt.Errorf("%w: reserves (%d, %d)", ErrNoLiquidity, reserveIn, reserveOut)
	}

	amountInWithFee, err := fullmath.MulDiv(amountIn, FeeDenominator-feePoints, FeeDenominator)
	if err != nil {
		return 0, err
	}
	denominator, err := fullmath.Add(reserveIn, amountInWithFee)
	if err != nil {
		return 0, err
	}
	return fullmath.MulDiv(amountInWithFee, reserveOut, denominator)
}

// GetAmountIn is the inverse of GetAmountOut: the smallest amountIn for which
// GetAmountOut returns at least amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut, feePoints uint64) (uint64, error) {
	if err := ValidateFeePoints(feePoints); err != nil {
		return 0, err
	}
	if amountOut == 0 {
		return 0, fmt.Errorf("%w: requested output must be positive", ErrZeroInput)
	}
	if reserveIn == 0 || amountOut >= reserveOut {
		return 0, fmt.Errorf("%w: requested amountOut (%d) is >= reserveOut (%d)", ErrNoLiquidity, amountOut, reserveOut)
	}

	// smallest fee-adjusted input reaching amountOut
	amountInWithFee, err := fullmath.MulDivRoundingUp(amountOut, reserveIn, reserveOut-amountOut)
	if err != nil {
		return 0, err
	}
	return fullmath.MulDivRoundingUp(amountInWithFee, FeeDenominator, FeeDenominator-feePoints)
}
