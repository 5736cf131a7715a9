package pool

import (
	"fmt"

	"github.com/defistate/defistate-amm-go/fullmath"
)

// AddResult describes an applied liquidity deposit.
type AddResult struct {
	DepositLow   uint64 `json:"depositLow"`
	DepositHigh  uint64 `json:"depositHigh"`
	ReturnedLow  uint64 `json:"returnedLow"`  // unused low-side input handed back
	ReturnedHigh uint64 `json:"returnedHigh"` // unused high-side input handed back
	LPMinted     uint64 `json:"lpMinted"`
	After        State  `json:"after"`
	Sequence     uint64 `json:"sequence"`
}

// RemoveResult describes an applied liquidity withdrawal.
type RemoveResult struct {
	AmountLow  uint64 `json:"amountLow"`
	AmountHigh uint64 `json:"amountHigh"`
	LPBurned   uint64 `json:"lpBurned"`
	After      State  `json:"after"`
	Sequence   uint64 `json:"sequence"`
}

// AddLiquidity deposits up to (amountLowIn, amountHighIn) at the current pool
// ratio and mints LP against the binding side.
func (p *Pool) AddLiquidity(amountLowIn, amountHighIn, minLPOut uint64) (AddResult, error) {
	var res AddResult
	after, seq, err := p.update(func(s State) (State, error) {
		var err error
		s, res, err = s.addLiquidity(amountLowIn, amountHighIn, minLPOut)
		return s, err
	})
	if err != nil {
		return AddResult{}, err
	}
	res.After, res.Sequence = after, seq
	return res, nil
}

// RemoveLiquidity burns lpToBurn and pays out the proportional share of both reserves.
func (p *Pool) RemoveLiquidity(lpToBurn, minLowOut, minHighOut uint64) (RemoveResult, error) {
	var res RemoveResult
	after, seq, err := p.update(func(s State) (State, error) {
		var err error
		s, res, err = s.removeLiquidity(lpToBurn, minLowOut, minHighOut)
		return s, err
	})
	if err != nil {
		return RemoveResult{}, err
	}
	res.After, res.Sequence = after, seq
	return res, nil
}

// addLiquidity resolves the deposit ratio and returns the next state.
//
// Deposits on the non-binding side round up and LP mints round down, so every
// rounding step favours the pool.
func (s State) addLiquidity(amountLowIn, amountHighIn, minLPOut uint64) (State, AddResult, error) {
	if amountLowIn == 0 || amountHighIn == 0 {
		return s, AddResult{}, fmt.Errorf("%w: deposit amounts must be positive (low=%d, high=%d)", ErrZeroInput, amountLowIn, amountHighIn)
	}

	var (
		depositLow, depositHigh, lpToIssue uint64
		err                                error
	)

	// x = amountLowIn * reserveHigh, y = amountHighIn * reserveLow
	switch fullmath.CompareProducts(amountLowIn, s.ReserveHigh, amountHighIn, s.ReserveLow) {
	case 1:
		// high side binds
		depositHigh = amountHighIn
		if depositLow, err = fullmath.MulDivRoundingUp(amountHighIn, s.ReserveLow, s.ReserveHigh); err != nil {
			return s, AddResult{}, err
		}
		if lpToIssue, err = fullmath.MulDiv(depositHigh, s.LPSupply, s.ReserveHigh); err != nil {
			return s, AddResult{}, err
		}
	case -1:
		// low side binds
		depositLow = amountLowIn
		if depositHigh, err = fullmath.MulDivRoundingUp(amountLowIn, s.ReserveHigh, s.ReserveLow); err != nil {
			return s, AddResult{}, err
		}
		if lpToIssue, err = fullmath.MulDiv(depositLow, s.LPSupply, s.ReserveLow); err != nil {
			return s, AddResult{}, err
		}
	default:
		depositLow, depositHigh = amountLowIn, amountHighIn
		if s.LPSupply == 0 {
			// drained pool being re-seeded
			lpToIssue = depositLow
		} else if lpToIssue, err = fullmath.MulDiv(depositLow, s.LPSupply, s.ReserveLow); err != nil {
			return s, AddResult{}, err
		}
	}

	next := s
	if next.ReserveLow, err = fullmath.Add(s.ReserveLow, depositLow); err != nil {
		return s, AddResult{}, fmt.Errorf("%w: low reserve", err)
	}
	if next.ReserveHigh, err = fullmath.Add(s.ReserveHigh, depositHigh); err != nil {
		return s, AddResult{}, fmt.Errorf("%w: high reserve", err)
	}
	if next.LPSupply, err = fullmath.Add(s.LPSupply, lpToIssue); err != nil {
		return s, AddResult{}, fmt.Errorf("%w: lp supply", err)
	}

	if lpToIssue < minLPOut {
		return s, AddResult{}, fmt.Errorf("%w: lp minted %d < minimum %d", ErrExcessiveSlippage, lpToIssue, minLPOut)
	}

	return next, AddResult{
		DepositLow:   depositLow,
		DepositHigh:  depositHigh,
		ReturnedLow:  amountLowIn - depositLow,
		ReturnedHigh: amountHighIn - depositHigh,
		LPMinted:     lpToIssue,
	}, nil
}

// removeLiquidity computes exit amounts for lpToBurn and returns the next state.
func (s State) removeLiquidity(lpToBurn, minLowOut, minHighOut uint64) (State, RemoveResult, error) {
	if lpToBurn == 0 {
		return s, RemoveResult{}, fmt.Errorf("%w: lp amount must be positive", ErrZeroInput)
	}
	if lpToBurn > s.LPSupply {
		return s, RemoveResult{}, fmt.Errorf("%w: burning %d of %d", ErrInsufficientLPSupply, lpToBurn, s.LPSupply)
	}

	var (
		amountLow, amountHigh uint64
		err                   error
	)
	if lpToBurn == s.LPSupply {
		amountLow, amountHigh = s.ReserveLow, s.ReserveHigh
	} else {
		if amountLow, err = fullmath.MulDiv(lpToBurn, s.ReserveLow, s.LPSupply); err != nil {
			return s, RemoveResult{}, err
		}
		if amountHigh, err = fullmath.MulDiv(lpToBurn, s.ReserveHigh, s.LPSupply); err != nil {
			return s, RemoveResult{}, err
		}
	}

	next := s
	if next.ReserveLow, err = fullmath.Sub(s.ReserveLow, amountLow); err != nil {
		return s, RemoveResult{}, fmt.Errorf("%w: low reserve", err)
	}
	if next.ReserveHigh, err = fullmath.Sub(s.ReserveHigh, amountHigh); err != nil {
		return s, RemoveResult{}, fmt.Errorf("%w: high reserve", err)
	}
	next.LPSupply = s.LPSupply - lpToBurn

	if amountLow < minLowOut {
		return s, RemoveResult{}, fmt.Errorf("%w: low output %d < minimum %d", ErrExcessiveSlippage, amountLow, minLowOut)
	}
	if amountHigh < minHighOut {
		return s, RemoveResult{}, fmt.Errorf("%w: high output %d < minimum %d", ErrExcessiveSlippage, amountHigh, minHighOut)
	}

	return next, RemoveResult{
		AmountLow:  amountLow,
		AmountHigh: amountHigh,
		LPBurned:   lpToBurn,
	}, nil
}
