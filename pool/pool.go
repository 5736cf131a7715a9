// Package pool implements the reserve and LP-supply state machine for a single
// constant-product pool, together with the liquidity and swap math that drives it.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/defistate/defistate-amm-go/fullmath"
	"github.com/defistate/defistate-amm-go/pair"
)

const (
	// FeeDenominator is 100% expressed in fee points.
	FeeDenominator uint64 = 10_000
	// DefaultFeePoints is the fee newly created pools charge (0.30%).
	DefaultFeePoints uint64 = 30
)

var (
	// ErrZeroInput is returned when a required amount is zero.
	ErrZeroInput = errors.New("zero input amount")
	// ErrExcessiveSlippage is returned when an output or mint is strictly below the caller's minimum.
	ErrExcessiveSlippage = errors.New("excessive slippage")
	// ErrNoLiquidity is returned when a swap or quote hits an empty reserve.
	ErrNoLiquidity = errors.New("no liquidity")
	// ErrInvalidFee is returned for fee points outside [0, FeeDenominator).
	ErrInvalidFee = errors.New("invalid fee points")
	// ErrInsufficientLPSupply is returned when a burn exceeds the outstanding LP supply.
	ErrInsufficientLPSupply = fmt.Errorf("insufficient lp supply: %w", fullmath.ErrArithmeticUnderflow)
)

// State is the full mutable state of a pool.
type State struct {
	ReserveLow  uint64 `json:"reserveLow"`
	ReserveHigh uint64 `json:"reserveHigh"`
	LPSupply    uint64 `json:"lpSupply"`
	FeePoints   uint64 `json:"feePoints"` // i.e 30 for 0.3%
}

// Pool guards the State of one asset pair. Every exported mutator is an
// atomic read-modify-write: the next state is computed in full and only
// stored if no step failed.
type Pool struct {
	mu    sync.Mutex
	key   pair.Key
	state State

	// sequencer stamps every commit while mu is held; nil until Activate.
	sequencer func() uint64
}

// New seeds a pool with its initial reserves and returns the LP amount minted
// to the creator, floor(sqrt(amountLow * amountHigh)).
func New(key pair.Key, amountLow, amountHigh, feePoints uint64) (*Pool, uint64, error) {
	if err := key.Validate(); err != nil {
		return nil, 0, err
	}
	if amountLow == 0 || amountHigh == 0 {
		return nil, 0, fmt.Errorf("%w: initial reserves must be positive (low=%d, high=%d)", ErrZeroInput, amountLow, amountHigh)
	}
	if err := ValidateFeePoints(feePoints); err != nil {
		return nil, 0, err
	}

	lpMinted, err := fullmath.MulSqrt(amountLow, amountHigh)
	if err != nil {
		return nil, 0, err
	}

	return &Pool{
		key: key,
		state: State{
			ReserveLow:  amountLow,
			ReserveHigh: amountHigh,
			LPSupply:    lpMinted,
			FeePoints:   feePoints,
		},
	}, lpMinted, nil
}

// ValidateFeePoints checks that feePoints leaves a non-zero fee-adjusted input.
func ValidateFeePoints(feePoints uint64) error {
	if feePoints >= FeeDenominator {
		return fmt.Errorf("%w: %d must be below %d", ErrInvalidFee, feePoints, FeeDenominator)
	}
	return nil
}

// Key returns the canonical pair of the pool.
func (p *Pool) Key() pair.Key {
	return p.key
}

// State returns a copy of the current pool state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Balances returns both reserves and the LP supply.
func (p *Pool) Balances() (reserveLow, reserveHigh, lpSupply uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.ReserveLow, p.state.ReserveHigh, p.state.LPSupply
}

// Activate publishes the pool by running register under the pool lock. On
// success the creation and every later commit are stamped with next while
// the lock is held, so stamps follow commit order.
func (p *Pool) Activate(next func() uint64, register func() error) (State, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := register(); err != nil {
		return State{}, 0, err
	}
	p.sequencer = next
	return p.state, next(), nil
}

// update applies fn to the current state under the pool lock and commits the
// returned state only when fn succeeds. The commit stamp is zero for a pool
// that was never activated.
func (p *Pool) update(fn func(State) (State, error)) (State, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := fn(p.state)
	if err != nil {
		return p.state, 0, err
	}
	p.state = next

	var seq uint64
	if p.sequencer != nil {
		seq = p.sequencer()
	}
	return next, seq, nil
}
