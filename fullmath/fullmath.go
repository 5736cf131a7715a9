// Package fullmath implements the checked 64-bit arithmetic used by every
// pricing path of the engine. Intermediate products are computed at 256 bits,
// so a*b never wraps before the division is applied.
package fullmath

import (
	"errors"
	"math"
	"sync"

	"github.com/holiman/uint256"
)

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
	ErrDivisionByZero      = errors.New("division by zero")
)

// fullMath holds reusable uint256 values to avoid allocations.
// Instances are managed by a sync.Pool for safe concurrent use.
type fullMath struct {
	a       *uint256.Int
	b       *uint256.Int
	c       *uint256.Int
	product *uint256.Int
	result  *uint256.Int
	rem     *uint256.Int
}

var pool = sync.Pool{
	New: func() any {
		return &fullMath{
			a:       new(uint256.Int),
			b:       new(uint256.Int),
			c:       new(uint256.Int),
			product: new(uint256.Int),
			result:  new(uint256.Int),
			rem:     new(uint256.Int),
		}
	},
}

// mulDiv writes floor(a*b/c) into fm.result and the remainder into fm.rem.
func (fm *fullMath) mulDiv(a, b, c uint64) {
	fm.a.SetUint64(a)
	fm.b.SetUint64(b)
	fm.c.SetUint64(c)
	fm.product.Mul(fm.a, fm.b)
	fm.result.Div(fm.product, fm.c)
	fm.rem.Mod(fm.product, fm.c)
}

// MulDiv returns floor(a*b/c).
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}

	fm := pool.Get().(*fullMath)
	defer pool.Put(fm)

	fm.mulDiv(a, b, c)
	if !fm.result.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return fm.result.Uint64(), nil
}

// MulDivRoundingUp returns ceil(a*b/c). Deposits use it so the pool is never
// credited less than the exact ratio requires.
func MulDivRoundingUp(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}

	fm := pool.Get().(*fullMath)
	defer pool.Put(fm)

	fm.mulDiv(a, b, c)
	if !fm.result.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	q := fm.result.Uint64()
	if !fm.rem.IsZero() {
		if q == math.MaxUint64 {
			return 0, ErrArithmeticOverflow
		}
		q++
	}
	return q, nil
}

// MulSqrt returns floor(sqrt(a*b)), the geometric mean used to seed LP supply.
func MulSqrt(a, b uint64) (uint64, error) {
	fm := pool.Get().(*fullMath)
	defer pool.Put(fm)

	fm.a.SetUint64(a)
	fm.b.SetUint64(b)
	fm.product.Mul(fm.a, fm.b)
	fm.result.Sqrt(fm.product)
	if !fm.result.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return fm.result.Uint64(), nil
}

// CompareProducts compares a*b with c*d without losing precision.
func CompareProducts(a, b, c, d uint64) int {
	fm := pool.Get().(*fullMath)
	defer pool.Put(fm)

	fm.a.SetUint64(a)
	fm.b.SetUint64(b)
	fm.product.Mul(fm.a, fm.b)

	fm.a.SetUint64(c)
	fm.b.SetUint64(d)
	fm.result.Mul(fm.a, fm.b)

	return fm.product.Cmp(fm.result)
}

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrArithmeticUnderflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}
