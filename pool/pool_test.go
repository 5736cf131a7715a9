package pool

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/defistate/defistate-amm-go/fullmath"
	"github.com/defistate/defistate-amm-go/pair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = pair.Key{Low: "USDC", High: "WETH"}

// newTestPool is a helper that seeds a pool with the default fee.
func newTestPool(t *testing.T, low, high uint64) *Pool {
	t.Helper()
	p, _, err := New(testKey, low, high, DefaultFeePoints)
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	t.Run("mints geometric mean", func(t *testing.T) {
		p, minted, err := New(testKey, 1000, 5000, DefaultFeePoints)
		require.NoError(t, err)
		assert.Equal(t, uint64(2236), minted)
		assert.Equal(t, State{ReserveLow: 1000, ReserveHigh: 5000, LPSupply: 2236, FeePoints: 30}, p.State())
		assert.Equal(t, testKey, p.Key())

		low, high, lp := p.Balances()
		assert.Equal(t, [3]uint64{1000, 5000, 2236}, [3]uint64{low, high, lp})
	})

	t.Run("large reserves do not overflow", func(t *testing.T) {
		_, minted, err := New(testKey, math.MaxUint64, math.MaxUint64, DefaultFeePoints)
		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), minted)
	})

	testCases := []struct {
		name        string
		key         pair.Key
		low, high   uint64
		fee         uint64
		expectedErr error
	}{
		{name: "zero low", key: testKey, low: 0, high: 5000, fee: 30, expectedErr: ErrZeroInput},
		{name: "zero high", key: testKey, low: 1000, high: 0, fee: 30, expectedErr: ErrZeroInput},
		{name: "fee at denominator", key: testKey, low: 1, high: 1, fee: FeeDenominator, expectedErr: ErrInvalidFee},
		{name: "non canonical key", key: pair.Key{Low: "WETH", High: "USDC"}, low: 1, high: 1, fee: 30, expectedErr: pair.ErrInvalidPair},
		{name: "self pair key", key: pair.Key{Low: "WETH", High: "WETH"}, low: 1, high: 1, fee: 30, expectedErr: pair.ErrInvalidPair},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, minted, err := New(tc.key, tc.low, tc.high, tc.fee)
			require.ErrorIs(t, err, tc.expectedErr)
			assert.Nil(t, p)
			assert.Zero(t, minted)
		})
	}
}

func TestValidateFeePoints(t *testing.T) {
	assert.NoError(t, ValidateFeePoints(0))
	assert.NoError(t, ValidateFeePoints(9_999))
	assert.ErrorIs(t, ValidateFeePoints(10_000), ErrInvalidFee)
}

func TestActivate(t *testing.T) {
	t.Run("failed registration leaves the pool unstamped", func(t *testing.T) {
		var seq atomic.Uint64
		p := newTestPool(t, 1000, 5000)
		errTaken := errors.New("taken")

		_, stamp, err := p.Activate(func() uint64 { return seq.Add(1) }, func() error { return errTaken })
		require.ErrorIs(t, err, errTaken)
		assert.Zero(t, stamp)

		res, err := p.SwapExactLowForHigh(100, 0)
		require.NoError(t, err)
		assert.Zero(t, res.Sequence)
		assert.Zero(t, seq.Load())
	})

	t.Run("commits are stamped in commit order", func(t *testing.T) {
		var seq atomic.Uint64
		p := newTestPool(t, 1000, 5000)

		created, stamp, err := p.Activate(func() uint64 { return seq.Add(1) }, func() error { return nil })
		require.NoError(t, err)
		assert.Equal(t, uint64(1), stamp)
		assert.Equal(t, uint64(1000), created.ReserveLow)

		const workers, swaps = 8, 200
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results []SwapResult
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < swaps; j++ {
					res, err := p.SwapExactLowForHigh(1, 0)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					results = append(results, res)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, results, workers*swaps)
		sort.Slice(results, func(i, j int) bool { return results[i].Sequence < results[j].Sequence })
		for i, res := range results {
			// every swap adds one unit of low, so stamps and reserves move together
			assert.Equal(t, uint64(i+2), res.Sequence)
			assert.Equal(t, uint64(1000+i+1), res.After.ReserveLow)
		}
	})
}

// TestRandomSequenceInvariants drives a pool through random operations and
// checks the reserve and product invariants after every successful step.
func TestRandomSequenceInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := newTestPool(t, 1_000_000, 3_000_000)

	for i := 0; i < 5_000; i++ {
		before := p.State()
		var err error

		switch rng.Intn(4) {
		case 0:
			_, err = p.SwapExactLowForHigh(uint64(rng.Intn(50_000)), 0)
		case 1:
			_, err = p.SwapExactHighForLow(uint64(rng.Intn(150_000)), 0)
		case 2:
			_, err = p.AddLiquidity(uint64(rng.Intn(10_000)), uint64(rng.Intn(30_000)), 0)
		case 3:
			if before.LPSupply > 1 {
				_, err = p.RemoveLiquidity(uint64(rng.Int63n(int64(before.LPSupply-1)))+1, 0, 0)
			}
		}

		after := p.State()
		if err != nil {
			assert.Equal(t, before, after, "failed operation must not mutate the pool")
			continue
		}

		require.NotZero(t, after.ReserveLow)
		require.NotZero(t, after.ReserveHigh)
		require.NotZero(t, after.LPSupply)
		if after.LPSupply >= before.LPSupply {
			// swaps and deposits never shrink k
			assert.GreaterOrEqual(t, fullmath.CompareProducts(after.ReserveLow, after.ReserveHigh, before.ReserveLow, before.ReserveHigh), 0)
		}
	}
}

func TestConcurrentOperations(t *testing.T) {
	p := newTestPool(t, 10_000_000, 10_000_000)
	initial := p.State()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch (i + j) % 3 {
				case 0:
					_, err := p.SwapExactLowForHigh(1_000, 0)
					assert.NoError(t, err)
				case 1:
					_, err := p.SwapExactHighForLow(1_000, 0)
					assert.NoError(t, err)
				default:
					_, err := p.AddLiquidity(500, 500, 0)
					assert.NoError(t, err)
				}
			}
		}(i)
	}
	wg.Wait()

	final := p.State()
	assert.Greater(t, final.LPSupply, initial.LPSupply)
	assert.Equal(t, 1, fullmath.CompareProducts(final.ReserveLow, final.ReserveHigh, initial.ReserveLow, initial.ReserveHigh))
}
