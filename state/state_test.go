package state

import (
	"testing"

	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolState(low, high pair.AssetID, reserveLow, reserveHigh, lp uint64) PoolState {
	key := pair.Key{Low: low, High: high}
	return PoolState{
		ID:  key.PoolID(),
		Key: key,
		State: pool.State{
			ReserveLow:  reserveLow,
			ReserveHigh: reserveHigh,
			LPSupply:    lp,
			FeePoints:   pool.DefaultFeePoints,
		},
	}
}

func TestDiffer(t *testing.T) {
	usdcWeth := poolState("USDC", "WETH", 1000, 5000, 2236)
	daiUsdc := poolState("DAI", "USDC", 3000, 3000, 3000)
	wbtcWeth := poolState("WBTC", "WETH", 10, 200, 44)

	t.Run("should identify additions correctly", func(t *testing.T) {
		diff := Differ(
			View{Sequence: 1, Pools: []PoolState{usdcWeth}},
			View{Sequence: 2, Pools: []PoolState{usdcWeth, daiUsdc}},
		)

		require.Len(t, diff.Additions, 1)
		assert.Equal(t, daiUsdc, diff.Additions[0])
		assert.Empty(t, diff.Updates)
		assert.Empty(t, diff.Deletions)
		assert.Equal(t, uint64(1), diff.FromSequence)
		assert.Equal(t, uint64(2), diff.ToSequence)
	})

	t.Run("should identify deletions correctly", func(t *testing.T) {
		diff := Differ(
			View{Pools: []PoolState{usdcWeth, daiUsdc}},
			View{Pools: []PoolState{usdcWeth}},
		)

		assert.Empty(t, diff.Additions)
		assert.Empty(t, diff.Updates)
		require.Len(t, diff.Deletions, 1)
		assert.Equal(t, daiUsdc.ID, diff.Deletions[0])
	})

	t.Run("should identify updates correctly", func(t *testing.T) {
		swapped := usdcWeth
		swapped.ReserveLow, swapped.ReserveHigh = 1100, 4550

		diff := Differ(
			View{Pools: []PoolState{usdcWeth}},
			View{Pools: []PoolState{swapped}},
		)

		assert.Empty(t, diff.Additions)
		require.Len(t, diff.Updates, 1)
		assert.Equal(t, swapped, diff.Updates[0])
		assert.Empty(t, diff.Deletions)
	})

	t.Run("should order changes by pair", func(t *testing.T) {
		diff := Differ(View{}, View{Pools: []PoolState{wbtcWeth, usdcWeth, daiUsdc}})
		assert.Equal(t, []PoolState{daiUsdc, usdcWeth, wbtcWeth}, diff.Additions)
	})

	t.Run("should return empty diff for identical views", func(t *testing.T) {
		v := View{Sequence: 7, Pools: []PoolState{usdcWeth, daiUsdc}}
		assert.True(t, Differ(v, v).IsEmpty())
	})
}

func TestPatcher(t *testing.T) {
	usdcWeth := poolState("USDC", "WETH", 1000, 5000, 2236)
	daiUsdc := poolState("DAI", "USDC", 3000, 3000, 3000)
	wbtcWeth := poolState("WBTC", "WETH", 10, 200, 44)

	t.Run("should apply a mixed diff", func(t *testing.T) {
		prev := View{Sequence: 3, Timestamp: 10, Pools: []PoolState{usdcWeth, daiUsdc}}

		updated := usdcWeth
		updated.ReserveLow, updated.ReserveHigh, updated.LPSupply = 1040, 5200, 2325

		diff := Diff{
			Timestamp:    20,
			FromSequence: 3,
			ToSequence:   5,
			Additions:    []PoolState{wbtcWeth},
			Updates:      []PoolState{updated},
			Deletions:    []common.Hash{daiUsdc.ID},
		}

		next, err := Patcher(prev, diff)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), next.Sequence)
		assert.Equal(t, uint64(20), next.Timestamp)
		assert.Equal(t, []PoolState{updated, wbtcWeth}, next.Pools)

		// prev is untouched
		assert.Equal(t, []PoolState{usdcWeth, daiUsdc}, prev.Pools)
	})

	t.Run("should reject a diff from another sequence", func(t *testing.T) {
		_, err := Patcher(View{Sequence: 4}, Diff{FromSequence: 3, ToSequence: 5})
		assert.ErrorIs(t, err, ErrSequenceMismatch)
	})

	t.Run("should reject an update for an unknown pool", func(t *testing.T) {
		_, err := Patcher(View{}, Diff{Updates: []PoolState{usdcWeth}})
		assert.Error(t, err)
	})

	t.Run("differ and patcher round trip", func(t *testing.T) {
		old := View{Sequence: 1, Pools: []PoolState{daiUsdc, usdcWeth}}

		swapped := usdcWeth
		swapped.ReserveLow, swapped.ReserveHigh = 1100, 4550
		new := View{Sequence: 4, Timestamp: 99, Pools: []PoolState{swapped, wbtcWeth}}

		patched, err := Patcher(old, Differ(old, new))
		require.NoError(t, err)
		assert.Equal(t, View{Sequence: 4, Timestamp: 99, Pools: []PoolState{swapped, wbtcWeth}}, patched)
	})
}

func TestViewPool(t *testing.T) {
	usdcWeth := poolState("USDC", "WETH", 1000, 5000, 2236)
	v := View{Pools: []PoolState{usdcWeth}}

	got, ok := v.Pool(usdcWeth.Key)
	require.True(t, ok)
	assert.Equal(t, usdcWeth, got)

	_, ok = v.Pool(pair.Key{Low: "DAI", High: "USDC"})
	assert.False(t, ok)
}
