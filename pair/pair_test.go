package pair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     AssetID
		expected Ordering
	}{
		{name: "first byte decides", a: "0x1::coin::A", b: "0x2::coin::A", expected: Less},
		{name: "later byte decides", a: "USDC", b: "USDT", expected: Less},
		{name: "greater", a: "WETH", b: "DAI", expected: Greater},
		{name: "shorter prefix first", a: "SUI", b: "SUIX", expected: Less},
		{name: "longer after prefix", a: "SUIX", b: "SUI", expected: Greater},
		{name: "equal", a: "SUI", b: "SUI", expected: Equal},
		{name: "uppercase before lowercase", a: "Z", b: "a", expected: Less},
		{name: "raw bytes not runes", a: "\xff", b: "é", expected: Greater},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Compare(tc.a, tc.b))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	t.Run("order independent", func(t *testing.T) {
		pairs := [][2]AssetID{
			{"USDC", "WETH"},
			{"SUI", "SUIX"},
			{"0x2::sui::SUI", "0xdba::coin::COIN"},
			{"b", "a"},
		}
		for _, p := range pairs {
			k1, err := Canonicalize(p[0], p[1])
			require.NoError(t, err)
			k2, err := Canonicalize(p[1], p[0])
			require.NoError(t, err)

			assert.Equal(t, k1, k2)
			assert.Equal(t, Less, Compare(k1.Low, k1.High))
			assert.NoError(t, k1.Validate())
		}
	})

	t.Run("self pair rejected", func(t *testing.T) {
		_, err := Canonicalize("SUI", "SUI")
		assert.ErrorIs(t, err, ErrInvalidPair)
	})

	t.Run("empty asset rejected", func(t *testing.T) {
		_, err := Canonicalize("", "SUI")
		assert.ErrorIs(t, err, ErrInvalidPair)
		_, err = Canonicalize("SUI", "")
		assert.ErrorIs(t, err, ErrInvalidPair)
	})
}

func TestKey(t *testing.T) {
	k, err := Canonicalize("WETH", "USDC")
	require.NoError(t, err)

	assert.Equal(t, "USDC/WETH", k.String())
	assert.True(t, k.Flipped("WETH"))
	assert.False(t, k.Flipped("USDC"))
	assert.True(t, k.Contains("USDC"))
	assert.False(t, k.Contains("DAI"))

	t.Run("validate rejects non canonical keys", func(t *testing.T) {
		assert.ErrorIs(t, Key{Low: "WETH", High: "USDC"}.Validate(), ErrInvalidPair)
		assert.ErrorIs(t, Key{Low: "USDC", High: "USDC"}.Validate(), ErrInvalidPair)
		assert.ErrorIs(t, Key{}.Validate(), ErrInvalidPair)
	})

	t.Run("pool id is stable and distinct", func(t *testing.T) {
		other, err := Canonicalize("USDC", "WBTC")
		require.NoError(t, err)

		assert.Equal(t, k.PoolID(), Key{Low: "USDC", High: "WETH"}.PoolID())
		assert.NotEqual(t, k.PoolID(), other.PoolID())

		// Same concatenation, different split.
		a := Key{Low: "AB", High: "C"}
		b := Key{Low: "A", High: "BC"}
		assert.NotEqual(t, a.PoolID(), b.PoolID())
	})

	t.Run("less orders by low then high", func(t *testing.T) {
		assert.True(t, Key{Low: "DAI", High: "WETH"}.Less(Key{Low: "USDC", High: "WBTC"}))
		assert.True(t, Key{Low: "USDC", High: "WBTC"}.Less(Key{Low: "USDC", High: "WETH"}))
		assert.False(t, k.Less(k))
	})
}
