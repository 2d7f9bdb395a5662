package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatCandles(n int) []Candle {
	candles := make([]Candle, n)
	for i := range candles {
		candles[i] = Candle{Time: int64(i) * 60_000, Open: 95, High: 96, Low: 94, Close: 95}
	}
	return candles
}

func TestMapLiquidity(t *testing.T) {
	candles := flatCandles(10)
	candles[9].High = 101 // trades through the equal highs

	swings := []StructurePoint{
		high(1, 100),
		low(2, 90.02),
		high(3, 100.03),
		low(4, 90),
		high(5, 105),
		low(6, 90.01),
	}

	pools, err := MapLiquidity(candles, swings, DefaultLiquidityTolerancePct)
	require.NoError(t, err)
	require.Len(t, pools, 2)

	bsl := pools[0]
	assert.Equal(t, BSL, bsl.Type)
	assert.Equal(t, EqualHighs, bsl.Reason)
	assert.Equal(t, 100.03, bsl.Price)
	assert.Equal(t, []int{1, 3}, bsl.Indices)
	assert.True(t, bsl.Swept)

	ssl := pools[1]
	assert.Equal(t, SSL, ssl.Type)
	assert.Equal(t, StopClusterLow, ssl.Reason)
	assert.Equal(t, 90.0, ssl.Price)
	assert.Equal(t, []int{2, 4, 6}, ssl.Indices)
	assert.False(t, ssl.Swept)
}

func TestMapLiquidityIsolatedSwingsDropped(t *testing.T) {
	swings := []StructurePoint{high(1, 100), high(3, 110), low(2, 80), low(4, 70)}
	pools, err := MapLiquidity(flatCandles(6), swings, DefaultLiquidityTolerancePct)
	require.NoError(t, err)
	assert.NotNil(t, pools)
	assert.Empty(t, pools)
}

func TestMapLiquidityOrdering(t *testing.T) {
	swings := []StructurePoint{
		high(1, 120), high(2, 120),
		high(3, 100), high(4, 100),
		low(5, 50), low(6, 50),
		low(7, 40), low(8, 40),
	}
	pools, err := MapLiquidity(flatCandles(10), swings, 0)
	require.NoError(t, err)
	require.Len(t, pools, 4)

	assert.Equal(t, []PoolType{BSL, BSL, SSL, SSL}, []PoolType{pools[0].Type, pools[1].Type, pools[2].Type, pools[3].Type})
	assert.Equal(t, []float64{100, 120, 40, 50}, []float64{pools[0].Price, pools[1].Price, pools[2].Price, pools[3].Price})
}

func TestMapLiquidityInvalidTolerance(t *testing.T) {
	for _, tol := range []float64{-0.01, math.NaN()} {
		_, err := MapLiquidity(nil, nil, tol)
		assert.ErrorIs(t, err, ErrInvalidTolerance)
	}
}

func TestPoolsAboveAndBelow(t *testing.T) {
	pools := []LiquidityPool{
		{Type: BSL, Price: 110},
		{Type: SSL, Price: 90},
		{Type: SSL, Price: 105},
	}
	assert.Len(t, PoolsAbove(pools, BSL, 100), 1)
	assert.Len(t, PoolsBelow(pools, SSL, 100), 1)
	assert.Empty(t, PoolsBelow(pools, BSL, 100))
}
