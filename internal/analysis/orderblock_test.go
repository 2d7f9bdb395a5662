package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demandSetup() []Candle {
	return []Candle{
		{Open: 100, High: 100.5, Low: 99.8, Close: 100.2},
		{Open: 100.2, High: 100.6, Low: 99.9, Close: 100.1},
		{Open: 101, High: 101.5, Low: 99.5, Close: 100}, // down-close before the impulse
		{Open: 100, High: 102.5, Low: 99.9, Close: 102},
		{Open: 102, High: 103, Low: 102.2, Close: 102.8},
	}
}

func supplySetup() []Candle {
	return []Candle{
		{Open: 100, High: 100.2, Low: 99.5, Close: 99.8},
		{Open: 99.8, High: 100.1, Low: 99.4, Close: 99.9},
		{Open: 99, High: 100.5, Low: 98.5, Close: 100}, // up-close before the impulse
		{Open: 100, High: 100.1, Low: 97.5, Close: 98},
		{Open: 97.8, High: 97.9, Low: 97, Close: 97.2},
	}
}

func TestFindOrderBlocksDemand(t *testing.T) {
	blocks, err := FindOrderBlocks(demandSetup(), DefaultMinImpulsePct)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	ob := blocks[0]
	assert.Equal(t, Demand, ob.Type)
	assert.Equal(t, 2, ob.OriginIndex)
	assert.Equal(t, PriceRange{Low: 99.5, High: 101.5}, ob.PriceRange)
	assert.False(t, ob.IsMitigated)
	assert.Equal(t, Bullish, ob.Direction())
}

func TestFindOrderBlocksSupply(t *testing.T) {
	blocks, err := FindOrderBlocks(supplySetup(), DefaultMinImpulsePct)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	ob := blocks[0]
	assert.Equal(t, Supply, ob.Type)
	assert.Equal(t, PriceRange{Low: 98.5, High: 100.5}, ob.PriceRange)
	assert.False(t, ob.IsMitigated)
	assert.Equal(t, Bearish, ob.Direction())
}

func TestFindOrderBlocksMitigation(t *testing.T) {
	candles := append(demandSetup(), Candle{Open: 102.8, High: 103, Low: 101, Close: 102})
	blocks, err := FindOrderBlocks(candles, DefaultMinImpulsePct)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].IsMitigated)
}

func TestFindOrderBlocksImpulseThreshold(t *testing.T) {
	// impulse is (102 - 99.5) / 99.5 ~= 2.51%
	blocks, err := FindOrderBlocks(demandSetup(), 3)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestFindOrderBlocksTooFewCandles(t *testing.T) {
	blocks, err := FindOrderBlocks(demandSetup()[:4], DefaultMinImpulsePct)
	require.NoError(t, err)
	assert.NotNil(t, blocks)
	assert.Empty(t, blocks)
}

func TestFindOrderBlocksInvalidThreshold(t *testing.T) {
	for _, v := range []float64{-1, math.NaN()} {
		_, err := FindOrderBlocks(demandSetup(), v)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
}

func TestDetectOrderBlocksTrendFilter(t *testing.T) {
	tests := []struct {
		trend Direction
		want  int
	}{
		{Bullish, 1},
		{Bearish, 0},
		{Range, 0},
	}
	for _, tt := range tests {
		blocks, err := DetectOrderBlocks(demandSetup(), tt.trend, DefaultMinImpulsePct)
		require.NoError(t, err)
		assert.Len(t, blocks, tt.want, "trend %s", tt.trend)
	}

	blocks, err := DetectOrderBlocks(supplySetup(), Bearish, DefaultMinImpulsePct)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}
