package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name    string
		candles []Candle
		want    Direction
	}{
		{"higher highs and higher lows", mids(risingWave...), Bullish},
		{"lower highs and lower lows", mids(mirrored(risingWave)...), Bearish},
		{"expanding range", mids(10, 11, 13, 11, 9, 11, 14, 11, 8, 10, 15, 12, 7, 9, 10), Range},
		{"two candles stepping up", mids(10, 11), Bullish},
		{"two candles stepping down", mids(11, 10), Bearish},
		{"inside bar", []Candle{{High: 10, Low: 5}, {High: 9, Low: 6}}, Range},
		{"single candle", mids(10), Range},
		{"no candles", nil, Range},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTrend(tt.candles)
			assert.Equal(t, tt.want, got.Direction)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestClassifyTrendStrength(t *testing.T) {
	bull := ClassifyTrend(mids(risingWave...))
	assert.Equal(t, 2, bull.HigherHighs)
	assert.Equal(t, 1, bull.HigherLows)
	assert.Zero(t, bull.LowerHighs)
	assert.Zero(t, bull.LowerLows)
	assert.InDelta(t, 1.0, bull.Strength, 1e-9)

	bear := ClassifyTrend(mids(mirrored(risingWave)...))
	assert.Equal(t, 1, bear.LowerHighs)
	assert.Equal(t, 2, bear.LowerLows)
	assert.InDelta(t, 1.0, bear.Strength, 1e-9)
}

func TestClassifyTrendInsufficientCandles(t *testing.T) {
	got := ClassifyTrend(mids(10))
	assert.Contains(t, got.Reason, "insufficient candles")
	assert.Zero(t, got.Strength)
}
