package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeVolume(t *testing.T) {
	candles := []Candle{
		{Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Open: 10.5, High: 11, Low: 10, Close: 10.2, Volume: 100},
		{Open: 10.2, High: 12.05, Low: 10.1, Close: 12, Volume: 700},
	}

	profile := NewVolumeAnalyzer(3).AnalyzeVolume(candles)
	require.NotNil(t, profile)
	assert.InDelta(t, 300.0, profile.AverageVolume, 1e-9)
	assert.InDelta(t, 700.0/300.0, profile.VolumeRatio, 1e-9)
	assert.True(t, profile.IsHighVolume)
	assert.False(t, profile.IsClimaxVolume)
	assert.Equal(t, BuyingPressure, profile.Pressure)
	assert.InDelta(t, 600.0, profile.OBV, 1e-9) // -100 then +700
}

func TestAnalyzeVolumeWithoutVolume(t *testing.T) {
	va := NewVolumeAnalyzer(0)
	assert.Nil(t, va.AnalyzeVolume(nil))
	assert.Nil(t, va.AnalyzeVolume(mids(1, 2, 3)))
}

func TestPressureOf(t *testing.T) {
	assert.Equal(t, SellingPressure, PressureOf(Candle{Open: 12, High: 12.5, Low: 10, Close: 10}))
	assert.Equal(t, NeutralPressure, PressureOf(Candle{Open: 10, High: 15, Low: 9, Close: 11}))
	assert.Equal(t, NeutralPressure, PressureOf(Candle{Open: 10, High: 11, Low: 9, Close: 10}))
}
