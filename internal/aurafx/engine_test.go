package aurafx

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/confluence"
	"aurafx-engine/internal/mtf"
)

var londonMorning = time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)

// uptrend has swing highs at 2, 7, 12 and swing lows at 4, 9, closing in
// the London killzone
func uptrend() []analysis.Candle {
	values := []float64{10, 12, 14, 12, 10.5, 12.5, 15, 17, 15, 12, 14, 16, 18, 16, 14}
	candles := make([]analysis.Candle, len(values))
	for i, m := range values {
		candles[i] = analysis.Candle{
			Time:   londonMorning.Add(time.Duration(i) * 15 * time.Minute).UnixMilli(),
			Open:   m,
			High:   m + 0.5,
			Low:    m - 0.5,
			Close:  m,
			Volume: 100 + float64(i),
		}
	}
	return candles
}

func direction(d analysis.Direction) *analysis.Direction { return &d }

func TestAnalyzeUptrend(t *testing.T) {
	result, err := Analyze(uptrend(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, analysis.Bullish, result.Trend.Direction)
	assert.Len(t, result.Swings, 5)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, analysis.LondonOpen, result.Session.Killzone)
	assert.True(t, result.Session.IsActive)
	assert.Equal(t, 14.0, result.CurrentPrice)
	assert.Equal(t, 15, result.CandleCount)
	require.NotNil(t, result.Volume)
	assert.Equal(t, result.Confluence.PrimaryBias, result.Bias)
	assert.Equal(t, confluence.Long, result.Bias)
	assert.InDelta(t, 0.8, result.Confluence.TimeScore, 1e-9)
}

func TestAnalyzeActiveGaps(t *testing.T) {
	// bullish gaps at 10.5-11.5 and 12.5-13.5; price closes 0.3 above the second
	var candles []analysis.Candle
	for i, m := range []float64{10, 12, 14, 13.8} {
		candles = append(candles, analysis.Candle{
			Time:  londonMorning.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Open:  m,
			High:  m + 0.5,
			Low:   m - 0.5,
			Close: m,
		})
	}

	result, err := Analyze(candles, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, result.FairValueGaps, 2)
	assert.False(t, result.FairValueGaps[0].IsFilled)
	assert.False(t, result.FairValueGaps[1].IsFilled)

	require.Len(t, result.ActiveGaps, 1)
	assert.Equal(t, analysis.PriceRange{Low: 12.5, High: 13.5}, result.ActiveGaps[0].PriceRange)
	assert.Contains(t, result.Confluence.Notes,
		"Price 13.80000 trading at unfilled BULLISH fair value gap 12.50000-13.50000")
}

func TestAnalyzeEmptyInput(t *testing.T) {
	result, err := Analyze(nil, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, analysis.Range, result.Trend.Direction)
	assert.NotNil(t, result.Swings)
	assert.Empty(t, result.Swings)
	assert.Empty(t, result.Events)
	assert.Empty(t, result.Liquidity)
	assert.Empty(t, result.OrderBlocks)
	assert.Empty(t, result.FairValueGaps)
	assert.NotNil(t, result.ActiveGaps)
	assert.Empty(t, result.ActiveGaps)
	assert.Equal(t, analysis.NoKillzone, result.Session.Killzone)
	assert.Nil(t, result.Volume)
	assert.Equal(t, confluence.NoTrade, result.Bias)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"swings":[]`)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	candles := uptrend()
	opts := DefaultOptions()
	opts.HigherTimeframeBias = direction(analysis.Bullish)

	first, err := Analyze(candles, opts)
	require.NoError(t, err)
	second, err := Analyze(candles, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.Equal(t, uptrend(), candles, "input must not be modified")
}

func TestAnalyzeHigherTimeframeVeto(t *testing.T) {
	opts := DefaultOptions()
	opts.HigherTimeframeBias = direction(analysis.Bearish)

	result, err := Analyze(uptrend(), opts)
	require.NoError(t, err)
	assert.Equal(t, confluence.NoTrade, result.Bias)
	assert.True(t, result.Confluence.Vetoed)
}

func TestAnalyzeTrendOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.TrendDirectionOverride = direction(analysis.Range)

	result, err := Analyze(uptrend(), opts)
	require.NoError(t, err)
	assert.Equal(t, analysis.Range, result.Trend.Direction)
	assert.Contains(t, result.Trend.Reason, "overridden")
	assert.Empty(t, result.OrderBlocks)
	assert.Equal(t, confluence.NoTrade, result.Bias)
}

func TestAnalyzeParameterMisuse(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   error
	}{
		{"zero lookback", func(o *Options) { o.Lookback = 0 }, analysis.ErrInvalidLookback},
		{"negative tolerance", func(o *Options) { o.LiquidityTolerancePct = -1 }, analysis.ErrInvalidTolerance},
		{"nan tolerance", func(o *Options) { o.LiquidityTolerancePct = math.NaN() }, analysis.ErrInvalidTolerance},
		{"negative impulse", func(o *Options) { o.MinImpulsePct = -0.1 }, analysis.ErrInvalidThreshold},
		{"negative gap", func(o *Options) { o.MinGapPct = -0.1 }, analysis.ErrInvalidThreshold},
		{"offset too large", func(o *Options) { o.TzOffsetMinutes = 900 }, analysis.ErrInvalidTimezoneOffset},
		{"bad override", func(o *Options) { o.TrendDirectionOverride = direction("UP") }, analysis.ErrInvalidDirection},
		{"bad policy", func(o *Options) { o.MiddleBand = "average" }, confluence.ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := Analyze(uptrend(), opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		bias confluence.Bias
		want mtf.Direction
	}{
		{confluence.Long, mtf.Bullish},
		{confluence.Short, mtf.Bearish},
		{confluence.NoTrade, mtf.Neutral},
	}
	for _, tt := range tests {
		r := Result{Bias: tt.bias, Confluence: confluence.Breakdown{OverallScore: 0.77}}
		a := Assess(r, analysis.TF4h)
		assert.Equal(t, tt.want, a.Direction)
		assert.Equal(t, 77.0, a.Probability)
		assert.Equal(t, analysis.TF4h, a.Timeframe)
		assert.NoError(t, a.Validate())
	}
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, analysis.Bullish, DirectionOf(confluence.Long))
	assert.Equal(t, analysis.Bearish, DirectionOf(confluence.Short))
	assert.Equal(t, analysis.Range, DirectionOf(confluence.NoTrade))
}
