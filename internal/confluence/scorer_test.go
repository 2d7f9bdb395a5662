package confluence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurafx-engine/internal/analysis"
)

func dir(d analysis.Direction) *analysis.Direction { return &d }

var activeLondon = analysis.SessionState{
	Killzone: analysis.LondonOpen,
	IsActive: true,
	Window:   analysis.SessionWindow{Start: "07:00", End: "10:00"},
}

func strongBullishInput() Input {
	return Input{
		Trend:        analysis.Bullish,
		CurrentPrice: 105,
		OrderBlocks:  []analysis.OrderBlock{{Type: analysis.Demand, PriceRange: analysis.PriceRange{Low: 99, High: 100}}},
		FairValueGaps: []analysis.FairValueGap{
			{Direction: analysis.Bullish, PriceRange: analysis.PriceRange{Low: 101, High: 102}},
		},
		Pools:               []analysis.LiquidityPool{{Type: analysis.SSL, Price: 95}},
		Session:             activeLondon,
		HigherTimeframeBias: dir(analysis.Bullish),
	}
}

func TestScoreStrongSetup(t *testing.T) {
	b := NewScorer(FollowTrend).Score(strongBullishInput())

	assert.InDelta(t, 0.8, b.StructureScore, 1e-9)
	assert.InDelta(t, 0.7, b.LiquidityScore, 1e-9)
	assert.InDelta(t, 0.8, b.TrendScore, 1e-9)
	assert.InDelta(t, 0.8, b.TimeScore, 1e-9)
	assert.InDelta(t, 0.77, b.OverallScore, 1e-9)
	assert.InDelta(t, 0.77, b.Combined, 1e-9)
	assert.Equal(t, Long, b.PrimaryBias)
	assert.False(t, b.Vetoed)
	assert.Equal(t, "B+", b.Grade)
	assert.Equal(t, "High", b.Confidence)
	assert.NotEmpty(t, b.Notes)
}

func TestScoreBearishMirror(t *testing.T) {
	in := Input{
		Trend:         analysis.Bearish,
		CurrentPrice:  95,
		OrderBlocks:   []analysis.OrderBlock{{Type: analysis.Supply}},
		FairValueGaps: []analysis.FairValueGap{{Direction: analysis.Bearish}},
		Pools:         []analysis.LiquidityPool{{Type: analysis.BSL, Price: 100}},
		Session:       activeLondon,
	}
	b := NewScorer(FollowTrend).Score(in)
	assert.InDelta(t, 0.8, b.StructureScore, 1e-9)
	assert.InDelta(t, 0.7, b.LiquidityScore, 1e-9)
	assert.InDelta(t, 0.5, b.TrendScore, 1e-9)
	assert.Equal(t, Short, b.PrimaryBias)
}

func TestScoreHigherTimeframeVeto(t *testing.T) {
	in := strongBullishInput()
	in.HigherTimeframeBias = dir(analysis.Bearish)

	b := NewScorer(FollowTrend).Score(in)
	assert.InDelta(t, 0.2, b.TrendScore, 1e-9)
	assert.Equal(t, NoTrade, b.PrimaryBias)
	assert.True(t, b.Vetoed)
	assert.Contains(t, b.Notes, "Higher timeframe veto: no trade")
}

func TestScoreRangeHigherTimeframeCountsAsNone(t *testing.T) {
	in := strongBullishInput()
	in.HigherTimeframeBias = dir(analysis.Range)

	b := NewScorer(FollowTrend).Score(in)
	assert.InDelta(t, 0.5, b.TrendScore, 1e-9)
	assert.False(t, b.Vetoed)
	assert.Equal(t, Long, b.PrimaryBias)
}

func TestScoreOpposingStructureDominatesImbalances(t *testing.T) {
	in := strongBullishInput()
	in.Events = []analysis.StructureEvent{{Type: analysis.CHOCH, Direction: analysis.Bearish, AtIndex: 9}}

	b := NewScorer(FollowTrend).Score(in)
	assert.InDelta(t, 0.6, b.StructureScore, 1e-9)
}

func TestScoreNotesLastEventAndActiveGaps(t *testing.T) {
	in := strongBullishInput()
	in.Events = []analysis.StructureEvent{
		{Type: analysis.BOS, Direction: analysis.Bullish, AtIndex: 4},
		{Type: analysis.BOS, Direction: analysis.Bullish, AtIndex: 7},
	}
	in.ActiveGaps = in.FairValueGaps
	in.CurrentPrice = 102.2

	b := NewScorer(FollowTrend).Score(in)

	assert.Contains(t, b.Notes, "Last structure event: BOS BULLISH at index 7")
	assert.Contains(t, b.Notes, "Price 102.20000 trading at unfilled BULLISH fair value gap 101.00000-102.00000")

	// notes never move the score
	plain := strongBullishInput()
	plain.CurrentPrice = 102.2
	plain.Events = in.Events
	assert.Equal(t, NewScorer(FollowTrend).Score(plain).OverallScore, b.OverallScore)
}

func TestScoreWeakSetup(t *testing.T) {
	in := Input{
		Trend:        analysis.Bullish,
		CurrentPrice: 100,
		Events:       []analysis.StructureEvent{{Type: analysis.BOS, Direction: analysis.Bearish}},
		Pools: []analysis.LiquidityPool{
			{Type: analysis.BSL, Price: 110},
			{Type: analysis.SSL, Price: 105}, // above price, not a sweep target
		},
		Session: analysis.InactiveSession(),
	}

	b := NewScorer(FollowTrend).Score(in)
	assert.InDelta(t, 0.3, b.StructureScore, 1e-9)
	assert.InDelta(t, 0.4, b.LiquidityScore, 1e-9)
	assert.InDelta(t, 0.4, b.TimeScore, 1e-9)
	assert.InDelta(t, 0.37, b.Combined, 1e-9)
	assert.Equal(t, NoTrade, b.PrimaryBias)
	assert.False(t, b.Vetoed)
}

func TestScoreMiddleBandPolicy(t *testing.T) {
	in := Input{Trend: analysis.Bullish, CurrentPrice: 100, Session: analysis.InactiveSession()}

	follow := NewScorer(FollowTrend).Score(in)
	assert.InDelta(t, 0.5, follow.Combined, 1e-9)
	assert.Equal(t, Long, follow.PrimaryBias)

	strict := NewScorer(NoTradeInMiddle).Score(in)
	assert.Equal(t, NoTrade, strict.PrimaryBias)
}

func TestScoreRangeTrendNeverTrades(t *testing.T) {
	in := strongBullishInput()
	in.Trend = analysis.Range
	in.HigherTimeframeBias = nil

	b := NewScorer(FollowTrend).Score(in)
	assert.Equal(t, NoTrade, b.PrimaryBias)
}

func TestSetWeights(t *testing.T) {
	s := NewScorer(FollowTrend)
	require.NoError(t, s.SetWeights(0.25, 0.25, 0.25, 0.25))

	b := s.Score(strongBullishInput())
	assert.InDelta(t, (0.8+0.7+0.8+0.8)/4, b.OverallScore, 1e-9)

	assert.ErrorIs(t, s.SetWeights(0.5, 0.5, 0.5, 0), ErrInvalidWeights)
}

func TestParseMiddleBandPolicy(t *testing.T) {
	p, err := ParseMiddleBandPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FollowTrend, p)

	p, err = ParseMiddleBandPolicy("NO_TRADE")
	require.NoError(t, err)
	assert.Equal(t, NoTradeInMiddle, p)

	_, err = ParseMiddleBandPolicy("average")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestScoreToGrade(t *testing.T) {
	tests := []struct {
		score float64
		grade string
		conf  string
	}{
		{0.95, "A+", "Very High"},
		{0.86, "A", "Very High"},
		{0.80, "B+", "High"},
		{0.72, "B", "Medium"},
		{0.65, "C", "Medium"},
		{0.55, "D", "Low"},
		{0.30, "F", "Very Low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, scoreToGrade(tt.score), "score %.2f", tt.score)
		assert.Equal(t, tt.conf, scoreToConfidence(tt.score), "score %.2f", tt.score)
	}
}
