// Package aurafx runs the full single-timeframe pipeline over a candle series
// and produces one explainable bias.
package aurafx

import (
	"fmt"
	"math"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/confluence"
	"aurafx-engine/internal/mtf"
)

// Options tunes the pipeline. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	Lookback               int                         `json:"lookback" yaml:"lookback"`
	LiquidityTolerancePct  float64                     `json:"liquidityTolerancePct" yaml:"liquidity_tolerance_pct"`
	MinImpulsePct          float64                     `json:"minImpulsePct" yaml:"min_impulse_pct"`
	MinGapPct              float64                     `json:"minGapPct" yaml:"min_gap_pct"`
	TzOffsetMinutes        int                         `json:"tzOffsetMinutes" yaml:"tz_offset_minutes"`
	TrendDirectionOverride *analysis.Direction         `json:"trendDirectionOverride,omitempty" yaml:"trend_direction_override,omitempty"`
	HigherTimeframeBias    *analysis.Direction         `json:"higherTimeframeBias,omitempty" yaml:"higher_timeframe_bias,omitempty"`
	MiddleBand             confluence.MiddleBandPolicy `json:"middleBand" yaml:"middle_band"`
}

// GapProximityPct is how close price must be to an unfilled gap, as a
// percent of the gap's height, for the gap to count as active
const GapProximityPct = 50.0

// DefaultOptions returns the standard detector thresholds
func DefaultOptions() Options {
	return Options{
		Lookback:              analysis.DefaultSwingLookback,
		LiquidityTolerancePct: analysis.DefaultLiquidityTolerancePct,
		MinImpulsePct:         analysis.DefaultMinImpulsePct,
		MinGapPct:             analysis.DefaultMinGapPct,
		MiddleBand:            confluence.DefaultMiddleBand,
	}
}

// Validate reports parameter misuse with the matching analysis sentinel
func (o Options) Validate() error {
	if o.Lookback <= 0 {
		return fmt.Errorf("%w: got %d", analysis.ErrInvalidLookback, o.Lookback)
	}
	if o.LiquidityTolerancePct < 0 || math.IsNaN(o.LiquidityTolerancePct) {
		return fmt.Errorf("%w: liquidity tolerance %v", analysis.ErrInvalidTolerance, o.LiquidityTolerancePct)
	}
	if o.MinImpulsePct < 0 || math.IsNaN(o.MinImpulsePct) {
		return fmt.Errorf("%w: min impulse %v", analysis.ErrInvalidThreshold, o.MinImpulsePct)
	}
	if o.MinGapPct < 0 || math.IsNaN(o.MinGapPct) {
		return fmt.Errorf("%w: min gap %v", analysis.ErrInvalidThreshold, o.MinGapPct)
	}
	if o.TzOffsetMinutes > analysis.MaxTimezoneOffsetMinutes || o.TzOffsetMinutes < -analysis.MaxTimezoneOffsetMinutes {
		return fmt.Errorf("%w: %d", analysis.ErrInvalidTimezoneOffset, o.TzOffsetMinutes)
	}
	if o.TrendDirectionOverride != nil && !o.TrendDirectionOverride.Valid() {
		return fmt.Errorf("%w: trend override %q", analysis.ErrInvalidDirection, *o.TrendDirectionOverride)
	}
	if o.HigherTimeframeBias != nil && !o.HigherTimeframeBias.Valid() {
		return fmt.Errorf("%w: higher timeframe bias %q", analysis.ErrInvalidDirection, *o.HigherTimeframeBias)
	}
	if o.MiddleBand != "" && !o.MiddleBand.Valid() {
		return fmt.Errorf("%w: %q", confluence.ErrInvalidPolicy, o.MiddleBand)
	}
	return nil
}

// Result is everything the pipeline derived from one candle series
type Result struct {
	Bias          confluence.Bias           `json:"bias"`
	Trend         analysis.TrendResult      `json:"trend"`
	Swings        []analysis.StructurePoint `json:"swings"`
	Events        []analysis.StructureEvent `json:"events"`
	Liquidity     []analysis.LiquidityPool  `json:"liquidity"`
	OrderBlocks   []analysis.OrderBlock     `json:"orderBlocks"`
	FairValueGaps []analysis.FairValueGap   `json:"fairValueGaps"`
	ActiveGaps    []analysis.FairValueGap   `json:"activeGaps"`
	Session       analysis.SessionState     `json:"session"`
	Volume        *analysis.VolumeProfile   `json:"volume,omitempty"`
	Confluence    confluence.Breakdown      `json:"confluence"`
	CurrentPrice  float64                   `json:"currentPrice"`
	CandleCount   int                       `json:"candleCount"`
	AsOf          int64                     `json:"asOf"`
}

// Analyze runs every detector and the confluence scorer. Short or empty input
// is not an error: it produces empty collections, a RANGE trend and NO_TRADE.
// The candle slice is never modified.
func Analyze(candles []analysis.Candle, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	policy := opts.MiddleBand
	if policy == "" {
		policy = confluence.DefaultMiddleBand
	}

	trend := analysis.ClassifyTrend(candles)
	if opts.TrendDirectionOverride != nil {
		trend.Direction = *opts.TrendDirectionOverride
		trend.Reason = fmt.Sprintf("direction overridden to %s (%s)", trend.Direction, trend.Reason)
	}

	swings, err := analysis.DetectSwingPoints(candles, opts.Lookback)
	if err != nil {
		return Result{}, fmt.Errorf("detect swings: %w", err)
	}
	events := analysis.DetectStructureEvents(swings)

	pools, err := analysis.MapLiquidity(candles, swings, opts.LiquidityTolerancePct)
	if err != nil {
		return Result{}, fmt.Errorf("map liquidity: %w", err)
	}

	blocks, err := analysis.DetectOrderBlocks(candles, trend.Direction, opts.MinImpulsePct)
	if err != nil {
		return Result{}, fmt.Errorf("detect order blocks: %w", err)
	}

	fvgDetector, err := analysis.NewFVGDetector(opts.MinGapPct)
	if err != nil {
		return Result{}, fmt.Errorf("detect fair value gaps: %w", err)
	}
	gaps := fvgDetector.DetectFairValueGaps(candles)

	result := Result{
		Trend:         trend,
		Swings:        swings,
		Events:        events,
		Liquidity:     pools,
		OrderBlocks:   blocks,
		FairValueGaps: gaps,
		ActiveGaps:    make([]analysis.FairValueGap, 0),
		Session:       analysis.InactiveSession(),
		CandleCount:   len(candles),
	}

	if len(candles) > 0 {
		last := candles[len(candles)-1]
		result.CurrentPrice = last.Close
		result.AsOf = last.Time
		result.Session, err = analysis.SessionAt(last.Time, opts.TzOffsetMinutes)
		if err != nil {
			return Result{}, fmt.Errorf("session clock: %w", err)
		}
		result.Volume = analysis.NewVolumeAnalyzer(analysis.DefaultVolumePeriod).AnalyzeVolume(candles)

		for _, gap := range analysis.UnfilledGaps(gaps) {
			if fvgDetector.IsPriceNearGap(result.CurrentPrice, gap, GapProximityPct) {
				result.ActiveGaps = append(result.ActiveGaps, gap)
			}
		}
	}

	result.Confluence = confluence.NewScorer(policy).Score(confluence.Input{
		Trend:               trend.Direction,
		CurrentPrice:        result.CurrentPrice,
		Events:              events,
		Pools:               pools,
		OrderBlocks:         blocks,
		FairValueGaps:       gaps,
		ActiveGaps:          result.ActiveGaps,
		Session:             result.Session,
		HigherTimeframeBias: opts.HigherTimeframeBias,
	})
	result.Bias = result.Confluence.PrimaryBias

	return result, nil
}

// Assess converts a result into the assessment the conflict resolver takes.
// The probability is the overall confluence score on a 0-100 scale, rounded
// to two decimals.
func Assess(r Result, tf analysis.Timeframe) mtf.TimeframeAssessment {
	direction := mtf.Neutral
	switch r.Bias {
	case confluence.Long:
		direction = mtf.Bullish
	case confluence.Short:
		direction = mtf.Bearish
	}

	return mtf.TimeframeAssessment{
		Timeframe:   tf,
		Direction:   direction,
		Probability: math.Round(r.Confluence.OverallScore*10000) / 100,
	}
}

// DirectionOf maps a bias back onto a trend direction, for feeding one
// timeframe's result into another as its higher timeframe bias
func DirectionOf(b confluence.Bias) analysis.Direction {
	switch b {
	case confluence.Long:
		return analysis.Bullish
	case confluence.Short:
		return analysis.Bearish
	}
	return analysis.Range
}
