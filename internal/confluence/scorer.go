package confluence

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"aurafx-engine/internal/analysis"
)

// Bias is the final directional call
type Bias string

const (
	Long    Bias = "LONG"
	Short   Bias = "SHORT"
	NoTrade Bias = "NO_TRADE"
)

// Valid reports whether b is a known bias
func (b Bias) Valid() bool {
	switch b {
	case Long, Short, NoTrade:
		return true
	}
	return false
}

// BiasFor maps a trend direction onto LONG/SHORT; RANGE maps to NO_TRADE
func BiasFor(d analysis.Direction) Bias {
	switch d {
	case analysis.Bullish:
		return Long
	case analysis.Bearish:
		return Short
	}
	return NoTrade
}

// MiddleBandPolicy decides the bias when the combined score is neither
// clearly strong nor clearly weak
type MiddleBandPolicy string

const (
	FollowTrend     MiddleBandPolicy = "follow_trend"
	NoTradeInMiddle MiddleBandPolicy = "no_trade"
)

// DefaultMiddleBand follows the trend in the middle band
const DefaultMiddleBand = FollowTrend

// Valid reports whether p is a known policy
func (p MiddleBandPolicy) Valid() bool {
	return p == FollowTrend || p == NoTradeInMiddle
}

// ParseMiddleBandPolicy accepts the policy names case-insensitively; empty
// selects the default
func ParseMiddleBandPolicy(s string) (MiddleBandPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultMiddleBand, nil
	}
	p := MiddleBandPolicy(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	return p, nil
}

var (
	ErrInvalidWeights = errors.New("weights must sum to 1.0")
	ErrInvalidPolicy  = errors.New("unknown middle band policy")
)

// Bias resolution thresholds on the combined score
const (
	StrongThreshold = 0.65
	WeakThreshold   = 0.40
	VetoThreshold   = 0.30
)

// Input is everything the scorer reads. HigherTimeframeBias is nil when no
// higher timeframe read was supplied.
type Input struct {
	Trend               analysis.Direction
	CurrentPrice        float64
	Events              []analysis.StructureEvent
	Pools               []analysis.LiquidityPool
	OrderBlocks         []analysis.OrderBlock
	FairValueGaps       []analysis.FairValueGap
	ActiveGaps          []analysis.FairValueGap // unfilled gaps price is trading in or near
	Session             analysis.SessionState
	HigherTimeframeBias *analysis.Direction
}

// Breakdown is the explainable result of scoring. The four sub-scores are
// 0.0 to 1.0 and map onto the weighted factors as follows:
//
//   - StructureScore: trend alignment of order blocks, fair value gaps and
//     counter-trend structure events (weight 0.35)
//   - LiquidityScore: resting liquidity on the side price should draw to
//     (weight 0.30)
//   - TrendScore: higher timeframe agreement with the trend, not trend
//     strength; see TrendResult.Strength for that (weight 0.20)
//   - TimeScore: killzone activity (weight 0.15)
type Breakdown struct {
	StructureScore float64 `json:"structureScore"`
	LiquidityScore float64 `json:"liquidityScore"`
	TrendScore     float64 `json:"trendScore"`
	TimeScore      float64 `json:"timeScore"`

	OverallScore float64 `json:"overallScore"`
	Combined     float64 `json:"combined"`
	PrimaryBias  Bias    `json:"primaryBias"`
	Vetoed       bool    `json:"vetoed"`

	Grade      string   `json:"grade"`      // "A+", "A", "B+", "B", "C", "D", "F"
	Confidence string   `json:"confidence"` // "Very High" .. "Very Low"
	Notes      []string `json:"notes"`
}

// Scorer calculates signal confluence
type Scorer struct {
	// Weights for the overall score (should sum to 1.0)
	alignmentWeight float64
	liquidityWeight float64
	agreementWeight float64
	timeWeight      float64

	middleBand MiddleBandPolicy
}

// NewScorer creates a scorer with default weights
func NewScorer(policy MiddleBandPolicy) *Scorer {
	if !policy.Valid() {
		policy = DefaultMiddleBand
	}
	return &Scorer{
		alignmentWeight: 0.35, // 35% - Most important
		liquidityWeight: 0.30, // 30%
		agreementWeight: 0.20, // 20%
		timeWeight:      0.15, // 15%
		middleBand:      policy,
	}
}

// SetWeights allows customizing the overall score weights
func (s *Scorer) SetWeights(alignment, liquidity, agreement, timeOfDay float64) error {
	total := alignment + liquidity + agreement + timeOfDay
	if math.IsNaN(total) || total < 0.99 || total > 1.01 {
		return fmt.Errorf("%w: got %.4f", ErrInvalidWeights, total)
	}
	s.alignmentWeight = alignment
	s.liquidityWeight = liquidity
	s.agreementWeight = agreement
	s.timeWeight = timeOfDay
	return nil
}

// Score computes the four sub-scores, the weighted overall score and the bias
func (s *Scorer) Score(in Input) Breakdown {
	b := Breakdown{Notes: make([]string, 0)}

	// 1. Alignment
	b.StructureScore = s.alignmentScore(in, &b.Notes)

	// 2. Liquidity
	b.LiquidityScore = s.liquidityScore(in, &b.Notes)

	if last, ok := analysis.LastEvent(in.Events); ok {
		b.Notes = append(b.Notes, fmt.Sprintf("Last structure event: %s %s at index %d",
			last.Type, last.Direction, last.AtIndex))
	}
	for _, gap := range in.ActiveGaps {
		b.Notes = append(b.Notes, fmt.Sprintf("Price %.5f trading at unfilled %s fair value gap %.5f-%.5f",
			in.CurrentPrice, gap.Direction, gap.PriceRange.Low, gap.PriceRange.High))
	}

	// 3. Timeframe agreement
	htfSupplied := in.HigherTimeframeBias != nil && *in.HigherTimeframeBias != analysis.Range
	switch {
	case !htfSupplied:
		b.TrendScore = 0.5
		b.Notes = append(b.Notes, "No higher timeframe bias supplied")
	case *in.HigherTimeframeBias == in.Trend:
		b.TrendScore = 0.8
		b.Notes = append(b.Notes, fmt.Sprintf("Higher timeframe bias %s agrees with trend", *in.HigherTimeframeBias))
	default:
		b.TrendScore = 0.2
		b.Notes = append(b.Notes, fmt.Sprintf("Higher timeframe bias %s conflicts with trend %s", *in.HigherTimeframeBias, in.Trend))
	}

	// 4. Time of day
	if in.Session.IsActive {
		b.TimeScore = 0.8
		b.Notes = append(b.Notes, fmt.Sprintf("Inside %s killzone", in.Session.Killzone))
	} else {
		b.TimeScore = 0.4
		b.Notes = append(b.Notes, "Outside killzones")
	}

	b.OverallScore = clamp(
		b.StructureScore*s.alignmentWeight +
			b.LiquidityScore*s.liquidityWeight +
			b.TrendScore*s.agreementWeight +
			b.TimeScore*s.timeWeight)

	b.Combined = b.StructureScore*0.5 + b.LiquidityScore*0.3 + b.TrendScore*0.2
	b.PrimaryBias, b.Vetoed = s.resolveBias(in.Trend, htfSupplied, b.TrendScore, b.Combined)
	if b.Vetoed {
		b.Notes = append(b.Notes, "Higher timeframe veto: no trade")
	}

	b.Grade = scoreToGrade(b.OverallScore)
	b.Confidence = scoreToConfidence(b.OverallScore)

	return b
}

func (s *Scorer) alignmentScore(in Input, notes *[]string) float64 {
	score := 0.5

	if in.Trend != analysis.Range {
		for _, ob := range in.OrderBlocks {
			if ob.Direction() == in.Trend {
				score += 0.2
				*notes = append(*notes, fmt.Sprintf("%s order block at %.5f-%.5f supports trend",
					ob.Type, ob.PriceRange.Low, ob.PriceRange.High))
				break
			}
		}
		for _, gap := range in.FairValueGaps {
			if gap.Direction == in.Trend {
				score += 0.1
				*notes = append(*notes, fmt.Sprintf("%s fair value gap at %.5f-%.5f supports trend",
					gap.Direction, gap.PriceRange.Low, gap.PriceRange.High))
				break
			}
		}
		opposing := in.Trend.Opposite()
		for _, e := range in.Events {
			if e.Direction == opposing {
				score -= 0.2
				*notes = append(*notes, fmt.Sprintf("%s %s against trend at index %d", e.Type, e.Direction, e.AtIndex))
				break
			}
		}
	}

	return clamp(score)
}

func (s *Scorer) liquidityScore(in Input, notes *[]string) float64 {
	score := 0.5

	switch in.Trend {
	case analysis.Bullish:
		if below := analysis.PoolsBelow(in.Pools, analysis.SSL, in.CurrentPrice); len(below) > 0 {
			score += 0.2
			*notes = append(*notes, fmt.Sprintf("Sell-side liquidity resting below price at %.5f", below[len(below)-1].Price))
		}
	case analysis.Bearish:
		if above := analysis.PoolsAbove(in.Pools, analysis.BSL, in.CurrentPrice); len(above) > 0 {
			score += 0.2
			*notes = append(*notes, fmt.Sprintf("Buy-side liquidity resting above price at %.5f", above[0].Price))
		}
	}

	hasBSL, hasSSL := false, false
	for _, p := range in.Pools {
		switch p.Type {
		case analysis.BSL:
			hasBSL = true
		case analysis.SSL:
			hasSSL = true
		}
	}
	if hasBSL && hasSSL {
		score -= 0.1
		*notes = append(*notes, "Liquidity balanced on both sides")
	}

	return clamp(score)
}

// resolveBias applies the hard veto first, then the combined-score bands
func (s *Scorer) resolveBias(trend analysis.Direction, htfSupplied bool, agreement, combined float64) (Bias, bool) {
	if htfSupplied && agreement < VetoThreshold {
		return NoTrade, true
	}

	trendBias := BiasFor(trend)
	switch {
	case combined >= StrongThreshold:
		return trendBias, false
	case combined <= WeakThreshold:
		return NoTrade, false
	case s.middleBand == NoTradeInMiddle:
		return NoTrade, false
	}
	return trendBias, false
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// scoreToGrade converts numerical score to letter grade
func scoreToGrade(score float64) string {
	if score >= 0.90 {
		return "A+"
	} else if score >= 0.85 {
		return "A"
	} else if score >= 0.75 {
		return "B+"
	} else if score >= 0.70 {
		return "B"
	} else if score >= 0.60 {
		return "C"
	} else if score >= 0.50 {
		return "D"
	}
	return "F"
}

// scoreToConfidence converts score to confidence level
func scoreToConfidence(score float64) string {
	if score >= 0.85 {
		return "Very High"
	} else if score >= 0.75 {
		return "High"
	} else if score >= 0.60 {
		return "Medium"
	} else if score >= 0.45 {
		return "Low"
	}
	return "Very Low"
}
