package analysis

import (
	"fmt"
	"math"
)

// DefaultMinGapPct is the smallest gap, as a percent of the reference price,
// that is not discarded as noise
const DefaultMinGapPct = 0.05

// FairValueGap represents a 3-candle price void
type FairValueGap struct {
	Direction  Direction  `json:"direction"`
	PriceRange PriceRange `json:"priceRange"`
	StartIndex int        `json:"startIndex"`
	EndIndex   int        `json:"endIndex"`
	IsFilled   bool       `json:"isFilled"`
}

// FVGDetector detects Fair Value Gaps in candlestick data
type FVGDetector struct {
	minGapPct float64 // Minimum gap size as percentage
}

// NewFVGDetector creates a new FVG detector
func NewFVGDetector(minGapPct float64) (*FVGDetector, error) {
	if minGapPct < 0 || math.IsNaN(minGapPct) {
		return nil, fmt.Errorf("%w: min gap %v", ErrInvalidThreshold, minGapPct)
	}
	return &FVGDetector{minGapPct: minGapPct}, nil
}

// DetectFairValueGaps identifies all Fair Value Gaps in the given candles
func (fd *FVGDetector) DetectFairValueGaps(candles []Candle) []FairValueGap {
	gaps := make([]FairValueGap, 0)
	if len(candles) < 3 {
		return gaps
	}

	for i := 0; i < len(candles)-2; i++ {
		a := candles[i]
		b := candles[i+1] // Middle candle (gap creator)
		c := candles[i+2]

		// Bullish: middle and third candle both hold above the first high
		if b.Low > a.High && c.Low > a.High {
			gap := FairValueGap{
				Direction:  Bullish,
				PriceRange: PriceRange{Low: a.High, High: b.Low},
				StartIndex: i,
				EndIndex:   i + 2,
			}
			if fd.largeEnough(gap, a.High) {
				gap.IsFilled = isGapFilled(gap, candles)
				gaps = append(gaps, gap)
			}
			continue
		}

		// Bearish: middle and third candle both hold below the first low
		if b.High < a.Low && c.High < a.Low {
			gap := FairValueGap{
				Direction:  Bearish,
				PriceRange: PriceRange{Low: b.High, High: a.Low},
				StartIndex: i,
				EndIndex:   i + 2,
			}
			if fd.largeEnough(gap, a.Low) {
				gap.IsFilled = isGapFilled(gap, candles)
				gaps = append(gaps, gap)
			}
		}
	}

	return gaps
}

func (fd *FVGDetector) largeEnough(gap FairValueGap, reference float64) bool {
	if reference <= 0 {
		return false
	}
	return gap.PriceRange.Size()/reference*100 >= fd.minGapPct
}

// isGapFilled checks whether price action after the gap traded back into it
func isGapFilled(gap FairValueGap, candles []Candle) bool {
	for j := gap.EndIndex + 1; j < len(candles); j++ {
		if gap.Direction == Bullish && candles[j].Low <= gap.PriceRange.High {
			return true
		}
		if gap.Direction == Bearish && candles[j].High >= gap.PriceRange.Low {
			return true
		}
	}
	return false
}

// IsPriceInGap checks if current price is within a gap
func (fd *FVGDetector) IsPriceInGap(price float64, gap FairValueGap) bool {
	return gap.PriceRange.Contains(price)
}

// IsPriceNearGap checks if price is within proximityPct of the gap height
func (fd *FVGDetector) IsPriceNearGap(price float64, gap FairValueGap, proximityPct float64) bool {
	if fd.IsPriceInGap(price, gap) {
		return true
	}

	threshold := gap.PriceRange.Size() * (proximityPct / 100)
	distanceToTop := math.Abs(price - gap.PriceRange.High)
	distanceToBottom := math.Abs(price - gap.PriceRange.Low)

	return distanceToTop <= threshold || distanceToBottom <= threshold
}

// UnfilledGaps returns only gaps that haven't been filled yet
func UnfilledGaps(gaps []FairValueGap) []FairValueGap {
	unfilled := make([]FairValueGap, 0, len(gaps))
	for _, gap := range gaps {
		if !gap.IsFilled {
			unfilled = append(unfilled, gap)
		}
	}
	return unfilled
}
