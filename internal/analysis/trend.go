package analysis

import "fmt"

// TrendResult is the macro direction read from swing progression
type TrendResult struct {
	Direction   Direction `json:"direction"`
	Reason      string    `json:"reason"`
	HigherHighs int       `json:"higherHighs"`
	HigherLows  int       `json:"higherLows"`
	LowerHighs  int       `json:"lowerHighs"`
	LowerLows   int       `json:"lowerLows"`
	Strength    float64   `json:"strength"` // 0.0 to 1.0
}

// ClassifyTrend determines BULLISH/BEARISH/RANGE from the most recent swing
// highs and lows. Fewer than two candles yields RANGE with a reason rather
// than an error.
func ClassifyTrend(candles []Candle) TrendResult {
	if len(candles) < 2 {
		return TrendResult{
			Direction: Range,
			Reason:    fmt.Sprintf("insufficient candles: need at least 2, got %d", len(candles)),
		}
	}

	lookback := DefaultSwingLookback
	if len(candles) < 2*lookback+1 {
		lookback = 1
	}

	// lookback is always positive here
	swings, _ := DetectSwingPoints(candles, lookback)
	highs := FilterSwings(swings, SwingHigh)
	lows := FilterSwings(swings, SwingLow)

	result := TrendResult{
		HigherHighs: countRising(highs),
		HigherLows:  countRising(lows),
		LowerHighs:  countFalling(highs),
		LowerLows:   countFalling(lows),
	}

	if len(highs) < 2 || len(lows) < 2 {
		result.Direction, result.Reason = compareEndpoints(candles[0], candles[len(candles)-1])
		result.Strength = trendStrength(result)
		return result
	}

	prevHigh, lastHigh := highs[len(highs)-2], highs[len(highs)-1]
	prevLow, lastLow := lows[len(lows)-2], lows[len(lows)-1]

	switch {
	case lastHigh.Price > prevHigh.Price && lastLow.Price > prevLow.Price:
		result.Direction = Bullish
		result.Reason = fmt.Sprintf("higher high %.5f > %.5f and higher low %.5f > %.5f",
			lastHigh.Price, prevHigh.Price, lastLow.Price, prevLow.Price)
	case lastHigh.Price < prevHigh.Price && lastLow.Price < prevLow.Price:
		result.Direction = Bearish
		result.Reason = fmt.Sprintf("lower high %.5f < %.5f and lower low %.5f < %.5f",
			lastHigh.Price, prevHigh.Price, lastLow.Price, prevLow.Price)
	default:
		result.Direction = Range
		result.Reason = "mixed swing progression"
	}

	result.Strength = trendStrength(result)
	return result
}

// compareEndpoints is used when there is not enough swing structure
func compareEndpoints(first, last Candle) (Direction, string) {
	switch {
	case last.High > first.High && last.Low > first.Low:
		return Bullish, "insufficient swing structure; last candle above first"
	case last.High < first.High && last.Low < first.Low:
		return Bearish, "insufficient swing structure; last candle below first"
	default:
		return Range, "insufficient swing structure; endpoints overlap"
	}
}

func countRising(points []StructurePoint) int {
	count := 0
	for i := 1; i < len(points); i++ {
		if points[i].Price > points[i-1].Price {
			count++
		}
	}
	return count
}

func countFalling(points []StructurePoint) int {
	count := 0
	for i := 1; i < len(points); i++ {
		if points[i].Price < points[i-1].Price {
			count++
		}
	}
	return count
}

// trendStrength is the share of swing transitions that agree with the trend
func trendStrength(r TrendResult) float64 {
	total := r.HigherHighs + r.HigherLows + r.LowerHighs + r.LowerLows
	if total == 0 {
		return 0.0
	}

	switch r.Direction {
	case Bullish:
		return float64(r.HigherHighs+r.HigherLows) / float64(total)
	case Bearish:
		return float64(r.LowerHighs+r.LowerLows) / float64(total)
	}

	// Sideways trend has low strength
	return 0.3
}
