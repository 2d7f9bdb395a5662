package analysis

import (
	"fmt"
	"math"
)

// BlockType is the side of an order block
type BlockType string

const (
	Demand BlockType = "DEMAND"
	Supply BlockType = "SUPPLY"
)

// DefaultMinImpulsePct is the minimum breakout move, in percent, that
// qualifies the preceding candle as an order block
const DefaultMinImpulsePct = 0.15

// OrderBlock is the last opposing candle before an impulsive move
type OrderBlock struct {
	Type        BlockType  `json:"type"`
	OriginIndex int        `json:"originIndex"`
	PriceRange  PriceRange `json:"priceRange"`
	IsMitigated bool       `json:"isMitigated"`
}

// Direction returns the trend direction the block supports
func (ob OrderBlock) Direction() Direction {
	if ob.Type == Demand {
		return Bullish
	}
	return Bearish
}

// FindOrderBlocks returns every order block in index order regardless of trend.
//
// Candidates skip the first and last two candles. A down-closing candle whose
// successor closes above its high by at least minImpulsePct (measured from its
// low) is DEMAND; an up-closing candle whose successor closes below its low by
// at least minImpulsePct (measured from its high) is SUPPLY.
func FindOrderBlocks(candles []Candle, minImpulsePct float64) ([]OrderBlock, error) {
	if minImpulsePct < 0 || math.IsNaN(minImpulsePct) {
		return nil, fmt.Errorf("%w: min impulse %v", ErrInvalidThreshold, minImpulsePct)
	}

	blocks := make([]OrderBlock, 0)
	for i := 2; i <= len(candles)-3; i++ {
		curr, next := candles[i], candles[i+1]

		if curr.IsBearish() && next.Close > curr.High && curr.Low > 0 {
			impulse := (next.Close - curr.Low) / curr.Low * 100
			if impulse >= minImpulsePct {
				blocks = append(blocks, newOrderBlock(Demand, i, candles))
			}
			continue
		}

		if curr.IsBullish() && next.Close < curr.Low && curr.High > 0 {
			impulse := (curr.High - next.Close) / curr.High * 100
			if impulse >= minImpulsePct {
				blocks = append(blocks, newOrderBlock(Supply, i, candles))
			}
		}
	}

	return blocks, nil
}

// DetectOrderBlocks returns only the order blocks that agree with trend.
// RANGE matches neither side, so it yields no blocks.
func DetectOrderBlocks(candles []Candle, trend Direction, minImpulsePct float64) ([]OrderBlock, error) {
	all, err := FindOrderBlocks(candles, minImpulsePct)
	if err != nil {
		return nil, err
	}

	blocks := make([]OrderBlock, 0, len(all))
	for _, ob := range all {
		if trend != Range && ob.Direction() == trend {
			blocks = append(blocks, ob)
		}
	}
	return blocks, nil
}

func newOrderBlock(t BlockType, i int, candles []Candle) OrderBlock {
	ob := OrderBlock{
		Type:        t,
		OriginIndex: i,
		PriceRange:  PriceRange{Low: candles[i].Low, High: candles[i].High},
	}

	// Mitigation is any later revisit of the block after the impulse candle
	for j := i + 2; j < len(candles); j++ {
		if t == Demand && candles[j].Low <= ob.PriceRange.High {
			ob.IsMitigated = true
			break
		}
		if t == Supply && candles[j].High >= ob.PriceRange.Low {
			ob.IsMitigated = true
			break
		}
	}
	return ob
}
