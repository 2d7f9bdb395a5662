package analysis

// SwingType marks a structure point as a local high or low
type SwingType string

const (
	SwingHigh SwingType = "SWING_HIGH"
	SwingLow  SwingType = "SWING_LOW"
)

// DefaultSwingLookback is the number of candles on each side of a swing
const DefaultSwingLookback = 2

// StructurePoint is a confirmed swing high or swing low
type StructurePoint struct {
	Type  SwingType `json:"type"`
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Time  int64     `json:"time"`
}

// DetectSwingPoints returns swing highs and lows in index order.
//
// Candle i is a swing high when its high is strictly greater than every other
// high in [i-k, i+k]; swing lows mirror this on lows. The first and last k
// candles are never candidates, so fewer than 2k+1 candles yields no points.
// When one candle qualifies as both, the high is emitted first.
func DetectSwingPoints(candles []Candle, k int) ([]StructurePoint, error) {
	if k <= 0 {
		return nil, ErrInvalidLookback
	}

	points := make([]StructurePoint, 0)
	for i := k; i < len(candles)-k; i++ {
		isHigh, isLow := true, true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			points = append(points, StructurePoint{
				Type:  SwingHigh,
				Index: i,
				Price: candles[i].High,
				Time:  candles[i].Time,
			})
		}
		if isLow {
			points = append(points, StructurePoint{
				Type:  SwingLow,
				Index: i,
				Price: candles[i].Low,
				Time:  candles[i].Time,
			})
		}
	}

	return points, nil
}

// FilterSwings returns the points of the given type, preserving order
func FilterSwings(points []StructurePoint, t SwingType) []StructurePoint {
	out := make([]StructurePoint, 0, len(points))
	for _, p := range points {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}
