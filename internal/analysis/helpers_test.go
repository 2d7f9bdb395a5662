package analysis

// mids builds candles whose high/low sit half a point around each mid price
func mids(values ...float64) []Candle {
	candles := make([]Candle, len(values))
	for i, m := range values {
		candles[i] = Candle{
			Time:  int64(i) * 60_000,
			Open:  m,
			High:  m + 0.5,
			Low:   m - 0.5,
			Close: m,
		}
	}
	return candles
}

// risingWave has swing highs at 2, 7, 12 and swing lows at 4, 9 for k=2
var risingWave = []float64{10, 12, 14, 12, 10.5, 12.5, 15, 17, 15, 12, 14, 16, 18, 16, 14}

func mirrored(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = 30 - v
	}
	return out
}

// lcg is a tiny deterministic generator for property style tests
type lcg uint64

func (l *lcg) next() float64 {
	*l = *l*6364136223846793005 + 1442695040888963407
	return float64(uint64(*l)>>11) / float64(1<<53)
}

func randomWalk(seed uint64, n int) []Candle {
	r := lcg(seed)
	candles := make([]Candle, n)
	price := 100.0
	for i := range candles {
		open := price
		price += (r.next() - 0.5) * 4
		high := maxOf(open, price) + r.next()*2
		low := minOf(open, price) - r.next()*2
		candles[i] = Candle{Time: int64(i) * 60_000, Open: open, High: high, Low: low, Close: price}
	}
	return candles
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
