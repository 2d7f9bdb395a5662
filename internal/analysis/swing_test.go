package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSwingPoints(t *testing.T) {
	points, err := DetectSwingPoints(mids(risingWave...), 2)
	require.NoError(t, err)

	highs := FilterSwings(points, SwingHigh)
	lows := FilterSwings(points, SwingLow)

	require.Len(t, highs, 3)
	assert.Equal(t, []int{2, 7, 12}, []int{highs[0].Index, highs[1].Index, highs[2].Index})
	assert.Equal(t, 14.5, highs[0].Price)
	assert.Equal(t, int64(7*60_000), highs[1].Time)

	require.Len(t, lows, 2)
	assert.Equal(t, 4, lows[0].Index)
	assert.Equal(t, 10.0, lows[0].Price)
	assert.Equal(t, 9, lows[1].Index)

	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i-1].Index, points[i].Index, "points must be in index order")
	}
}

func TestDetectSwingPointsStrictComparison(t *testing.T) {
	// A plateau of equal highs is not a swing high
	points, err := DetectSwingPoints(mids(1, 2, 3, 3, 2, 1), 1)
	require.NoError(t, err)
	assert.Empty(t, FilterSwings(points, SwingHigh))
}

func TestDetectSwingPointsShortInput(t *testing.T) {
	points, err := DetectSwingPoints(mids(1, 3, 1, 0), 2)
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)

	points, err = DetectSwingPoints(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDetectSwingPointsInvalidLookback(t *testing.T) {
	for _, k := range []int{0, -1} {
		_, err := DetectSwingPoints(mids(risingWave...), k)
		assert.ErrorIs(t, err, ErrInvalidLookback)
	}
}

func TestDetectSwingPointsHighBeforeLowOnSameIndex(t *testing.T) {
	candles := []Candle{
		{High: 10, Low: 9},
		{High: 20, Low: 1}, // outside bar: both a swing high and a swing low
		{High: 10, Low: 9},
	}
	points, err := DetectSwingPoints(candles, 1)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, SwingHigh, points[0].Type)
	assert.Equal(t, SwingLow, points[1].Type)
	assert.Equal(t, 1, points[0].Index)
	assert.Equal(t, 1, points[1].Index)
}

// Reversing time and mirroring prices must turn every swing high at i into a
// swing low at n-1-i and vice versa.
func TestDetectSwingPointsTimeReversalSymmetry(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		candles := randomWalk(seed, 120)
		n := len(candles)

		reversed := make([]Candle, n)
		for i, c := range candles {
			reversed[n-1-i] = Candle{
				Time:  int64(n-1-i) * 60_000,
				Open:  -c.Close,
				High:  -c.Low,
				Low:   -c.High,
				Close: -c.Open,
			}
		}

		for _, k := range []int{1, 2, 3} {
			original, err := DetectSwingPoints(candles, k)
			require.NoError(t, err)
			flipped, err := DetectSwingPoints(reversed, k)
			require.NoError(t, err)

			want := make(map[[2]int]bool, len(original))
			for _, p := range original {
				kind := 0
				if p.Type == SwingHigh {
					kind = 1
				}
				// high becomes low, low becomes high
				want[[2]int{1 - kind, n - 1 - p.Index}] = true
			}

			got := make(map[[2]int]bool, len(flipped))
			for _, p := range flipped {
				kind := 0
				if p.Type == SwingHigh {
					kind = 1
				}
				got[[2]int{kind, p.Index}] = true
			}

			assert.Equal(t, want, got, "seed %d lookback %d", seed, k)
		}
	}
}

func TestDetectSwingPointsDoesNotMutateInput(t *testing.T) {
	candles := randomWalk(7, 50)
	snapshot := make([]Candle, len(candles))
	copy(snapshot, candles)

	_, err := DetectSwingPoints(candles, 2)
	require.NoError(t, err)
	assert.Equal(t, snapshot, candles)
}
