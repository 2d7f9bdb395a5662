package analysis

import (
	"fmt"
	"math"
	"sort"
)

// PoolType is the side of resting liquidity
type PoolType string

const (
	BSL PoolType = "BSL" // buy-side, above clustered highs
	SSL PoolType = "SSL" // sell-side, below clustered lows
)

// PoolReason explains why a cluster was reported
type PoolReason string

const (
	EqualHighs      PoolReason = "equal_highs"
	EqualLows       PoolReason = "equal_lows"
	StopClusterHigh PoolReason = "stop_cluster_high"
	StopClusterLow  PoolReason = "stop_cluster_low"
)

// DefaultLiquidityTolerancePct is the equality band as a percent of price
const DefaultLiquidityTolerancePct = 0.05

// stopClusterSize is the member count at which equal highs/lows become a stop cluster
const stopClusterSize = 3

// LiquidityPool is a cluster of two or more swing extremes within tolerance
type LiquidityPool struct {
	Type    PoolType   `json:"type"`
	Price   float64    `json:"price"`
	Reason  PoolReason `json:"reason"`
	Indices []int      `json:"indices"`
	Swept   bool       `json:"swept"`
}

// MapLiquidity clusters swing highs into BSL pools and swing lows into SSL
// pools. tolerancePct is a percentage of the cluster anchor price.
// Isolated swings are not reported. BSL pools come first, each side ordered by
// ascending price.
func MapLiquidity(candles []Candle, swings []StructurePoint, tolerancePct float64) ([]LiquidityPool, error) {
	if tolerancePct < 0 || math.IsNaN(tolerancePct) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerancePct)
	}

	pools := make([]LiquidityPool, 0)
	for _, cluster := range clusterByPrice(FilterSwings(swings, SwingHigh), tolerancePct) {
		pool := LiquidityPool{Type: BSL, Price: maxPrice(cluster), Reason: EqualHighs, Indices: indicesOf(cluster)}
		if len(cluster) >= stopClusterSize {
			pool.Reason = StopClusterHigh
		}
		pool.Swept = isSwept(candles, pool)
		pools = append(pools, pool)
	}
	for _, cluster := range clusterByPrice(FilterSwings(swings, SwingLow), tolerancePct) {
		pool := LiquidityPool{Type: SSL, Price: minPrice(cluster), Reason: EqualLows, Indices: indicesOf(cluster)}
		if len(cluster) >= stopClusterSize {
			pool.Reason = StopClusterLow
		}
		pool.Swept = isSwept(candles, pool)
		pools = append(pools, pool)
	}

	return pools, nil
}

// clusterByPrice groups points whose price lies within tolerancePct of the
// cluster's lowest member. Only clusters of two or more are returned.
func clusterByPrice(points []StructurePoint, tolerancePct float64) [][]StructurePoint {
	if len(points) < 2 {
		return nil
	}

	sorted := make([]StructurePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price == sorted[j].Price {
			return sorted[i].Index < sorted[j].Index
		}
		return sorted[i].Price < sorted[j].Price
	})

	var clusters [][]StructurePoint
	current := []StructurePoint{sorted[0]}
	for _, p := range sorted[1:] {
		anchor := current[0].Price
		if withinTolerance(p.Price, anchor, tolerancePct) {
			current = append(current, p)
			continue
		}
		if len(current) >= 2 {
			clusters = append(clusters, current)
		}
		current = []StructurePoint{p}
	}
	if len(current) >= 2 {
		clusters = append(clusters, current)
	}

	return clusters
}

func withinTolerance(price, anchor, tolerancePct float64) bool {
	if anchor == 0 {
		return price == anchor
	}
	return math.Abs(price-anchor)/math.Abs(anchor)*100 <= tolerancePct
}

// isSwept reports whether any candle after the cluster traded through the pool
func isSwept(candles []Candle, pool LiquidityPool) bool {
	last := pool.Indices[len(pool.Indices)-1]
	for i := last + 1; i < len(candles); i++ {
		if pool.Type == BSL && candles[i].High > pool.Price {
			return true
		}
		if pool.Type == SSL && candles[i].Low < pool.Price {
			return true
		}
	}
	return false
}

func indicesOf(points []StructurePoint) []int {
	idx := make([]int, len(points))
	for i, p := range points {
		idx[i] = p.Index
	}
	sort.Ints(idx)
	return idx
}

func maxPrice(points []StructurePoint) float64 {
	m := points[0].Price
	for _, p := range points[1:] {
		if p.Price > m {
			m = p.Price
		}
	}
	return m
}

func minPrice(points []StructurePoint) float64 {
	m := points[0].Price
	for _, p := range points[1:] {
		if p.Price < m {
			m = p.Price
		}
	}
	return m
}

// PoolsAbove returns pools of type t priced strictly above price
func PoolsAbove(pools []LiquidityPool, t PoolType, price float64) []LiquidityPool {
	var out []LiquidityPool
	for _, p := range pools {
		if p.Type == t && p.Price > price {
			out = append(out, p)
		}
	}
	return out
}

// PoolsBelow returns pools of type t priced strictly below price
func PoolsBelow(pools []LiquidityPool, t PoolType, price float64) []LiquidityPool {
	var out []LiquidityPool
	for _, p := range pools {
		if p.Type == t && p.Price < price {
			out = append(out, p)
		}
	}
	return out
}
