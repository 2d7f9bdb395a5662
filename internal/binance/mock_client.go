package binance

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"aurafx-engine/internal/analysis"
)

// MockClient provides simulated market data for development and testing.
// Candles are a pseudo-random walk seeded from symbol and timeframe, so
// repeated fetches return identical series.
type MockClient struct {
	prices map[string]float64
	// anchor is the open time of the newest candle for the daily timeframe;
	// shorter timeframes count back from the same instant
	anchor time.Time
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		prices: map[string]float64{
			"BTCUSDT":  104500.00,
			"ETHUSDT":  3900.00,
			"BNBUSDT":  710.00,
			"SOLUSDT":  220.00,
			"XRPUSDT":  2.35,
			"ADAUSDT":  1.05,
			"DOGEUSDT": 0.40,
			"EURUSD":   1.0850,
			"GBPUSD":   1.2700,
			"XAUUSD":   2350.00,
		},
		anchor: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}
}

// WithAnchor sets the time of the newest generated candle
func (mc *MockClient) WithAnchor(t time.Time) *MockClient {
	mc.anchor = t.UTC()
	return mc
}

func seedFor(symbol string, tf analysis.Timeframe) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte{0})
	h.Write([]byte(tf))
	return int64(h.Sum64() >> 1)
}

// GetKlines returns simulated candlestick data
func (mc *MockClient) GetKlines(symbol string, tf analysis.Timeframe, limit int) []Kline {
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	basePrice, ok := mc.prices[symbol]
	if !ok {
		basePrice = 100.0
	}

	intervalDuration := tf.Duration()
	rng := rand.New(rand.NewSource(seedFor(symbol, tf)))
	last := mc.anchor.Truncate(intervalDuration)

	klines := make([]Kline, limit)
	currentPrice := basePrice
	// a slow drift keeps the series from being pure noise so structure forms
	drift := (rng.Float64() - 0.5) * 0.004

	for i := 0; i < limit; i++ {
		openTime := last.Add(-time.Duration(limit-1-i) * intervalDuration)
		closeTime := openTime.Add(intervalDuration - time.Millisecond)

		volatility := 0.01
		open := currentPrice
		change := drift + math.Sin(float64(i)/6)*0.003 + (rng.Float64()-0.5)*volatility
		close := open * (1 + change)

		high := math.Max(open, close) * (1 + rng.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - rng.Float64()*volatility*0.5)

		volume := 1000 + rng.Float64()*5000

		klines[i] = Kline{
			OpenTime:                 openTime.UnixMilli(),
			Open:                     open,
			High:                     high,
			Low:                      low,
			Close:                    close,
			Volume:                   volume,
			CloseTime:                closeTime.UnixMilli(),
			QuoteAssetVolume:         volume * close,
			NumberOfTrades:           100 + rng.Intn(1000),
			TakerBuyBaseAssetVolume:  volume * 0.5,
			TakerBuyQuoteAssetVolume: volume * close * 0.5,
		}

		currentPrice = close
	}

	return klines
}

// FetchCandles implements analysis.CandleSource
func (mc *MockClient) FetchCandles(ctx context.Context, symbol string, tf analysis.Timeframe, limit int) ([]analysis.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if !tf.Valid() {
		return nil, analysis.ErrUnsupportedTimeframe
	}
	return KlinesToCandles(mc.GetKlines(symbol, tf, limit), tf), nil
}
