package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Timeframe represents a chart timeframe
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// Timeframes lists every supported timeframe, shortest first
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d, TF1w}

// timeframeAliases maps broker style names (H4, D1, M15) onto timeframes
var timeframeAliases = map[string]Timeframe{
	"M1": TF1m, "M5": TF5m, "M15": TF15m, "M30": TF30m,
	"H1": TF1h, "H4": TF4h, "D1": TF1d, "D": TF1d, "W1": TF1w, "W": TF1w,
}

// ParseTimeframe converts "4h", "H4", "1d", "D1" and friends into a Timeframe
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(s)
	for _, tf := range Timeframes {
		if strings.EqualFold(s, string(tf)) {
			return tf, nil
		}
	}
	if tf, ok := timeframeAliases[strings.ToUpper(s)]; ok {
		return tf, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, s)
}

// Valid reports whether tf is a supported timeframe
func (tf Timeframe) Valid() bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// Duration returns the wall-clock length of one candle
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF30m:
		return 30 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	case TF1w:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Candle is one OHLCV bar. Time is the open time in unix milliseconds.
type Candle struct {
	Time      int64     `json:"time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
}

// IsBullish reports whether the candle closed above its open
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish reports whether the candle closed below its open
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// CandleSource provides candles for a single instrument and timeframe,
// ordered ascending by time with no duplicate timestamps.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
}

// PriceRange is an inclusive price band
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price lies inside the band
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Low && price <= r.High
}

// Size returns the height of the band
func (r PriceRange) Size() float64 { return r.High - r.Low }
