package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/logging"
)

// DefaultBaseURL is the public spot REST endpoint
const DefaultBaseURL = "https://api.binance.com"

// MaxKlineLimit is the largest page /api/v3/klines serves
const MaxKlineLimit = 1000

const klinesEndpoint = "/api/v3/klines"

var (
	// ErrRateLimited is returned when the circuit breaker is open or the
	// weight budget is exhausted
	ErrRateLimited = errors.New("binance rate limit reached")
	// ErrInvalidSymbol is returned for an empty symbol
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// Client fetches public market data from Binance
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    NewRateLimiter(),
	}
}

// Kline represents a candlestick
type Kline struct {
	OpenTime                 int64   `json:"openTime"`
	Open                     float64 `json:"open,string"`
	High                     float64 `json:"high,string"`
	Low                      float64 `json:"low,string"`
	Close                    float64 `json:"close,string"`
	Volume                   float64 `json:"volume,string"`
	CloseTime                int64   `json:"closeTime"`
	QuoteAssetVolume         float64 `json:"quoteAssetVolume,string"`
	NumberOfTrades           int     `json:"numberOfTrades"`
	TakerBuyBaseAssetVolume  float64 `json:"takerBuyBaseAssetVolume,string"`
	TakerBuyQuoteAssetVolume float64 `json:"takerBuyQuoteAssetVolume,string"`
}

// Candle converts the kline to an analysis candle keyed by its open time
func (k Kline) Candle(tf analysis.Timeframe) analysis.Candle {
	return analysis.Candle{
		Time:      k.OpenTime,
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
		Timeframe: tf,
	}
}

// GetKlines fetches candlestick data
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	if c.limiter.IsCircuitOpen() {
		return nil, ErrRateLimited
	}
	if !c.limiter.WaitForSlot(ctx, klinesEndpoint) {
		return nil, ErrRateLimited
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, klinesEndpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building klines request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if used, err := strconv.Atoi(resp.Header.Get("X-MBX-USED-WEIGHT-1M")); err == nil {
		c.limiter.UpdateFromHeaders(used)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusTeapot:
		c.limiter.RecordRateLimitError(ParseBanUntilFromError(string(body)))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRateLimited, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("API error: status %d: %s", resp.StatusCode, string(body))
	}
	c.limiter.RecordRequest(klinesEndpoint)

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, 0, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 11 {
			return nil, fmt.Errorf("error parsing klines: row %d has %d fields", i, len(raw))
		}
		klines = append(klines, Kline{
			OpenTime:                 parseInt(raw[0]),
			Open:                     parseFloat(raw[1]),
			High:                     parseFloat(raw[2]),
			Low:                      parseFloat(raw[3]),
			Close:                    parseFloat(raw[4]),
			Volume:                   parseFloat(raw[5]),
			CloseTime:                parseInt(raw[6]),
			QuoteAssetVolume:         parseFloat(raw[7]),
			NumberOfTrades:           int(parseInt(raw[8])),
			TakerBuyBaseAssetVolume:  parseFloat(raw[9]),
			TakerBuyQuoteAssetVolume: parseFloat(raw[10]),
		})
	}

	logging.BinanceAPIContext(klinesEndpoint, map[string]interface{}{
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}).Debug("klines fetched", "count", len(klines), "latency_ms", time.Since(start).Milliseconds())

	return klines, nil
}

// FetchCandles implements analysis.CandleSource
func (c *Client) FetchCandles(ctx context.Context, symbol string, tf analysis.Timeframe, limit int) ([]analysis.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", analysis.ErrUnsupportedTimeframe, tf)
	}

	klines, err := c.GetKlines(ctx, symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
	}
	return KlinesToCandles(klines, tf), nil
}

// KlinesToCandles converts klines to candles ordered by ascending open time,
// keeping the last kline seen for a repeated open time
func KlinesToCandles(klines []Kline, tf analysis.Timeframe) []analysis.Candle {
	byTime := make(map[int64]analysis.Candle, len(klines))
	for _, k := range klines {
		byTime[k.OpenTime] = k.Candle(tf)
	}

	candles := make([]analysis.Candle, 0, len(byTime))
	for _, c := range byTime {
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles
}

// RateLimiter exposes the client's limiter for status reporting
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}

func parseInt(val interface{}) int64 {
	switch v := val.(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
