package cache

import (
	"context"
	"errors"
	"strings"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/logging"
)

// CachedCandleSource wraps a CandleSource with the in-process cache and,
// when configured, Redis. Lookups go memory, Redis, then upstream.
type CachedCandleSource struct {
	upstream analysis.CandleSource
	store    Store
	memory   *CandleCache
	log      *logging.Logger
}

// NewCachedCandleSource creates a cached source. store may be nil.
func NewCachedCandleSource(upstream analysis.CandleSource, store Store) *CachedCandleSource {
	return &CachedCandleSource{
		upstream: upstream,
		store:    store,
		memory:   NewCandleCache(),
		log:      logging.WithComponent("cache"),
	}
}

// Memory exposes the in-process layer for stats and purging
func (s *CachedCandleSource) Memory() *CandleCache {
	return s.memory
}

// FetchCandles implements analysis.CandleSource
func (s *CachedCandleSource) FetchCandles(ctx context.Context, symbol string, tf analysis.Timeframe, limit int) ([]analysis.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := CandlesKey(symbol, string(tf), limit)
	ttl := TTLFor(tf)

	if candles := s.memory.Get(key); candles != nil {
		return candles, nil
	}

	if s.store != nil && s.store.IsHealthy() {
		var candles []analysis.Candle
		err := s.store.GetJSON(ctx, key, &candles)
		switch {
		case err == nil && len(candles) > 0:
			s.memory.Set(key, candles, ttl)
			return candles, nil
		case err != nil && !errors.Is(err, ErrCacheMiss):
			s.log.WithError(err).Debug("redis candle lookup failed", "key", key)
		}
	}

	candles, err := s.upstream.FetchCandles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return candles, nil
	}

	s.memory.Set(key, candles, ttl)
	if s.store != nil && s.store.IsHealthy() {
		if err := s.store.SetJSON(ctx, key, candles, ttl); err != nil {
			s.log.WithError(err).Debug("redis candle store failed", "key", key)
		}
	}
	return candles, nil
}

var _ analysis.CandleSource = (*CachedCandleSource)(nil)
