package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"aurafx-engine/internal/analysis"
)

// CandleCache is an in-process TTL cache of candle windows
type CandleCache struct {
	data map[string]*CacheEntry
	mu   sync.RWMutex
	now  func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheEntry represents a cached candle window
type CacheEntry struct {
	Candles   []analysis.Candle
	ExpiresAt time.Time
}

// NewCandleCache creates a new candle cache
func NewCandleCache() *CandleCache {
	return &CandleCache{
		data: make(map[string]*CacheEntry),
		now:  time.Now,
	}
}

// TTLFor returns how long a candle window of the given timeframe stays fresh
func TTLFor(tf analysis.Timeframe) time.Duration {
	switch tf {
	case analysis.TF1m:
		return 30 * time.Second
	case analysis.TF5m:
		return 2 * time.Minute
	case analysis.TF15m:
		return 5 * time.Minute
	case analysis.TF30m:
		return 10 * time.Minute
	case analysis.TF1h:
		return 30 * time.Minute
	case analysis.TF4h:
		return 2 * time.Hour
	case analysis.TF1d:
		return 12 * time.Hour
	case analysis.TF1w:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Get returns cached candles or nil if absent or expired
func (c *CandleCache) Get(key string) []analysis.Candle {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.ExpiresAt) {
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	return entry.Candles
}

// Set stores candles under key for ttl
func (c *CandleCache) Set(key string, candles []analysis.Candle, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = &CacheEntry{
		Candles:   candles,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Purge drops expired entries and returns how many were removed
func (c *CandleCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.data {
		if now.After(entry.ExpiresAt) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired or not
func (c *CandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// GetStats returns hit/miss counters
func (c *CandleCache) GetStats() (hits, misses int64, hitRate float64) {
	hits = c.hits.Load()
	misses = c.misses.Load()
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return hits, misses, hitRate
}
