package cache

import (
	"context"
	"strings"
	"time"
)

// DefaultReportTTL bounds how long a cached report is served
const DefaultReportTTL = 4 * time.Hour

// ReportCache keeps the latest report per symbol and timeframe in Redis
type ReportCache struct {
	store Store
	ttl   time.Duration
}

// NewReportCache creates a report cache. A non-positive ttl selects
// DefaultReportTTL.
func NewReportCache(store Store, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportCache{store: store, ttl: ttl}
}

// Put stores report as the latest for symbol and timeframe
func (c *ReportCache) Put(ctx context.Context, symbol, timeframe string, report interface{}) error {
	return c.store.SetJSON(ctx, ReportKey(strings.ToUpper(symbol), timeframe), report, c.ttl)
}

// Get decodes the latest report into dest. It returns ErrCacheMiss when
// there is none.
func (c *ReportCache) Get(ctx context.Context, symbol, timeframe string, dest interface{}) error {
	return c.store.GetJSON(ctx, ReportKey(strings.ToUpper(symbol), timeframe), dest)
}

// PutResolution stores the latest multi-timeframe resolution for symbol
func (c *ReportCache) PutResolution(ctx context.Context, symbol string, resolution interface{}) error {
	return c.store.SetJSON(ctx, MTFKey(strings.ToUpper(symbol)), resolution, c.ttl)
}

// GetResolution decodes the latest multi-timeframe resolution into dest
func (c *ReportCache) GetResolution(ctx context.Context, symbol string, dest interface{}) error {
	return c.store.GetJSON(ctx, MTFKey(strings.ToUpper(symbol)), dest)
}

// PutSnapshot stores the latest scanner snapshot
func (c *ReportCache) PutSnapshot(ctx context.Context, snapshot interface{}) error {
	return c.store.SetJSON(ctx, KeyScannerSnapshot, snapshot, c.ttl)
}

// GetSnapshot decodes the latest scanner snapshot into dest
func (c *ReportCache) GetSnapshot(ctx context.Context, dest interface{}) error {
	return c.store.GetJSON(ctx, KeyScannerSnapshot, dest)
}

// Invalidate drops the cached report for symbol and timeframe
func (c *ReportCache) Invalidate(ctx context.Context, symbol, timeframe string) error {
	return c.store.Delete(ctx, ReportKey(strings.ToUpper(symbol), timeframe))
}
