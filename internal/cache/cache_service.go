// Package cache provides Redis-backed caching for candles and analysis
// reports, with an in-process fallback when Redis is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"aurafx-engine/config"
	"aurafx-engine/internal/logging"
)

var (
	// ErrCacheMiss is returned when a key is absent
	ErrCacheMiss = errors.New("cache miss")
	// ErrUnavailable is returned while the circuit breaker is open
	ErrUnavailable = errors.New("redis unavailable (circuit breaker open)")
)

// Store is the key-value surface the candle and report caches depend on
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IsHealthy() bool
}

// CacheService provides Redis-based caching with graceful degradation.
// When Redis is unavailable, operations return ErrUnavailable and callers
// fall back to the upstream source.
type CacheService struct {
	client       *redis.Client
	config       config.RedisConfig
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	// Circuit breaker settings
	maxFailures   int
	checkInterval time.Duration

	log *logging.Logger
}

// Key prefixes for different cache types
const (
	PrefixCandles      = "aurafx:candles:%s:%s:%d"
	PrefixReport       = "aurafx:report:%s:%s"
	PrefixMTF          = "aurafx:mtf:%s"
	KeyScannerSnapshot = "aurafx:scanner:latest"
)

// NewCacheService creates a new CacheService with the provided configuration.
// A failed initial ping returns the service in degraded mode, not an error.
func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:        client,
		config:        cfg,
		maxFailures:   3,
		checkInterval: 30 * time.Second,
		log:           logging.WithComponent("cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.log.WithError(err).Warn("initial Redis connection failed, running degraded", "address", cfg.Address)
		cs.lastCheck = time.Now()
		return cs, nil
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	cs.log.Info("Redis connected", "address", cfg.Address)

	return cs, nil
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

// recordFailure tracks a Redis operation failure for the circuit breaker.
func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.log.Warn("circuit breaker open: Redis marked unhealthy", "failures", cs.failureCount)
		}
		cs.healthy = false
		cs.lastCheck = time.Now()
	}
}

// recordSuccess resets the failure counter on a successful operation.
func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.log.Info("circuit breaker closed: Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth pings in the background once checkInterval has passed since
// the breaker opened.
func (cs *CacheService) checkHealth() {
	cs.mu.Lock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	if shouldCheck {
		cs.lastCheck = time.Now()
	}
	cs.mu.Unlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(pingCtx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// Get retrieves a value from cache.
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return "", ErrUnavailable
	}

	result, err := cs.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		cs.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return result, nil
}

// Set stores a value in cache with TTL. Non-string values are JSON encoded.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return ErrUnavailable
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// Delete removes a key from cache.
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return ErrUnavailable
	}

	if err := cs.client.Del(ctx, key).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// DeletePattern deletes all keys matching a pattern.
func (cs *CacheService) DeletePattern(ctx context.Context, pattern string) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return ErrUnavailable
	}

	deleted := 0
	iter := cs.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := cs.client.Del(ctx, iter.Val()).Err(); err != nil {
			cs.recordFailure()
			return fmt.Errorf("redis delete pattern failed: %w", err)
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis scan failed: %w", err)
	}

	cs.recordSuccess()
	logging.CacheContext("delete_pattern", pattern).Debug("keys deleted", "count", deleted)
	return nil
}

// InvalidateSymbol drops every cached candle window, report and resolution
// for symbol.
func (cs *CacheService) InvalidateSymbol(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, pattern := range []string{
		fmt.Sprintf("aurafx:candles:%s:*", symbol),
		fmt.Sprintf("aurafx:report:%s:*", symbol),
		MTFKey(symbol),
	} {
		if err := cs.DeletePattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

// GetJSON retrieves and unmarshals a JSON value from cache.
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := cs.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

// SetJSON marshals and stores a JSON value in cache.
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return cs.Set(ctx, key, value, ttl)
}

// Close closes the Redis connection.
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Ping checks Redis connectivity.
func (cs *CacheService) Ping(ctx context.Context) error {
	if err := cs.client.Ping(ctx).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// Stats holds cache statistics for monitoring.
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
	PoolSize     int    `json:"pool_size"`
}

// GetStats returns current cache statistics.
func (cs *CacheService) GetStats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return Stats{
		Healthy:      cs.healthy,
		FailureCount: cs.failureCount,
		Address:      cs.config.Address,
		PoolSize:     cs.config.PoolSize,
	}
}

// CandlesKey generates a cache key for a candle window.
func CandlesKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf(PrefixCandles, symbol, timeframe, limit)
}

// ReportKey generates a cache key for the latest report of symbol and timeframe.
func ReportKey(symbol, timeframe string) string {
	return fmt.Sprintf(PrefixReport, symbol, timeframe)
}

// MTFKey generates a cache key for the latest multi-timeframe resolution.
func MTFKey(symbol string) string {
	return fmt.Sprintf(PrefixMTF, symbol)
}

var _ Store = (*CacheService)(nil)
