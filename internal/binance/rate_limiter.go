package binance

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"time"

	"aurafx-engine/internal/logging"
)

// RateLimiter implements proactive weight-based rate limiting with a
// circuit breaker that opens on 429/418 responses
type RateLimiter struct {
	mu sync.RWMutex

	// Circuit breaker state
	circuitOpen bool
	banUntil    time.Time

	// Weight tracking (Binance spot allows 6000 per minute)
	currentWeight int
	weightResetAt time.Time
	maxWeight     int

	consecutiveErrors int
	now               func() time.Time
}

// Endpoint weights for the spot market data endpoints we use
var endpointWeights = map[string]int{
	"/api/v3/klines":       2,
	"/api/v3/ticker/price": 2,
	"/api/v3/exchangeInfo": 20,
}

var banUntilPattern = regexp.MustCompile(`\d{13}`)

// usageThreshold leaves headroom for other processes sharing the IP
const usageThreshold = 0.8

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		maxWeight:     6000,
		weightResetAt: time.Now().Add(time.Minute),
		now:           time.Now,
	}
}

// CanMakeRequest checks the budget without recording weight
func (r *RateLimiter) CanMakeRequest(endpoint string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	if r.circuitOpen && now.Before(r.banUntil) {
		return false
	}

	weight := r.currentWeight
	if now.After(r.weightResetAt) {
		weight = 0
	}
	return float64(weight+getEndpointWeight(endpoint)) <= float64(r.maxWeight)*usageThreshold
}

// WaitForSlot blocks until a request may be made or ctx is done
func (r *RateLimiter) WaitForSlot(ctx context.Context, endpoint string) bool {
	for {
		if r.CanMakeRequest(endpoint) {
			return true
		}

		r.mu.RLock()
		var waitTime time.Duration
		if r.circuitOpen {
			waitTime = r.banUntil.Sub(r.now())
		} else {
			waitTime = r.weightResetAt.Sub(r.now())
		}
		r.mu.RUnlock()

		if waitTime <= 0 {
			waitTime = 100 * time.Millisecond
		}
		if waitTime > 5*time.Second {
			waitTime = 5 * time.Second
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// RecordRequest records a successful request
func (r *RateLimiter) RecordRequest(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.After(r.weightResetAt) {
		r.currentWeight = 0
		r.weightResetAt = now.Add(time.Minute)
	}

	r.currentWeight += getEndpointWeight(endpoint)
	r.consecutiveErrors = 0

	if r.circuitOpen && now.After(r.banUntil) {
		logging.WithComponent("binance").Info("circuit breaker closed after successful request")
		r.circuitOpen = false
	}
}

// RecordRateLimitError opens the circuit until banUntilMs, or for an
// exponential backoff when the exchange did not say
func (r *RateLimiter) RecordRateLimitError(banUntilMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consecutiveErrors++

	var banUntil time.Time
	if banUntilMs > 0 {
		banUntil = time.UnixMilli(banUntilMs)
	} else {
		backoff := time.Duration(1<<uint(r.consecutiveErrors)) * time.Minute
		if backoff > 30*time.Minute {
			backoff = 30 * time.Minute
		}
		banUntil = r.now().Add(backoff)
	}

	r.circuitOpen = true
	r.banUntil = banUntil

	logging.WithComponent("binance").Warn("circuit breaker open",
		"ban_until", banUntil.Format(time.RFC3339), "consecutive_errors", r.consecutiveErrors)
}

// IsCircuitOpen returns true while the ban is in force
func (r *RateLimiter) IsCircuitOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.circuitOpen && r.now().Before(r.banUntil)
}

// UpdateFromHeaders syncs the local weight with X-MBX-USED-WEIGHT-1M
func (r *RateLimiter) UpdateFromHeaders(usedWeight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if usedWeight > r.currentWeight {
		r.currentWeight = usedWeight
	}
}

// GetStatus returns the limiter state for the health endpoint
func (r *RateLimiter) GetStatus() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]interface{}{
		"circuit_open":   r.circuitOpen && r.now().Before(r.banUntil),
		"current_weight": r.currentWeight,
		"max_weight":     r.maxWeight,
		"usage_percent":  float64(r.currentWeight) / float64(r.maxWeight) * 100,
	}
}

func getEndpointWeight(endpoint string) int {
	if weight, ok := endpointWeights[endpoint]; ok {
		return weight
	}
	return 1
}

// ParseBanUntilFromError extracts the ban timestamp from a Binance error body
// such as "IP banned until 1766824120342"
func ParseBanUntilFromError(errMsg string) int64 {
	match := banUntilPattern.FindString(errMsg)
	if match == "" {
		return 0
	}
	banUntil, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0
	}

	now := time.Now()
	if banUntil > now.UnixMilli() && banUntil < now.Add(24*time.Hour).UnixMilli() {
		return banUntil
	}
	return 0
}
