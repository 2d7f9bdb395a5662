package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// TraceIDFromContext returns the trace ID stored by WithTraceContext, if any
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := FromContext(ctx).WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// AnalysisContext creates a logger context for a single-timeframe analysis
func AnalysisContext(symbol, timeframe string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
	}).WithComponent("analysis")
}

// SignalContext creates a logger context for a resolved bias
func SignalContext(symbol, bias string, score float64) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol": symbol,
		"bias":   bias,
		"score":  score,
	}).WithComponent("signal")
}

// ScanContext creates a logger context for one scanner run
func ScanContext(scanID string, symbols int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"scan_id": scanID,
		"symbols": symbols,
	}).WithComponent("scanner")
}

// APIContext creates a logger context for API operations
func APIContext(method, path string, statusCode int) *Logger {
	return Default().WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
	}).WithComponent("api")
}

// BinanceAPIContext creates a logger context for Binance API calls
func BinanceAPIContext(endpoint string, params map[string]interface{}) *Logger {
	l := Default().WithFields(map[string]interface{}{
		"endpoint": endpoint,
	}).WithComponent("binance")

	// Add safe params (exclude sensitive data)
	for k, v := range params {
		if k != "signature" && k != "apiKey" {
			l = l.WithField(k, v)
		}
	}

	return l
}

// DatabaseContext creates a logger context for database operations
func DatabaseContext(operation, table string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
	}).WithComponent("database")
}

// CacheContext creates a logger context for cache operations
func CacheContext(operation, key string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"operation": operation,
		"key":       key,
	}).WithComponent("cache")
}
