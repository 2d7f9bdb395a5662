package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestLoggerKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "debug", Component: "test", JSONFormat: true}, &buf)

	l.Info("analysis complete", "symbol", "EURUSD", "score", 0.77)

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "analysis complete", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "EURUSD", entry["symbol"])
	assert.Equal(t, 0.77, entry["score"])
	assert.Contains(t, entry, "time")
}

func TestLoggerPrintfStyle(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", JSONFormat: true}, &buf)

	l.Warn("fetched %d candles for %s", 200, "BTCUSDT")

	entry := decode(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "fetched 200 candles for BTCUSDT", entry["message"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "warn", JSONFormat: true}, &buf)

	l.Info("dropped")
	l.Debug("dropped")
	assert.Zero(t, buf.Len())

	l.WithError(errors.New("boom")).Error("kept")
	entry := decode(t, &buf)
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{JSONFormat: true}, &buf).
		WithComponent("scanner").
		WithFields(map[string]interface{}{"scan_id": "abc"}).
		WithTraceID("trace-1")

	l.Info("started")

	entry := decode(t, &buf)
	assert.Equal(t, "scanner", entry["component"])
	assert.Equal(t, "abc", entry["scan_id"])
	assert.Equal(t, "trace-1", entry["trace_id"])
}

func TestLoggerWithDuration(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{JSONFormat: true}, &buf)

	l.WithDuration(1500 * time.Millisecond).Info("analysis complete")

	entry := decode(t, &buf)
	assert.Equal(t, float64(1500), entry["duration_ms"])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", JSONFormat: false}, &buf)
	l.Info("hello console")
	assert.True(t, strings.Contains(buf.String(), "hello console"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{JSONFormat: true}, &buf)

	ctx := NewContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))

	ctx, traced := WithTraceContext(ctx)
	traceID := TraceIDFromContext(ctx)
	require.NotEmpty(t, traceID)
	assert.Same(t, traced, FromContext(ctx))

	traced.Info("traced")
	assert.Equal(t, traceID, decode(t, &buf)["trace_id"])
}
