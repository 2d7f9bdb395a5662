package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/mtf"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseAssessment(t *testing.T) {
	a, err := parseAssessment("bullish:65", analysis.TF4h)
	require.NoError(t, err)
	assert.Equal(t, mtf.TimeframeAssessment{Timeframe: analysis.TF4h, Direction: mtf.Bullish, Probability: 65}, a)

	for _, bad := range []string{"BULLISH", "UP:50", "BEARISH:x", "BEARISH:101"} {
		_, err := parseAssessment(bad, analysis.TF1d)
		assert.ErrorIs(t, err, mtf.ErrInvalidAssessment, bad)
	}
}

func TestResolveCommand(t *testing.T) {
	out, err := run(t, newResolveCmd(), "--h4", "BULLISH:72", "--d1", "BEARISH:71")
	require.NoError(t, err)

	var body struct {
		Resolution struct {
			State string `json:"state"`
		} `json:"resolution"`
		UIState mtf.UIState `json:"ui_state"`
		Valid   bool        `json:"valid"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "CONTRADICTORY", body.Resolution.State)
	assert.Empty(t, body.UIState.Assessments)
	assert.True(t, body.Valid)

	_, err = run(t, newResolveCmd(), "--h4", "BULLISH:72")
	assert.Error(t, err)

	_, err = run(t, newResolveCmd(), "--h4", "BULLISH", "--d1", "BEARISH:71")
	assert.ErrorIs(t, err, mtf.ErrInvalidAssessment)
}

func TestParseCandlesCSV(t *testing.T) {
	in := strings.Join([]string{
		"time,open,high,low,close,volume",
		"1709618400000,1.0850,1.0870,1.0840,1.0865,1200",
		"2024-03-05T06:15:00Z,1.0865,1.0880,1.0860,1.0875,",
	}, "\n")

	candles, err := parseCandlesCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1709618400000), candles[0].Time)
	assert.Equal(t, 1200.0, candles[0].Volume)
	assert.Equal(t, time.Date(2024, 3, 5, 6, 15, 0, 0, time.UTC).UnixMilli(), candles[1].Time)
	assert.Zero(t, candles[1].Volume)

	_, err = parseCandlesCSV(strings.NewReader("time,open,high,low\n1,2,3,4"))
	assert.ErrorContains(t, err, `missing "close" column`)

	_, err = parseCandlesCSV(strings.NewReader("time,open,high,low,close\nyesterday,1,2,0.5,1.5"))
	assert.ErrorContains(t, err, "line 2")
}

func TestParseCandlesJSON(t *testing.T) {
	bare := `[{"time":1,"open":1,"high":2,"low":0.5,"close":1.5}]`
	wrapped := `{"candles":` + bare + `}`

	for _, in := range []string{bare, wrapped} {
		candles, err := parseCandlesJSON([]byte(in))
		require.NoError(t, err)
		require.Len(t, candles, 1)
		assert.Equal(t, 1.5, candles[0].Close)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	values := []float64{10, 12, 14, 12, 10.5, 12.5, 15, 17, 15, 12, 14, 16, 18, 16, 14}
	start := time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)
	candles := make([]analysis.Candle, len(values))
	for i, m := range values {
		// written newest first; loadCandles sorts
		candles[len(values)-1-i] = analysis.Candle{
			Time: start.Add(time.Duration(i) * 15 * time.Minute).UnixMilli(),
			Open: m, High: m + 0.5, Low: m - 0.5, Close: m, Volume: 100 + float64(i),
		}
	}
	raw, err := json.Marshal(candles)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "candles.json")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	out, err := run(t, newAnalyzeCmd(), "--file", path, "--timeframe", "M15")
	require.NoError(t, err)

	var result struct {
		Bias        string `json:"bias"`
		CandleCount int    `json:"candleCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "LONG", result.Bias)
	assert.Equal(t, 15, result.CandleCount)

	_, err = run(t, newAnalyzeCmd(), "--file", path, "--lookback", "0")
	assert.ErrorIs(t, err, analysis.ErrInvalidLookback)

	_, err = run(t, newAnalyzeCmd(), "--file", path, "--htf-bias", "sideways-ish")
	assert.ErrorIs(t, err, analysis.ErrInvalidDirection)
}

func TestFetchCommandMock(t *testing.T) {
	out, err := run(t, newFetchCmd(), "--symbol", "btcusdt", "--timeframe", "1h", "--limit", "50", "--mock")
	require.NoError(t, err)

	var candles []analysis.Candle
	require.NoError(t, json.Unmarshal([]byte(out), &candles))
	assert.Len(t, candles, 50)

	_, err = run(t, newFetchCmd(), "--symbol", "BTCUSDT", "--limit", "5000", "--mock")
	assert.Error(t, err)
}

func TestSampleConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := run(t, newSampleConfigCmd(), "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "analysis:")
}
