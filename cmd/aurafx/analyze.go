package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aurafx-engine/config"
	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/aurafx"
	"aurafx-engine/internal/confluence"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		file       string
		configPath string
		timeframe  string
		tzOffset   int
		htfBias    string
		trend      string
		lookback   int
		middleBand string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze candles from a JSON or CSV file and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("missing --file")
			}

			opts := aurafx.DefaultOptions()
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if opts, err = cfg.AnalysisConfig.Options(); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("tz-offset") {
				opts.TzOffsetMinutes = tzOffset
			}
			if flags.Changed("lookback") {
				opts.Lookback = lookback
			}
			if middleBand != "" {
				policy, err := confluence.ParseMiddleBandPolicy(middleBand)
				if err != nil {
					return err
				}
				opts.MiddleBand = policy
			}
			if htfBias != "" {
				d, err := analysis.ParseDirection(htfBias)
				if err != nil {
					return fmt.Errorf("bad --htf-bias: %w", err)
				}
				opts.HigherTimeframeBias = &d
			}
			if trend != "" {
				d, err := analysis.ParseDirection(trend)
				if err != nil {
					return fmt.Errorf("bad --trend: %w", err)
				}
				opts.TrendDirectionOverride = &d
			}

			var tf analysis.Timeframe
			if timeframe != "" {
				var err error
				if tf, err = analysis.ParseTimeframe(timeframe); err != nil {
					return err
				}
			}

			candles, err := loadCandles(file, tf)
			if err != nil {
				return err
			}

			result, err := aurafx.Analyze(candles, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "candle file (.json or .csv)")
	cmd.Flags().StringVar(&configPath, "config", "", "config file supplying analysis defaults")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "timeframe to tag candles with (e.g. 4h, H4)")
	cmd.Flags().IntVar(&tzOffset, "tz-offset", 0, "minutes east of UTC used for killzone windows")
	cmd.Flags().StringVar(&htfBias, "htf-bias", "", "higher timeframe bias (BULLISH, BEARISH, RANGE)")
	cmd.Flags().StringVar(&trend, "trend", "", "override the trend classifier (BULLISH, BEARISH, RANGE)")
	cmd.Flags().IntVar(&lookback, "lookback", analysis.DefaultSwingLookback, "swing fractal lookback")
	cmd.Flags().StringVar(&middleBand, "middle-band", "", "scores between the thresholds: follow_trend or no_trade")

	return cmd
}

// loadCandles reads a candle file, choosing the format by extension. tf,
// when set, overrides the file's timeframe column.
func loadCandles(path string, tf analysis.Timeframe) ([]analysis.Candle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var candles []analysis.Candle
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		candles, err = parseCandlesCSV(bytes.NewReader(raw))
	default:
		candles, err = parseCandlesJSON(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if tf != "" {
		for i := range candles {
			candles[i].Timeframe = tf
		}
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

// parseCandlesJSON accepts a bare array or an object with a candles field
func parseCandlesJSON(raw []byte) ([]analysis.Candle, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Candles []analysis.Candle `json:"candles"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Candles, nil
	}

	var candles []analysis.Candle
	if err := json.Unmarshal(raw, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// parseCandlesCSV reads a headed CSV with time, open, high, low and close
// columns plus optional volume and timeframe. time is unix milliseconds or
// RFC3339.
func parseCandlesCSV(r io.Reader) ([]analysis.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var candles []analysis.Candle
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		c, err := candleFromRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func candleFromRecord(record []string, cols map[string]int) (analysis.Candle, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	number := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0, fmt.Errorf("bad %s: %w", name, err)
		}
		return v, nil
	}

	var c analysis.Candle
	var err error
	if c.Time, err = parseCandleTime(field("time")); err != nil {
		return c, err
	}
	if c.Open, err = number("open"); err != nil {
		return c, err
	}
	if c.High, err = number("high"); err != nil {
		return c, err
	}
	if c.Low, err = number("low"); err != nil {
		return c, err
	}
	if c.Close, err = number("close"); err != nil {
		return c, err
	}
	if field("volume") != "" {
		if c.Volume, err = number("volume"); err != nil {
			return c, err
		}
	}
	if tf := field("timeframe"); tf != "" {
		if c.Timeframe, err = analysis.ParseTimeframe(tf); err != nil {
			return c, err
		}
	}
	return c, nil
}

func parseCandleTime(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("bad time %q: want unix milliseconds or RFC3339", s)
	}
	return t.UnixMilli(), nil
}
