package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/aurafx"
	"aurafx-engine/internal/binance"
)

func newFetchCmd() *cobra.Command {
	var (
		symbol    string
		timeframe string
		limit     int
		mock      bool
		baseURL   string
		timeout   time.Duration
		analyze   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch candles from Binance (or the deterministic mock) and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if symbol == "" {
				return errors.New("missing --symbol")
			}
			tf, err := analysis.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			if limit <= 0 || limit > binance.MaxKlineLimit {
				return errors.New("--limit must be between 1 and 1000")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			source := binance.NewSource(baseURL, timeout, mock)
			candles, err := source.FetchCandles(ctx, symbol, tf, limit)
			if err != nil {
				return err
			}

			if !analyze {
				return writeJSON(cmd.OutOrStdout(), candles)
			}
			result, err := aurafx.Analyze(candles, aurafx.DefaultOptions())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol, e.g. BTCUSDT")
	cmd.Flags().StringVar(&timeframe, "timeframe", "4h", "candle timeframe")
	cmd.Flags().IntVar(&limit, "limit", 200, "number of candles")
	cmd.Flags().BoolVar(&mock, "mock", false, "use the deterministic mock source")
	cmd.Flags().StringVar(&baseURL, "base-url", binance.DefaultBaseURL, "Binance REST base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "print the analysis instead of the candles")

	return cmd
}
