package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"aurafx-engine/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "aurafx",
	Short: "Smart-money bias engine: structure, liquidity and confluence scoring",
	Long: `aurafx analyzes OHLC candles for market structure, liquidity pools,
order blocks, fair value gaps and killzone timing, scores their confluence
into a LONG/SHORT/NO_TRADE bias, and resolves H4/D1 conflicts without ever
blending opposing reads.`,
	SilenceUsage: true,
}

var logLevel string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so stdout stays valid JSON
		logging.SetDefault(logging.NewWithWriter(&logging.Config{Level: logLevel}, os.Stderr))
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newResolveCmd(),
		newFetchCmd(),
		newSampleConfigCmd(),
	)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
