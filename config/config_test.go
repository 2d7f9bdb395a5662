package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/confluence"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, analysis.DefaultSwingLookback, cfg.AnalysisConfig.Lookback)
	assert.Equal(t, "4h", cfg.AnalysisConfig.PrimaryTimeframe)
	assert.Equal(t, "1d", cfg.AnalysisConfig.HigherTimeframe)
	assert.Equal(t, "binance", cfg.SourceConfig.Provider)
	assert.Equal(t, 8080, cfg.ServerConfig.Port)
	assert.Equal(t, "0 */15 * * * *", cfg.ScannerConfig.Schedule)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"analysis": {"lookback": 3, "middle_band": "no_trade", "tz_offset_minutes": -300},
		"source": {"provider": "mock"},
		"server": {"port": 9090}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.AnalysisConfig.Lookback)
	assert.Equal(t, "mock", cfg.SourceConfig.Provider)
	assert.Equal(t, 9090, cfg.ServerConfig.Port)

	opts, err := cfg.AnalysisConfig.Options()
	require.NoError(t, err)
	assert.Equal(t, 3, opts.Lookback)
	assert.Equal(t, -300, opts.TzOffsetMinutes)
	assert.Equal(t, confluence.NoTradeInMiddle, opts.MiddleBand)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
analysis:
  lookback: 4
  primary_timeframe: H4
scanner:
  enabled: true
  symbols: [EURUSD, GBPUSD]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.AnalysisConfig.Lookback)
	assert.True(t, cfg.ScannerConfig.Enabled)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, cfg.ScannerConfig.Symbols)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AURAFX_LOOKBACK", "5")
	t.Setenv("MOCK_MODE", "true")
	t.Setenv("SCANNER_SYMBOLS", "btcusdt, ethusdt ,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.AnalysisConfig.Lookback)
	assert.Equal(t, "mock", cfg.SourceConfig.Provider)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.ScannerConfig.Symbols)
	assert.Equal(t, "debug", cfg.LoggingConfig.Level)
}

func TestValidateRejectsMisuse(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"negative lookback", func(c *Config) { c.AnalysisConfig.Lookback = -1 }, analysis.ErrInvalidLookback},
		{"negative tolerance", func(c *Config) { c.AnalysisConfig.LiquidityTolerancePct = -1 }, analysis.ErrInvalidTolerance},
		{"bad offset", func(c *Config) { c.AnalysisConfig.TzOffsetMinutes = 2000 }, analysis.ErrInvalidTimezoneOffset},
		{"bad timeframe", func(c *Config) { c.AnalysisConfig.PrimaryTimeframe = "7m" }, analysis.ErrUnsupportedTimeframe},
		{"bad policy", func(c *Config) { c.AnalysisConfig.MiddleBand = "average" }, confluence.ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	cfg := Default()
	cfg.SourceConfig.Provider = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.DatabaseConfig.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestGenerateSampleConfig(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"sample.json", "sample.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, GenerateSampleConfig(path))

		cfg, err := Load(path)
		require.NoError(t, err, name)
		assert.True(t, cfg.ScannerConfig.Enabled, name)
		assert.Len(t, cfg.ScannerConfig.Symbols, 3, name)
	}
}
