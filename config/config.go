package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/aurafx"
	"aurafx-engine/internal/confluence"
)

// DefaultConfigFile is read when no path is given
const DefaultConfigFile = "config.json"

type Config struct {
	AnalysisConfig AnalysisConfig `json:"analysis" yaml:"analysis"`
	BinanceConfig  BinanceConfig  `json:"binance" yaml:"binance"`
	SourceConfig   SourceConfig   `json:"source" yaml:"source"`
	RedisConfig    RedisConfig    `json:"redis" yaml:"redis"`
	DatabaseConfig DatabaseConfig `json:"database" yaml:"database"`
	ScannerConfig  ScannerConfig  `json:"scanner" yaml:"scanner"`
	ServerConfig   ServerConfig   `json:"server" yaml:"server"`
	LoggingConfig  LoggingConfig  `json:"logging" yaml:"logging"`
	MetricsConfig  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// AnalysisConfig holds detector thresholds and the default timeframes
type AnalysisConfig struct {
	Lookback              int     `json:"lookback" yaml:"lookback"`
	LiquidityTolerancePct float64 `json:"liquidity_tolerance_pct" yaml:"liquidity_tolerance_pct"`
	MinImpulsePct         float64 `json:"min_impulse_pct" yaml:"min_impulse_pct"`
	MinGapPct             float64 `json:"min_gap_pct" yaml:"min_gap_pct"`
	TzOffsetMinutes       int     `json:"tz_offset_minutes" yaml:"tz_offset_minutes"`
	MiddleBand            string  `json:"middle_band" yaml:"middle_band"` // follow_trend or no_trade
	PrimaryTimeframe      string  `json:"primary_timeframe" yaml:"primary_timeframe"`
	HigherTimeframe       string  `json:"higher_timeframe" yaml:"higher_timeframe"`
	CandleLimit           int     `json:"candle_limit" yaml:"candle_limit"`
}

type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`               // debug, info, warn, error
	Output      string `json:"output" yaml:"output"`             // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format" yaml:"json_format"`   // Output as JSON
	IncludeFile bool   `json:"include_file" yaml:"include_file"` // Include file and line number
}

type BinanceConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Timeout int    `json:"timeout" yaml:"timeout"` // Seconds
}

// SourceConfig selects where candles come from
type SourceConfig struct {
	Provider string `json:"provider" yaml:"provider"` // binance, postgres or mock
	Archive  bool   `json:"archive" yaml:"archive"`   // Store fetched candles in PostgreSQL
}

// RedisConfig holds Redis configuration for caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"pool_size" yaml:"pool_size"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
	MaxConns int32  `json:"max_conns" yaml:"max_conns"`
	MinConns int32  `json:"min_conns" yaml:"min_conns"`
}

type ScannerConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`           // Enable/disable scanner
	Schedule    string   `json:"schedule" yaml:"schedule"`         // Cron spec with seconds field
	Symbols     []string `json:"symbols" yaml:"symbols"`           // Watchlist
	WorkerCount int      `json:"worker_count" yaml:"worker_count"` // Concurrent worker count
	Timeout     int      `json:"timeout" yaml:"timeout"`           // Seconds per scan
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port" yaml:"port"`
	Host            string `json:"host" yaml:"host"`
	AllowedOrigins  string `json:"allowed_origins" yaml:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout" yaml:"read_timeout"`       // Seconds
	WriteTimeout    int    `json:"write_timeout" yaml:"write_timeout"`     // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	RateLimit       int    `json:"rate_limit" yaml:"rate_limit"` // Requests per minute per client
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
	Port    int    `json:"port" yaml:"port"` // Separate listener; 0 serves Path on the API server
}

// Load reads the config file at path (JSON, or YAML by extension), falling
// back to defaults when it does not exist, then applies env overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnvOrDefault("AURAFX_CONFIG", DefaultConfigFile)
	}

	cfg, err := loadFromFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		// If no config file, start with empty config
		cfg = &Config{}
	}

	applyDefaults(cfg)

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, &config)
	default:
		err = json.Unmarshal(file, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", filename, err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	a := &cfg.AnalysisConfig
	if a.Lookback == 0 {
		a.Lookback = analysis.DefaultSwingLookback
	}
	if a.LiquidityTolerancePct == 0 {
		a.LiquidityTolerancePct = analysis.DefaultLiquidityTolerancePct
	}
	if a.MinImpulsePct == 0 {
		a.MinImpulsePct = analysis.DefaultMinImpulsePct
	}
	if a.MinGapPct == 0 {
		a.MinGapPct = analysis.DefaultMinGapPct
	}
	if a.MiddleBand == "" {
		a.MiddleBand = string(confluence.DefaultMiddleBand)
	}
	if a.PrimaryTimeframe == "" {
		a.PrimaryTimeframe = string(analysis.TF4h)
	}
	if a.HigherTimeframe == "" {
		a.HigherTimeframe = string(analysis.TF1d)
	}
	if a.CandleLimit == 0 {
		a.CandleLimit = 200
	}

	if cfg.BinanceConfig.BaseURL == "" {
		cfg.BinanceConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.BinanceConfig.Timeout == 0 {
		cfg.BinanceConfig.Timeout = 30
	}
	if cfg.SourceConfig.Provider == "" {
		cfg.SourceConfig.Provider = "binance"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}

	d := &cfg.DatabaseConfig
	if d.Host == "" {
		d.Host = "localhost"
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.Database == "" {
		d.Database = "aurafx"
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxConns == 0 {
		d.MaxConns = 25
	}
	if d.MinConns == 0 {
		d.MinConns = 5
	}

	s := &cfg.ScannerConfig
	if s.Schedule == "" {
		s.Schedule = "0 */15 * * * *"
	}
	if len(s.Symbols) == 0 {
		s.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	if s.WorkerCount == 0 {
		s.WorkerCount = 4
	}
	if s.Timeout == 0 {
		s.Timeout = 60
	}

	srv := &cfg.ServerConfig
	if srv.Port == 0 {
		srv.Port = 8080
	}
	if srv.Host == "" {
		srv.Host = "0.0.0.0"
	}
	if srv.AllowedOrigins == "" {
		srv.AllowedOrigins = "*"
	}
	if srv.ReadTimeout == 0 {
		srv.ReadTimeout = 30
	}
	if srv.WriteTimeout == 0 {
		srv.WriteTimeout = 30
	}
	if srv.ShutdownTimeout == 0 {
		srv.ShutdownTimeout = 10
	}
	if srv.RateLimit == 0 {
		srv.RateLimit = 120
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
	if cfg.MetricsConfig.Path == "" {
		cfg.MetricsConfig.Path = "/metrics"
	}
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Analysis config
	a := &cfg.AnalysisConfig
	a.Lookback = getEnvIntOrDefault("AURAFX_LOOKBACK", a.Lookback)
	a.LiquidityTolerancePct = getEnvFloatOrDefault("AURAFX_LIQUIDITY_TOLERANCE_PCT", a.LiquidityTolerancePct)
	a.MinImpulsePct = getEnvFloatOrDefault("AURAFX_MIN_IMPULSE_PCT", a.MinImpulsePct)
	a.MinGapPct = getEnvFloatOrDefault("AURAFX_MIN_GAP_PCT", a.MinGapPct)
	a.TzOffsetMinutes = getEnvIntOrDefault("AURAFX_TZ_OFFSET_MINUTES", a.TzOffsetMinutes)
	a.MiddleBand = getEnvOrDefault("AURAFX_MIDDLE_BAND", a.MiddleBand)
	a.PrimaryTimeframe = getEnvOrDefault("AURAFX_PRIMARY_TIMEFRAME", a.PrimaryTimeframe)
	a.HigherTimeframe = getEnvOrDefault("AURAFX_HIGHER_TIMEFRAME", a.HigherTimeframe)
	a.CandleLimit = getEnvIntOrDefault("AURAFX_CANDLE_LIMIT", a.CandleLimit)

	// Candle source
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.SourceConfig.Provider = getEnvOrDefault("CANDLE_SOURCE", cfg.SourceConfig.Provider)
	if getEnvBool("MOCK_MODE", false) {
		cfg.SourceConfig.Provider = "mock"
	}
	cfg.SourceConfig.Archive = getEnvBool("CANDLE_ARCHIVE", cfg.SourceConfig.Archive)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBool("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Database config
	d := &cfg.DatabaseConfig
	d.Enabled = getEnvBool("DB_ENABLED", d.Enabled)
	d.Host = getEnvOrDefault("DB_HOST", d.Host)
	d.Port = getEnvIntOrDefault("DB_PORT", d.Port)
	d.User = getEnvOrDefault("DB_USER", d.User)
	d.Password = getEnvOrDefault("DB_PASSWORD", d.Password)
	d.Database = getEnvOrDefault("DB_NAME", d.Database)
	d.SSLMode = getEnvOrDefault("DB_SSLMODE", d.SSLMode)

	// Scanner config
	cfg.ScannerConfig.Enabled = getEnvBool("SCANNER_ENABLED", cfg.ScannerConfig.Enabled)
	cfg.ScannerConfig.Schedule = getEnvOrDefault("SCANNER_SCHEDULE", cfg.ScannerConfig.Schedule)
	if symbols := getEnvOrDefault("SCANNER_SYMBOLS", ""); symbols != "" {
		cfg.ScannerConfig.Symbols = splitList(symbols)
	}
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)
	cfg.ServerConfig.RateLimit = getEnvIntOrDefault("SERVER_RATE_LIMIT", cfg.ServerConfig.RateLimit)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBool("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBool("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	cfg.MetricsConfig.Enabled = getEnvBool("METRICS_ENABLED", cfg.MetricsConfig.Enabled)
	cfg.MetricsConfig.Port = getEnvIntOrDefault("METRICS_PORT", cfg.MetricsConfig.Port)
}

// Validate rejects settings the analysis pipeline would refuse at runtime
func (c *Config) Validate() error {
	if _, err := c.AnalysisConfig.Options(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}
	if _, err := analysis.ParseTimeframe(c.AnalysisConfig.PrimaryTimeframe); err != nil {
		return fmt.Errorf("analysis config: primary timeframe: %w", err)
	}
	if _, err := analysis.ParseTimeframe(c.AnalysisConfig.HigherTimeframe); err != nil {
		return fmt.Errorf("analysis config: higher timeframe: %w", err)
	}
	if c.AnalysisConfig.CandleLimit <= 0 {
		return fmt.Errorf("analysis config: candle_limit must be positive, got %d", c.AnalysisConfig.CandleLimit)
	}

	switch c.SourceConfig.Provider {
	case "binance", "postgres", "mock":
	default:
		return fmt.Errorf("source config: unknown provider %q", c.SourceConfig.Provider)
	}
	if c.SourceConfig.Provider == "postgres" && !c.DatabaseConfig.Enabled {
		return errors.New("source config: postgres provider requires database.enabled")
	}

	if c.ScannerConfig.WorkerCount <= 0 {
		return fmt.Errorf("scanner config: worker_count must be positive, got %d", c.ScannerConfig.WorkerCount)
	}
	return nil
}

// Options converts the analysis section into pipeline options
func (a AnalysisConfig) Options() (aurafx.Options, error) {
	policy, err := confluence.ParseMiddleBandPolicy(a.MiddleBand)
	if err != nil {
		return aurafx.Options{}, err
	}

	opts := aurafx.Options{
		Lookback:              a.Lookback,
		LiquidityTolerancePct: a.LiquidityTolerancePct,
		MinImpulsePct:         a.MinImpulsePct,
		MinGapPct:             a.MinGapPct,
		TzOffsetMinutes:       a.TzOffsetMinutes,
		MiddleBand:            policy,
	}
	if err := opts.Validate(); err != nil {
		return aurafx.Options{}, err
	}
	return opts, nil
}

// TimeoutDuration returns the HTTP timeout for the kline client
func (b BinanceConfig) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// Default returns a config with every default applied and no file or env input
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// GenerateSampleConfig creates a sample configuration file. The format
// follows the file extension.
func GenerateSampleConfig(filename string) error {
	config := Default()
	config.LoggingConfig.JSONFormat = true
	config.MetricsConfig.Enabled = true
	config.ScannerConfig.Enabled = true
	config.ScannerConfig.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
