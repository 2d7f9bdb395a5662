package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"aurafx-engine/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN builds a libpq style connection URL
func (cfg Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolConfig.MaxConns {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.DatabaseContext("connect", cfg.Database).Info("connected to PostgreSQL",
		"host", cfg.Host, "max_conns", poolConfig.MaxConns)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.WithComponent("database").Info("database connection closed")
	}
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// migrations are idempotent and run in order on every start
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS candles (
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(4) NOT NULL,
		open_time BIGINT NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, timeframe, open_time)
	)`,

	`CREATE TABLE IF NOT EXISTS analysis_reports (
		id UUID PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(4) NOT NULL,
		bias VARCHAR(10) NOT NULL,
		overall_score DOUBLE PRECISION NOT NULL,
		vetoed BOOLEAN NOT NULL DEFAULT FALSE,
		payload JSONB NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_reports_symbol_tf
		ON analysis_reports(symbol, timeframe, generated_at DESC)`,
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log := logging.DatabaseContext("migrate", "")
	log.Info("running database migrations", "count", len(migrations))

	for i, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	log.Info("database migrations complete")
	return nil
}
