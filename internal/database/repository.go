package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/logging"
)

// Querier is the subset of pgxpool.Pool and pgx.Tx the repositories use
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ============================================================================
// CANDLES
// ============================================================================

// CandleRepository archives candles and serves them back as a CandleSource
type CandleRepository struct {
	q Querier
}

// NewCandleRepository creates a new candle repository
func NewCandleRepository(q Querier) *CandleRepository {
	return &CandleRepository{q: q}
}

const upsertCandleSQL = `
	INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol, timeframe, open_time) DO UPDATE
	SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
	    close = EXCLUDED.close, volume = EXCLUDED.volume, updated_at = NOW()
`

// UpsertCandles writes candles in one batch, replacing bars that share an
// open time. It returns the number of rows written.
func (r *CandleRepository) UpsertCandles(ctx context.Context, symbol string, tf analysis.Timeframe, candles []analysis.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	symbol = strings.ToUpper(symbol)

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(upsertCandleSQL, symbol, string(tf), c.Time, c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for range candles {
		tag, err := br.Exec()
		if err != nil {
			return written, fmt.Errorf("upsert candles %s %s: %w", symbol, tf, err)
		}
		written += int(tag.RowsAffected())
	}

	logging.DatabaseContext("upsert", "candles").Debug("candles archived",
		"symbol", symbol, "timeframe", string(tf), "rows", written)
	return written, nil
}

// FetchCandles returns the newest limit candles in ascending order
func (r *CandleRepository) FetchCandles(ctx context.Context, symbol string, tf analysis.Timeframe, limit int) ([]analysis.Candle, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT open_time, open, high, low, close, volume FROM (
			SELECT open_time, open, high, low, close, volume
			FROM candles
			WHERE symbol = $1 AND timeframe = $2
			ORDER BY open_time DESC
			LIMIT $3
		) recent
		ORDER BY open_time ASC
	`
	rows, err := r.q.Query(ctx, query, strings.ToUpper(symbol), string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []analysis.Candle
	for rows.Next() {
		c := analysis.Candle{Timeframe: tf}
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// ============================================================================
// ANALYSIS REPORTS
// ============================================================================

// ReportRepository is the audit log of analysis reports
type ReportRepository struct {
	q Querier
}

// NewReportRepository creates a new report repository
func NewReportRepository(q Querier) *ReportRepository {
	return &ReportRepository{q: q}
}

// SaveReport inserts a report; saving the same ID twice is a no-op
func (r *ReportRepository) SaveReport(ctx context.Context, rec *ReportRecord) error {
	query := `
		INSERT INTO analysis_reports (id, symbol, timeframe, bias, overall_score, vetoed, payload, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query,
		rec.ID, rec.Symbol, rec.Timeframe, rec.Bias, rec.OverallScore, rec.Vetoed,
		[]byte(rec.Payload), rec.GeneratedAt,
	).Scan(&rec.CreatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("save report %s: %w", rec.ID, err)
	}
	return nil
}

const reportColumns = `id::text, symbol, timeframe, bias, overall_score, vetoed, payload, generated_at, created_at`

func scanReport(row pgx.Row) (*ReportRecord, error) {
	rec := &ReportRecord{}
	var payload []byte
	err := row.Scan(&rec.ID, &rec.Symbol, &rec.Timeframe, &rec.Bias, &rec.OverallScore,
		&rec.Vetoed, &payload, &rec.GeneratedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Payload = payload
	return rec, nil
}

// LatestReport returns the most recent report for symbol and timeframe
func (r *ReportRepository) LatestReport(ctx context.Context, symbol, timeframe string) (*ReportRecord, error) {
	query := `SELECT ` + reportColumns + `
		FROM analysis_reports
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY generated_at DESC
		LIMIT 1`

	rec, err := scanReport(r.q.QueryRow(ctx, query, strings.ToUpper(symbol), timeframe))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest report %s %s: %w", symbol, timeframe, err)
	}
	return rec, nil
}

// RecentReports returns up to limit reports for symbol, newest first
func (r *ReportRepository) RecentReports(ctx context.Context, symbol string, limit int) ([]*ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + reportColumns + `
		FROM analysis_reports
		WHERE symbol = $1
		ORDER BY generated_at DESC
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, strings.ToUpper(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("recent reports %s: %w", symbol, err)
	}
	defer rows.Close()

	var reports []*ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, rec)
	}
	return reports, rows.Err()
}
