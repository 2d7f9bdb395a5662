// Package analyzer fetches candles, runs the bias pipeline and resolves the
// H4/D1 conflict, recording every outcome to the cache, the audit log,
// the event bus and metrics.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/aurafx"
	"aurafx-engine/internal/cache"
	"aurafx-engine/internal/database"
	"aurafx-engine/internal/events"
	"aurafx-engine/internal/logging"
	"aurafx-engine/internal/metrics"
	"aurafx-engine/internal/mtf"
)

var (
	// ErrInvalidSymbol is returned for an empty symbol
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrNoReport is returned when no report exists for a symbol and timeframe
	ErrNoReport = errors.New("no report available")
)

// DefaultCandleLimit is the window fetched when the caller passes none
const DefaultCandleLimit = 200

// CandleArchive persists fetched candles
type CandleArchive interface {
	UpsertCandles(ctx context.Context, symbol string, tf analysis.Timeframe, candles []analysis.Candle) (int, error)
}

// ReportStore is the report audit log
type ReportStore interface {
	SaveReport(ctx context.Context, rec *database.ReportRecord) error
	LatestReport(ctx context.Context, symbol, timeframe string) (*database.ReportRecord, error)
}

// Config holds the service defaults
type Config struct {
	Options          aurafx.Options
	PrimaryTimeframe analysis.Timeframe
	HigherTimeframe  analysis.Timeframe
	CandleLimit      int
}

// Report is one single-timeframe analysis of a symbol
type Report struct {
	ID          string             `json:"id"`
	Symbol      string             `json:"symbol"`
	Timeframe   analysis.Timeframe `json:"timeframe"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Result      aurafx.Result      `json:"result"`
}

// MTFReport is the resolved H4/D1 view of a symbol. Resolution carries
// exactly the assessments the UI is allowed to show. Input.H4 is assessed
// from a primary run without the higher timeframe bias; Primary keeps the
// HTF-filtered confluence view, which a conflicting D1 vetoes to NO_TRADE.
type MTFReport struct {
	Symbol      string         `json:"symbol"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Input       mtf.Input      `json:"input"`
	Resolution  mtf.Resolution `json:"resolution"`
	UIState     mtf.UIState    `json:"uiState"`
	Valid       bool           `json:"valid"`
	Primary     *Report        `json:"primary"`
	Secondary   *Report        `json:"secondary"`
}

// Service runs analyses against a candle source
type Service struct {
	source analysis.CandleSource
	cfg    Config

	reports *cache.ReportCache
	archive CandleArchive
	store   ReportStore
	bus     *events.EventBus

	log *logging.Logger
	now func() time.Time
}

// NewService creates a service. Zero-valued Config fields take defaults.
func NewService(source analysis.CandleSource, cfg Config) *Service {
	if cfg.Options.Lookback == 0 {
		cfg.Options = aurafx.DefaultOptions()
	}
	if cfg.PrimaryTimeframe == "" {
		cfg.PrimaryTimeframe = analysis.TF4h
	}
	if cfg.HigherTimeframe == "" {
		cfg.HigherTimeframe = analysis.TF1d
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = DefaultCandleLimit
	}
	return &Service{
		source: source,
		cfg:    cfg,
		log:    logging.WithComponent("analyzer"),
		now:    time.Now,
	}
}

// SetReportCache enables the Redis report cache
func (s *Service) SetReportCache(rc *cache.ReportCache) { s.reports = rc }

// SetCandleArchive enables candle archiving
func (s *Service) SetCandleArchive(a CandleArchive) { s.archive = a }

// SetReportStore enables the report audit log
func (s *Service) SetReportStore(rs ReportStore) { s.store = rs }

// SetEventBus enables event publishing
func (s *Service) SetEventBus(bus *events.EventBus) { s.bus = bus }

// Config returns the service defaults
func (s *Service) Config() Config { return s.cfg }

// AnalyzeCandles runs the pipeline on caller-supplied candles
func (s *Service) AnalyzeCandles(ctx context.Context, candles []analysis.Candle, opts aurafx.Options) (aurafx.Result, error) {
	if err := ctx.Err(); err != nil {
		return aurafx.Result{}, err
	}
	start := time.Now()
	result, err := aurafx.Analyze(candles, opts)
	if err != nil {
		metrics.AnalysisErrorsTotal.WithLabelValues("options").Inc()
		return aurafx.Result{}, err
	}

	tf := "custom"
	if len(candles) > 0 && candles[0].Timeframe != "" {
		tf = string(candles[0].Timeframe)
	}
	metrics.ObserveAnalysis("custom", tf, string(result.Bias), result.Confluence.OverallScore,
		result.Confluence.Vetoed, time.Since(start))
	return result, nil
}

// AnalyzeSymbol fetches limit candles and analyzes them with the service
// options
func (s *Service) AnalyzeSymbol(ctx context.Context, symbol string, tf analysis.Timeframe, limit int) (*Report, error) {
	return s.analyzeSymbol(ctx, symbol, tf, limit, s.cfg.Options)
}

func (s *Service) analyzeSymbol(ctx context.Context, symbol string, tf analysis.Timeframe, limit int, opts aurafx.Options) (*Report, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	start := time.Now()
	candles, err := s.fetch(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	return s.analyzeFetched(ctx, symbol, tf, candles, opts, start)
}

func (s *Service) fetch(ctx context.Context, symbol string, tf analysis.Timeframe, limit int) ([]analysis.Candle, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", analysis.ErrUnsupportedTimeframe, tf)
	}
	if limit <= 0 {
		limit = s.cfg.CandleLimit
	}

	candles, err := s.source.FetchCandles(ctx, symbol, tf, limit)
	if err != nil {
		metrics.AnalysisErrorsTotal.WithLabelValues("fetch").Inc()
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	return candles, nil
}

func (s *Service) analyzeFetched(ctx context.Context, symbol string, tf analysis.Timeframe, candles []analysis.Candle, opts aurafx.Options, start time.Time) (*Report, error) {
	log := logging.AnalysisContext(symbol, string(tf))

	if s.archive != nil && len(candles) > 0 {
		if _, err := s.archive.UpsertCandles(ctx, symbol, tf, candles); err != nil {
			log.WithError(err).Warn("candle archive failed")
		}
	}

	result, err := aurafx.Analyze(candles, opts)
	if err != nil {
		metrics.AnalysisErrorsTotal.WithLabelValues("analyze").Inc()
		return nil, err
	}

	report := &Report{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Timeframe:   tf,
		GeneratedAt: s.now().UTC(),
		Result:      result,
	}

	took := time.Since(start)
	metrics.ObserveAnalysis(symbol, string(tf), string(result.Bias), result.Confluence.OverallScore,
		result.Confluence.Vetoed, took)
	log.WithDuration(took).Info("analysis complete",
		"report_id", report.ID,
		"bias", string(result.Bias),
		"overall", result.Confluence.OverallScore,
		"vetoed", result.Confluence.Vetoed,
		"candles", len(candles))

	s.record(ctx, report)
	return report, nil
}

// record fans a report out to the optional sinks. Sink failures are logged,
// never returned.
func (s *Service) record(ctx context.Context, report *Report) {
	log := logging.AnalysisContext(report.Symbol, string(report.Timeframe))

	if s.reports != nil {
		if err := s.reports.Put(ctx, report.Symbol, string(report.Timeframe), report); err != nil {
			log.WithError(err).Debug("report cache write failed")
		}
	}

	if s.store != nil {
		payload, err := json.Marshal(report)
		if err == nil {
			err = s.store.SaveReport(ctx, &database.ReportRecord{
				ID:           report.ID,
				Symbol:       report.Symbol,
				Timeframe:    string(report.Timeframe),
				Bias:         string(report.Result.Bias),
				OverallScore: report.Result.Confluence.OverallScore,
				Vetoed:       report.Result.Confluence.Vetoed,
				Payload:      payload,
				GeneratedAt:  report.GeneratedAt,
			})
		}
		if err != nil {
			log.WithError(err).Warn("report archive failed")
		}
	}

	s.bus.PublishBias(report.ID, report.Symbol, string(report.Timeframe), string(report.Result.Bias),
		report.Result.Confluence.OverallScore, report.Result.Confluence.Vetoed)
}

// LatestReport returns the newest stored report, checking the cache before
// the audit log
func (s *Service) LatestReport(ctx context.Context, symbol string, tf analysis.Timeframe) (*Report, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if s.reports != nil {
		var report Report
		if err := s.reports.Get(ctx, symbol, string(tf), &report); err == nil {
			return &report, nil
		}
	}

	if s.store != nil {
		rec, err := s.store.LatestReport(ctx, symbol, string(tf))
		switch {
		case errors.Is(err, database.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			var report Report
			if err := json.Unmarshal(rec.Payload, &report); err != nil {
				return nil, fmt.Errorf("decode report %s: %w", rec.ID, err)
			}
			return &report, nil
		}
	}

	return nil, ErrNoReport
}

// AssessMultiTimeframe analyzes the higher and primary timeframes and
// resolves the conflict between them. The resolver sees each timeframe's
// own bias; the D1 bias only feeds the primary report's confluence view.
func (s *Service) AssessMultiTimeframe(ctx context.Context, symbol string) (*MTFReport, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	// The primary fetch overlaps the higher timeframe analysis; the primary
	// analysis then waits for the higher timeframe's bias.
	start := time.Now()
	var (
		wg           sync.WaitGroup
		primaryRaw   []analysis.Candle
		primaryErr   error
		secondary    *Report
		secondaryErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		primaryRaw, primaryErr = s.fetch(ctx, symbol, s.cfg.PrimaryTimeframe, s.cfg.CandleLimit)
	}()
	go func() {
		defer wg.Done()
		secondary, secondaryErr = s.AnalyzeSymbol(ctx, symbol, s.cfg.HigherTimeframe, s.cfg.CandleLimit)
	}()
	wg.Wait()

	if secondaryErr != nil {
		return nil, fmt.Errorf("%s analysis: %w", s.cfg.HigherTimeframe, secondaryErr)
	}
	if primaryErr != nil {
		return nil, fmt.Errorf("%s analysis: %w", s.cfg.PrimaryTimeframe, primaryErr)
	}

	opts := s.cfg.Options
	htf := aurafx.DirectionOf(secondary.Result.Bias)
	opts.HigherTimeframeBias = &htf

	primary, err := s.analyzeFetched(ctx, symbol, s.cfg.PrimaryTimeframe, primaryRaw, opts, start)
	if err != nil {
		return nil, fmt.Errorf("%s analysis: %w", s.cfg.PrimaryTimeframe, err)
	}

	// A vetoed primary is NO_TRADE and would hide a real H4/D1 contradiction
	alone := s.cfg.Options
	alone.HigherTimeframeBias = nil
	standalone, err := aurafx.Analyze(primaryRaw, alone)
	if err != nil {
		return nil, fmt.Errorf("%s analysis: %w", s.cfg.PrimaryTimeframe, err)
	}

	return s.resolve(ctx, symbol, primary, secondary, standalone)
}

func (s *Service) resolve(ctx context.Context, symbol string, primary, secondary *Report, standalone aurafx.Result) (*MTFReport, error) {
	in := mtf.Input{
		H4: aurafx.Assess(standalone, primary.Timeframe),
		D1: aurafx.Assess(secondary.Result, secondary.Timeframe),
	}
	resolution, err := mtf.Resolve(in)
	if err != nil {
		return nil, err
	}
	ui := mtf.MapConflictToUIState(resolution)
	valid := mtf.ValidateNoSynthesis(resolution, ui)

	metrics.ResolutionsTotal.WithLabelValues(string(resolution.State())).Inc()
	if !valid {
		metrics.SynthesisViolationsTotal.Inc()
		logging.AnalysisContext(symbol, "mtf").Error("UI state failed no-synthesis check",
			"state", string(resolution.State()))
		s.bus.PublishSynthesisViolation(symbol, string(resolution.State()))
	}

	report := &MTFReport{
		Symbol:      symbol,
		GeneratedAt: s.now().UTC(),
		Input:       in,
		Resolution:  resolution,
		UIState:     ui,
		Valid:       valid,
		Primary:     primary,
		Secondary:   secondary,
	}

	logging.SignalContext(symbol, string(primary.Result.Bias), primary.Result.Confluence.OverallScore).
		Info("multi-timeframe resolution",
			"state", string(resolution.State()),
			"action", string(resolution.Action()),
			"h4_probability", in.H4.Probability,
			"d1_probability", in.D1.Probability)

	if s.reports != nil {
		if err := s.reports.PutResolution(ctx, symbol, resolution); err != nil {
			s.log.WithError(err).Debug("resolution cache write failed", "symbol", symbol)
		}
	}
	s.bus.PublishResolution(symbol, string(resolution.State()), string(resolution.Action()), resolution)

	return report, nil
}
