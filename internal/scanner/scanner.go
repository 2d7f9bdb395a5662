package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"aurafx-engine/internal/analyzer"
	"aurafx-engine/internal/cache"
	"aurafx-engine/internal/events"
	"aurafx-engine/internal/logging"
	"aurafx-engine/internal/metrics"
)

// DefaultTimeout bounds a scan when the config gives none
const DefaultTimeout = 5 * time.Minute

// ErrNoSymbols is returned for an empty watchlist
var ErrNoSymbols = errors.New("scanner watchlist is empty")

// schedules are parsed with a leading seconds field
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule parses a six-field cron spec
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid scanner schedule %q: %w", spec, err)
	}
	return nil
}

// Assessor produces a symbol's multi-timeframe report
type Assessor interface {
	AssessMultiTimeframe(ctx context.Context, symbol string) (*analyzer.MTFReport, error)
}

// Scanner runs the multi-timeframe assessment over a watchlist on a cron
// schedule
type Scanner struct {
	assessor Assessor
	config   ScannerConfig
	cron     *cron.Cron

	reports *cache.ReportCache
	bus     *events.EventBus
	log     *logging.Logger

	scanMu     sync.Mutex // one scan at a time
	mu         sync.RWMutex
	lastResult *ScanResult
	now        func() time.Time
}

// NewScanner creates a scanner. The watchlist is upper-cased and
// de-duplicated.
func NewScanner(assessor Assessor, config ScannerConfig) (*Scanner, error) {
	if err := ValidateSchedule(config.Schedule); err != nil {
		return nil, err
	}
	config.Symbols = normalizeSymbols(config.Symbols)
	if len(config.Symbols) == 0 {
		return nil, ErrNoSymbols
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Scanner{
		assessor: assessor,
		config:   config,
		cron:     cron.New(cron.WithSeconds()),
		log:      logging.WithComponent("scanner"),
		now:      time.Now,
	}, nil
}

// SetReportCache enables scan snapshots in Redis
func (sc *Scanner) SetReportCache(rc *cache.ReportCache) { sc.reports = rc }

// SetEventBus enables scan events
func (sc *Scanner) SetEventBus(bus *events.EventBus) { sc.bus = bus }

// Symbols returns the watchlist
func (sc *Scanner) Symbols() []string {
	out := make([]string, len(sc.config.Symbols))
	copy(out, sc.config.Symbols)
	return out
}

// Start registers the scan on the cron schedule
func (sc *Scanner) Start() error {
	if !sc.config.Enabled {
		sc.log.Info("Scanner is disabled")
		return nil
	}

	if _, err := sc.cron.AddFunc(sc.config.Schedule, func() {
		sc.RunNow(context.Background())
	}); err != nil {
		return fmt.Errorf("register scan: %w", err)
	}
	sc.cron.Start()
	sc.log.Info("Scanner started", "schedule", sc.config.Schedule, "symbols", len(sc.config.Symbols))
	return nil
}

// Stop waits for a running scan to finish
func (sc *Scanner) Stop() {
	<-sc.cron.Stop().Done()
	sc.log.Info("Scanner stopped")
}

// RunNow executes a single scan cycle. Scans never overlap; a call made
// while one is running waits for it.
func (sc *Scanner) RunNow(ctx context.Context) *ScanResult {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sc.config.Timeout)
	defer cancel()

	startTime := sc.now()
	scanID := fmt.Sprintf("scan-%d", startTime.UnixMilli())
	symbols := sc.config.Symbols

	log := logging.ScanContext(scanID, len(symbols))
	log.Info("Starting scan")
	sc.bus.PublishScanStarted(scanID, len(symbols))

	resultChan := make(chan SymbolResult, len(symbols))
	symbolChan := make(chan string, len(symbols))
	var wg sync.WaitGroup

	for i := 0; i < sc.config.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, symbolChan, resultChan, &wg)
	}

	for _, symbol := range symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]SymbolResult, 0, len(symbols))
	succeeded, failed := 0, 0
	for result := range resultChan {
		if result.Error != "" {
			failed++
		} else {
			succeeded++
		}
		results = append(results, result)
	}

	// Strongest primary scores first; failures sink to the bottom
	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Error == "") != (results[j].Error == "") {
			return results[i].Error == ""
		}
		if results[i].PrimaryScore != results[j].PrimaryScore {
			return results[i].PrimaryScore > results[j].PrimaryScore
		}
		return results[i].Symbol < results[j].Symbol
	})

	endTime := sc.now()
	scanResult := &ScanResult{
		ScanID:         scanID,
		StartTime:      startTime,
		EndTime:        endTime,
		Duration:       endTime.Sub(startTime),
		SymbolsScanned: len(symbols),
		Succeeded:      succeeded,
		Failed:         failed,
		Results:        results,
	}

	sc.mu.Lock()
	sc.lastResult = scanResult
	sc.mu.Unlock()

	metrics.ScansTotal.WithLabelValues(scanResult.Outcome()).Inc()
	if sc.reports != nil {
		if err := sc.reports.PutSnapshot(ctx, scanResult); err != nil {
			log.WithError(err).Debug("scan snapshot write failed")
		}
	}
	sc.bus.PublishScanCompleted(scanID, succeeded, failed, scanResult.Duration)

	log.Info("Scan completed",
		"succeeded", succeeded,
		"failed", failed,
		"duration_ms", scanResult.Duration.Milliseconds())
	return scanResult
}

// worker processes symbols from the channel
func (sc *Scanner) worker(ctx context.Context, symbolChan <-chan string, resultChan chan<- SymbolResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for symbol := range symbolChan {
		resultChan <- sc.scanSymbol(ctx, symbol)
	}
}

func (sc *Scanner) scanSymbol(ctx context.Context, symbol string) SymbolResult {
	result := SymbolResult{Symbol: symbol, Timestamp: sc.now().UTC()}

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	report, err := sc.assessor.AssessMultiTimeframe(ctx, symbol)
	if err != nil {
		sc.log.WithError(err).Warn("symbol scan failed", "symbol", symbol)
		sc.bus.PublishError("scanner", "assess "+symbol, err)
		result.Error = err.Error()
		return result
	}

	result.State = report.Resolution.State()
	result.Action = report.Resolution.Action()
	result.Message = report.Resolution.Message()
	result.Displayed = report.UIState.Assessments
	result.Valid = report.Valid
	if report.Primary != nil {
		result.ReportID = report.Primary.ID
		result.PrimaryBias = string(report.Primary.Result.Bias)
		result.PrimaryScore = report.Primary.Result.Confluence.OverallScore
	}
	if report.Secondary != nil {
		result.SecondaryBias = string(report.Secondary.Result.Bias)
	}
	return result
}

// GetLastResult returns the most recent scan result
func (sc *Scanner) GetLastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
