package scanner

import (
	"time"

	"aurafx-engine/internal/mtf"
)

// SymbolResult is one watchlist symbol's multi-timeframe outcome
type SymbolResult struct {
	Symbol        string                    `json:"symbol"`
	ReportID      string                    `json:"report_id,omitempty"`
	State         mtf.State                 `json:"state,omitempty"`
	Action        mtf.Action                `json:"action,omitempty"`
	Message       string                    `json:"message,omitempty"`
	Displayed     []mtf.TimeframeAssessment `json:"displayed,omitempty"`
	PrimaryBias   string                    `json:"primary_bias,omitempty"`
	PrimaryScore  float64                   `json:"primary_score"`
	SecondaryBias string                    `json:"secondary_bias,omitempty"`
	Valid         bool                      `json:"valid"`
	Error         string                    `json:"error,omitempty"`
	Timestamp     time.Time                 `json:"timestamp"`
}

// ScanResult aggregates all symbol results from a scan
type ScanResult struct {
	ScanID         string         `json:"scan_id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Duration       time.Duration  `json:"duration"`
	SymbolsScanned int            `json:"symbols_scanned"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	Results        []SymbolResult `json:"results"`
}

// Outcome labels a scan for metrics
func (r *ScanResult) Outcome() string {
	switch {
	case r.Failed == 0:
		return "ok"
	case r.Succeeded == 0:
		return "failed"
	default:
		return "partial"
	}
}

// ScannerConfig holds scanner configuration
type ScannerConfig struct {
	Enabled     bool
	Schedule    string // cron spec with a leading seconds field
	Symbols     []string
	WorkerCount int
	Timeout     time.Duration // per scan
}
