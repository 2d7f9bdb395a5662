package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/analyzer"
	"aurafx-engine/internal/aurafx"
	"aurafx-engine/internal/binance"
	"aurafx-engine/internal/cache"
	"aurafx-engine/internal/confluence"
	"aurafx-engine/internal/mtf"
	"aurafx-engine/internal/scanner"
)

// maxRequestCandles caps POST /api/analyze input
const maxRequestCandles = 5000

// badRequestErrors are parameter misuse; anything else from a fetch is an
// upstream failure
var badRequestErrors = []error{
	analysis.ErrInvalidLookback,
	analysis.ErrInvalidTolerance,
	analysis.ErrInvalidThreshold,
	analysis.ErrInvalidTimezoneOffset,
	analysis.ErrUnsupportedTimeframe,
	analysis.ErrInvalidDirection,
	confluence.ErrInvalidPolicy,
	mtf.ErrInvalidAssessment,
	analyzer.ErrInvalidSymbol,
	binance.ErrInvalidSymbol,
}

// statusFor maps an error to an HTTP status, using fallback for errors with
// no specific mapping
func statusFor(err error, fallback int) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, analyzer.ErrNoReport):
		return http.StatusNotFound
	case errors.Is(err, binance.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return fallback
}

// ============================================================================
// ANALYSIS HANDLERS
// ============================================================================

type analyzeRequest struct {
	Candles []analysis.Candle `json:"candles"`
	Options aurafx.Options    `json:"options"`
}

// handleAnalyze runs the pipeline on caller-supplied candles. Options not
// present in the body keep the service defaults.
func (s *Server) handleAnalyze(c *gin.Context) {
	req := analyzeRequest{Options: s.analyzer.Config().Options}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Candles) > maxRequestCandles {
		errorResponse(c, http.StatusBadRequest, "Too many candles: limit is "+strconv.Itoa(maxRequestCandles))
		return
	}

	result, err := s.analyzer.AnalyzeCandles(c.Request.Context(), req.Candles, req.Options)
	if err != nil {
		errorResponse(c, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	successResponse(c, result)
}

// parseTimeframe reads ?timeframe=, defaulting to the service's primary
func (s *Server) parseTimeframe(c *gin.Context) (analysis.Timeframe, bool) {
	raw := c.Query("timeframe")
	if raw == "" {
		return s.analyzer.Config().PrimaryTimeframe, true
	}
	tf, err := analysis.ParseTimeframe(raw)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return tf, true
}

// handleGetSignal fetches candles and analyzes a symbol
func (s *Server) handleGetSignal(c *gin.Context) {
	tf, ok := s.parseTimeframe(c)
	if !ok {
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > binance.MaxKlineLimit {
			errorResponse(c, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(binance.MaxKlineLimit))
			return
		}
		limit = parsed
	}

	report, err := s.analyzer.AnalyzeSymbol(c.Request.Context(), c.Param("symbol"), tf, limit)
	if err != nil {
		errorResponse(c, statusFor(err, http.StatusBadGateway), err.Error())
		return
	}
	successResponse(c, report)
}

// handleGetLatestSignal returns the newest stored report without fetching
func (s *Server) handleGetLatestSignal(c *gin.Context) {
	tf, ok := s.parseTimeframe(c)
	if !ok {
		return
	}

	report, err := s.analyzer.LatestReport(c.Request.Context(), c.Param("symbol"), tf)
	if err != nil {
		errorResponse(c, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	successResponse(c, report)
}

// handleGetMultiTimeframe analyzes both timeframes and returns the resolved
// view
func (s *Server) handleGetMultiTimeframe(c *gin.Context) {
	report, err := s.analyzer.AssessMultiTimeframe(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		errorResponse(c, statusFor(err, http.StatusBadGateway), err.Error())
		return
	}

	successResponse(c, gin.H{
		"symbol":       report.Symbol,
		"generated_at": report.GeneratedAt,
		"resolution":   report.Resolution,
		"ui_state":     report.UIState,
		"valid":        report.Valid,
		"primary_id":   report.Primary.ID,
		"secondary_id": report.Secondary.ID,
	})
}

// handleResolve resolves caller-supplied H4/D1 assessments
func (s *Server) handleResolve(c *gin.Context) {
	var in mtf.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if in.H4.Timeframe == "" {
		in.H4.Timeframe = analysis.TF4h
	}
	if in.D1.Timeframe == "" {
		in.D1.Timeframe = analysis.TF1d
	}

	resolution, err := mtf.Resolve(in)
	if err != nil {
		errorResponse(c, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	ui := mtf.MapConflictToUIState(resolution)

	successResponse(c, gin.H{
		"resolution": resolution,
		"ui_state":   ui,
		"valid":      mtf.ValidateNoSynthesis(resolution, ui),
	})
}

// historyEntry is an archived report without its payload
type historyEntry struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	Bias         string    `json:"bias"`
	OverallScore float64   `json:"overall_score"`
	Vetoed       bool      `json:"vetoed"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// handleGetSignalHistory lists a symbol's archived reports, newest first
func (s *Server) handleGetSignalHistory(c *gin.Context) {
	if s.history == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Report archive is not configured")
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > 500 {
			errorResponse(c, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	records, err := s.history.RecentReports(c.Request.Context(), symbol, limit)
	if err != nil {
		s.log.WithError(err).Warn("report history failed", "symbol", symbol)
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch report history")
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, historyEntry{
			ID:           r.ID,
			Symbol:       r.Symbol,
			Timeframe:    r.Timeframe,
			Bias:         r.Bias,
			OverallScore: r.OverallScore,
			Vetoed:       r.Vetoed,
			GeneratedAt:  r.GeneratedAt,
		})
	}
	successResponse(c, entries)
}

// ============================================================================
// SCANNER HANDLERS
// ============================================================================

// handleScannerLatest returns the last scan, falling back to the snapshot
// another instance left in Redis
func (s *Server) handleScannerLatest(c *gin.Context) {
	if s.scanner != nil {
		if result := s.scanner.GetLastResult(); result != nil {
			successResponse(c, result)
			return
		}
	}

	if s.reports != nil {
		var snapshot scanner.ScanResult
		err := s.reports.GetSnapshot(c.Request.Context(), &snapshot)
		if err == nil {
			successResponse(c, snapshot)
			return
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WithError(err).Debug("scan snapshot read failed")
		}
	}

	errorResponse(c, http.StatusNotFound, "No scan results available yet")
}

// handleScannerRun triggers a scan and waits for it
func (s *Server) handleScannerRun(c *gin.Context) {
	if s.scanner == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Scanner is not configured")
		return
	}
	successResponse(c, s.scanner.RunNow(c.Request.Context()))
}

// ============================================================================
// CACHE HANDLERS
// ============================================================================

// handleInvalidateCache drops cached candles, reports and resolutions for a
// symbol
func (s *Server) handleInvalidateCache(c *gin.Context) {
	if s.invalidator == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Cache is not configured")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if err := s.invalidator.InvalidateSymbol(c.Request.Context(), symbol); err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			errorResponse(c, http.StatusServiceUnavailable, "Cache is temporarily unavailable")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, gin.H{"symbol": symbol, "invalidated": true})
}
