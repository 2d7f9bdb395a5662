package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aurafx_analyses_total", Help: "Single-timeframe analyses by resulting bias"},
		[]string{"timeframe", "bias"},
	)
	AnalysisErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aurafx_analysis_errors_total", Help: "Analyses that failed before producing a bias"},
		[]string{"stage"},
	)
	VetoesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aurafx_vetoes_total", Help: "Analyses forced to NO_TRADE by the score veto"},
	)
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aurafx_analysis_duration_seconds",
			Help:    "Wall time of fetch plus analysis",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"timeframe"},
	)
	OverallScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "aurafx_overall_score", Help: "Latest overall confluence score"},
		[]string{"symbol", "timeframe"},
	)
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aurafx_resolutions_total", Help: "Multi-timeframe resolutions by state"},
		[]string{"state"},
	)
	SynthesisViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "aurafx_synthesis_violations_total", Help: "UI states rejected by the no-synthesis check"},
	)
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aurafx_scans_total", Help: "Scanner runs by outcome"},
		[]string{"outcome"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aurafx_http_requests_total", Help: "HTTP requests served"},
		[]string{"route", "method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		AnalysesTotal, AnalysisErrorsTotal, VetoesTotal, AnalysisDuration, OverallScore,
		ResolutionsTotal, SynthesisViolationsTotal, ScansTotal, HTTPRequestsTotal,
	)
}

// ObserveAnalysis records one completed analysis
func ObserveAnalysis(symbol, timeframe, bias string, score float64, vetoed bool, took time.Duration) {
	AnalysesTotal.WithLabelValues(timeframe, bias).Inc()
	AnalysisDuration.WithLabelValues(timeframe).Observe(took.Seconds())
	OverallScore.WithLabelValues(symbol, timeframe).Set(score)
	if vetoed {
		VetoesTotal.Inc()
	}
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a standalone metrics listener on addr
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
