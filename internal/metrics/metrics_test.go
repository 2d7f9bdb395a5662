package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAnalysis(t *testing.T) {
	before := testutil.ToFloat64(VetoesTotal)

	ObserveAnalysis("EURUSD", "4h", "NO_TRADE", 0.21, true, 15*time.Millisecond)

	if got := testutil.ToFloat64(VetoesTotal) - before; got != 1 {
		t.Fatalf("vetoes delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(OverallScore.WithLabelValues("EURUSD", "4h")); got != 0.21 {
		t.Fatalf("overall score = %v, want 0.21", got)
	}
	if got := testutil.ToFloat64(AnalysesTotal.WithLabelValues("4h", "NO_TRADE")); got < 1 {
		t.Fatalf("analyses_total = %v, want >= 1", got)
	}
}

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve("127.0.0.1:0")
	defer srv.Close()

	ResolutionsTotal.WithLabelValues("ALIGNED").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "aurafx_resolutions_total" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("aurafx_resolutions_total metric not found")
	}
}
