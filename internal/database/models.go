package database

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// ReportRecord is one archived analysis report. Payload holds the full
// report as JSON so the schema does not track the result type.
type ReportRecord struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Timeframe    string          `json:"timeframe"`
	Bias         string          `json:"bias"`
	OverallScore float64         `json:"overall_score"`
	Vetoed       bool            `json:"vetoed"`
	Payload      json.RawMessage `json:"payload"`
	GeneratedAt  time.Time       `json:"generated_at"`
	CreatedAt    time.Time       `json:"created_at"`
}
