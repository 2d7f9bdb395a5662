package binance

import (
	"time"

	"aurafx-engine/internal/analysis"
)

// NewSource returns the mock client when mock is set, otherwise a live client
func NewSource(baseURL string, timeout time.Duration, mock bool) analysis.CandleSource {
	if mock {
		return NewMockClient()
	}
	return NewClient(baseURL, timeout)
}

// Ensure both Client and MockClient implement analysis.CandleSource
var _ analysis.CandleSource = (*Client)(nil)
var _ analysis.CandleSource = (*MockClient)(nil)
