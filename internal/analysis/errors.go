package analysis

import "errors"

// Parameter misuse errors. Sparse or short candle data is never an error.
var (
	ErrInvalidLookback       = errors.New("lookback must be greater than zero")
	ErrInvalidTolerance      = errors.New("tolerance must be a non-negative number")
	ErrInvalidThreshold      = errors.New("threshold must be a non-negative number")
	ErrInvalidTimezoneOffset = errors.New("timezone offset must be within +/-840 minutes")
	ErrUnsupportedTimeframe  = errors.New("unsupported timeframe")
	ErrInvalidDirection      = errors.New("invalid direction")
)
