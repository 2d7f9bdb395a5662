package analysis

import (
	"fmt"
	"strings"
)

// Direction is the directional read of price structure
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Range   Direction = "RANGE"
)

// Valid reports whether d is one of the known directions
func (d Direction) Valid() bool {
	switch d {
	case Bullish, Bearish, Range:
		return true
	}
	return false
}

// Opposite returns the inverse direction; RANGE has no opposite
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	}
	return Range
}

// ParseDirection accepts BULLISH/BEARISH/RANGE as well as LONG/SHORT and
// lowercase variants
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BULLISH", "BULL", "LONG", "UP":
		return Bullish, nil
	case "BEARISH", "BEAR", "SHORT", "DOWN":
		return Bearish, nil
	case "RANGE", "NEUTRAL", "SIDEWAYS":
		return Range, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}
