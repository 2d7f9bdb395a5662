// Package mtf resolves the bias of two timeframes into a single display
// decision. Conflicting reads are shown side by side or suppressed; they are
// never averaged.
package mtf

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"aurafx-engine/internal/analysis"
)

// ErrInvalidAssessment is returned for an unknown direction or a probability
// outside [0, 100]
var ErrInvalidAssessment = errors.New("invalid timeframe assessment")

// AlignmentTolerance is the largest probability gap still treated as consensus
const AlignmentTolerance = 10.0

// Direction is a timeframe's directional read
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	switch d {
	case Bullish, Bearish, Neutral:
		return true
	}
	return false
}

// opposes is true only for BULLISH against BEARISH
func (d Direction) opposes(other Direction) bool {
	return (d == Bullish && other == Bearish) || (d == Bearish && other == Bullish)
}

// ParseDirection accepts BULLISH/BEARISH/NEUTRAL and the LONG/SHORT/NO_TRADE bias names
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BULLISH", "LONG":
		return Bullish, nil
	case "BEARISH", "SHORT":
		return Bearish, nil
	case "NEUTRAL", "RANGE", "NO_TRADE":
		return Neutral, nil
	}
	return "", fmt.Errorf("%w: direction %q", ErrInvalidAssessment, s)
}

// State classifies how two timeframes relate
type State string

const (
	Aligned       State = "ALIGNED"
	Divergent     State = "DIVERGENT"
	Contradictory State = "CONTRADICTORY"
)

// Action is what the presentation layer is allowed to show
type Action string

const (
	ShowPrimaryAction Action = "SHOW_PRIMARY"
	ShowBothAction    Action = "SHOW_BOTH"
	SuppressAction    Action = "SUPPRESS"
)

const (
	MessageAligned       = "Multi-timeframe consensus"
	MessageDivergent     = "Timeframe-dependent scenarios"
	MessageContradictory = "Conflicting timeframe bias — no assessment issued"
)

// TimeframeAssessment is one timeframe's bias and probability (0-100)
type TimeframeAssessment struct {
	Timeframe   analysis.Timeframe `json:"timeframe"`
	Direction   Direction          `json:"direction"`
	Probability float64            `json:"probability"`
}

// Validate checks direction and probability range
func (a TimeframeAssessment) Validate() error {
	if !a.Direction.Valid() {
		return fmt.Errorf("%w: %s direction %q", ErrInvalidAssessment, a.Timeframe, a.Direction)
	}
	if math.IsNaN(a.Probability) || a.Probability < 0 || a.Probability > 100 {
		return fmt.Errorf("%w: %s probability %v", ErrInvalidAssessment, a.Timeframe, a.Probability)
	}
	return nil
}

// Input pairs the primary (H4) and secondary (D1) assessments
type Input struct {
	H4 TimeframeAssessment `json:"h4"`
	D1 TimeframeAssessment `json:"d1"`
}

// Resolution is one of ShowPrimary, ShowBoth or Suppress. Each variant
// carries exactly the assessments it is allowed to display.
type Resolution interface {
	State() State
	Action() Action
	Message() string
	Displayed() []TimeframeAssessment
	sealed()
}

// ShowPrimary displays the primary timeframe only
type ShowPrimary struct {
	Primary TimeframeAssessment
}

func (ShowPrimary) State() State    { return Aligned }
func (ShowPrimary) Action() Action  { return ShowPrimaryAction }
func (ShowPrimary) Message() string { return MessageAligned }
func (r ShowPrimary) Displayed() []TimeframeAssessment {
	return []TimeframeAssessment{r.Primary}
}
func (ShowPrimary) sealed() {}

// ShowBoth displays both timeframes with their original values
type ShowBoth struct {
	Primary   TimeframeAssessment
	Secondary TimeframeAssessment
}

func (ShowBoth) State() State    { return Divergent }
func (ShowBoth) Action() Action  { return ShowBothAction }
func (ShowBoth) Message() string { return MessageDivergent }
func (r ShowBoth) Displayed() []TimeframeAssessment {
	return []TimeframeAssessment{r.Primary, r.Secondary}
}
func (ShowBoth) sealed() {}

// Suppress displays nothing
type Suppress struct{}

func (Suppress) State() State                     { return Contradictory }
func (Suppress) Action() Action                   { return SuppressAction }
func (Suppress) Message() string                  { return MessageContradictory }
func (Suppress) Displayed() []TimeframeAssessment { return []TimeframeAssessment{} }
func (Suppress) sealed()                          {}

type resolutionJSON struct {
	State          State                `json:"state"`
	Action         Action               `json:"action"`
	Primary        *TimeframeAssessment `json:"primary,omitempty"`
	Secondary      *TimeframeAssessment `json:"secondary,omitempty"`
	DisplayMessage string               `json:"displayMessage"`
}

func (r ShowPrimary) MarshalJSON() ([]byte, error) {
	return json.Marshal(resolutionJSON{
		State: Aligned, Action: ShowPrimaryAction, Primary: &r.Primary, DisplayMessage: MessageAligned,
	})
}

func (r ShowBoth) MarshalJSON() ([]byte, error) {
	return json.Marshal(resolutionJSON{
		State: Divergent, Action: ShowBothAction, Primary: &r.Primary, Secondary: &r.Secondary, DisplayMessage: MessageDivergent,
	})
}

func (Suppress) MarshalJSON() ([]byte, error) {
	return json.Marshal(resolutionJSON{
		State: Contradictory, Action: SuppressAction, DisplayMessage: MessageContradictory,
	})
}

// Classify returns the conflict state for a validated input
func Classify(in Input) (State, error) {
	if err := in.H4.Validate(); err != nil {
		return "", err
	}
	if err := in.D1.Validate(); err != nil {
		return "", err
	}

	if in.H4.Direction.opposes(in.D1.Direction) {
		return Contradictory, nil
	}
	if math.Abs(in.H4.Probability-in.D1.Probability) <= AlignmentTolerance {
		return Aligned, nil
	}
	return Divergent, nil
}

// Resolve applies the conflict protocol. Opposite directions always suppress,
// whatever the probabilities. A probability gap above AlignmentTolerance
// shows both reads as given.
func Resolve(in Input) (Resolution, error) {
	state, err := Classify(in)
	if err != nil {
		return nil, err
	}

	switch state {
	case Aligned:
		return ShowPrimary{Primary: in.H4}, nil
	case Divergent:
		return ShowBoth{Primary: in.H4, Secondary: in.D1}, nil
	default:
		return Suppress{}, nil
	}
}
