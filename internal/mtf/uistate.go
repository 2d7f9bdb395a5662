package mtf

import "math"

// UIState is the display model handed to the presentation layer
type UIState struct {
	State       State                 `json:"state"`
	Action      Action                `json:"action"`
	Assessments []TimeframeAssessment `json:"assessments"`
	Message     string                `json:"message"`
	Visible     bool                  `json:"visible"`
}

// MapConflictToUIState copies the resolution's assessments verbatim
func MapConflictToUIState(r Resolution) UIState {
	displayed := r.Displayed()
	assessments := make([]TimeframeAssessment, len(displayed))
	copy(assessments, displayed)

	return UIState{
		State:       r.State(),
		Action:      r.Action(),
		Assessments: assessments,
		Message:     r.Message(),
		Visible:     len(assessments) > 0,
	}
}

// expectedCount is the number of assessments each action may display
func expectedCount(a Action) int {
	switch a {
	case ShowPrimaryAction:
		return 1
	case ShowBothAction:
		return 2
	}
	return 0
}

// ValidateNoSynthesis reports whether ui shows exactly what r allows: the
// right number of assessments for the action, a consistent state and action,
// and probabilities bit-identical to the originals.
func ValidateNoSynthesis(r Resolution, ui UIState) bool {
	if r == nil {
		return false
	}
	if ui.State != r.State() || ui.Action != r.Action() {
		return false
	}
	if len(ui.Assessments) != expectedCount(r.Action()) {
		return false
	}
	if ui.Visible != (len(ui.Assessments) > 0) {
		return false
	}

	originals := r.Displayed()
	if len(originals) != len(ui.Assessments) {
		return false
	}
	for i, shown := range ui.Assessments {
		orig := originals[i]
		if math.Float64bits(shown.Probability) != math.Float64bits(orig.Probability) {
			return false
		}
		if shown.Timeframe != orig.Timeframe || shown.Direction != orig.Direction {
			return false
		}
	}
	return true
}
