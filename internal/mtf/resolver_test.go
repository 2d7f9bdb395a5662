package mtf

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurafx-engine/internal/analysis"
)

func h4(d Direction, p float64) TimeframeAssessment {
	return TimeframeAssessment{Timeframe: analysis.TF4h, Direction: d, Probability: p}
}

func d1(d Direction, p float64) TimeframeAssessment {
	return TimeframeAssessment{Timeframe: analysis.TF1d, Direction: d, Probability: p}
}

func probabilities(ui UIState) []float64 {
	out := make([]float64, len(ui.Assessments))
	for i, a := range ui.Assessments {
		out[i] = a.Probability
	}
	return out
}

func TestResolveScenarios(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		state     State
		action    Action
		displayed []float64
	}{
		{"aligned", Input{h4(Bullish, 65), d1(Bullish, 70)}, Aligned, ShowPrimaryAction, []float64{65}},
		{"divergent", Input{h4(Bullish, 60), d1(Bullish, 75)}, Divergent, ShowBothAction, []float64{60, 75}},
		{"contradictory", Input{h4(Bullish, 70), d1(Bearish, 65)}, Contradictory, SuppressAction, []float64{}},
		{"neutral pair", Input{h4(Neutral, 50), d1(Neutral, 55)}, Aligned, ShowPrimaryAction, []float64{50}},
		{"neutral never opposes", Input{h4(Neutral, 50), d1(Bearish, 52)}, Aligned, ShowPrimaryAction, []float64{50}},
		{"contradictory dominance", Input{h4(Bullish, 99), d1(Bearish, 1)}, Contradictory, SuppressAction, []float64{}},
		{"no upper bound on divergence", Input{h4(Bearish, 0), d1(Bearish, 100)}, Divergent, ShowBothAction, []float64{0, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.state, res.State())
			assert.Equal(t, tt.action, res.Action())

			ui := MapConflictToUIState(res)
			assert.Equal(t, tt.state, ui.State)
			assert.Equal(t, tt.action, ui.Action)
			assert.Equal(t, tt.displayed, probabilities(ui))
			assert.Equal(t, len(tt.displayed) > 0, ui.Visible)
			assert.True(t, ValidateNoSynthesis(res, ui))
		})
	}
}

func TestResolveBoundary(t *testing.T) {
	res, err := Resolve(Input{h4(Bullish, 60), d1(Bullish, 70)})
	require.NoError(t, err)
	assert.Equal(t, Aligned, res.State(), "delta=10 is aligned")

	res, err = Resolve(Input{h4(Bullish, 60), d1(Bullish, 71)})
	require.NoError(t, err)
	assert.Equal(t, Divergent, res.State(), "delta=11 is divergent")
}

func TestDivergentNeverDisplaysAverage(t *testing.T) {
	res, err := Resolve(Input{h4(Bullish, 60), d1(Bullish, 80)})
	require.NoError(t, err)

	ui := MapConflictToUIState(res)
	assert.NotContains(t, probabilities(ui), 70.0)
	assert.Equal(t, []float64{60, 80}, probabilities(ui))
}

// Every pair over a probability grid, in every direction combination, must
// display only bit-identical source values.
func TestNoSynthesisProperty(t *testing.T) {
	directions := []Direction{Bullish, Bearish, Neutral}
	grid := []float64{0, 0.1, 1.0 / 3.0, 9.999, 10, 10.000001, 33.3, 49.95, 50, 65.4321, 89.9, 99.99, 100}

	for _, dh := range directions {
		for _, dd := range directions {
			for _, ph := range grid {
				for _, pd := range grid {
					in := Input{h4(dh, ph), d1(dd, pd)}
					res, err := Resolve(in)
					require.NoError(t, err)

					ui := MapConflictToUIState(res)
					require.True(t, ValidateNoSynthesis(res, ui), "%+v", in)

					sources := map[uint64]bool{
						math.Float64bits(ph): true,
						math.Float64bits(pd): true,
					}
					for _, a := range ui.Assessments {
						assert.True(t, sources[math.Float64bits(a.Probability)], "synthesized %v from %+v", a.Probability, in)
					}

					switch res.(type) {
					case ShowPrimary:
						assert.Len(t, ui.Assessments, 1)
						assert.Equal(t, in.H4, ui.Assessments[0])
					case ShowBoth:
						assert.Equal(t, []TimeframeAssessment{in.H4, in.D1}, ui.Assessments)
					case Suppress:
						assert.Empty(t, ui.Assessments)
						assert.True(t, dh.opposes(dd))
					}
				}
			}
		}
	}
}

func TestValidateNoSynthesisRejectsTampering(t *testing.T) {
	res, err := Resolve(Input{h4(Bullish, 60), d1(Bullish, 75)})
	require.NoError(t, err)

	averaged := MapConflictToUIState(res)
	averaged.Assessments[1].Probability = 67.5
	assert.False(t, ValidateNoSynthesis(res, averaged))

	dropped := MapConflictToUIState(res)
	dropped.Assessments = dropped.Assessments[:1]
	assert.False(t, ValidateNoSynthesis(res, dropped))

	relabeled := MapConflictToUIState(res)
	relabeled.State = Aligned
	assert.False(t, ValidateNoSynthesis(res, relabeled))

	leaked := MapConflictToUIState(Suppress{})
	leaked.Assessments = []TimeframeAssessment{h4(Bullish, 70)}
	leaked.Visible = true
	assert.False(t, ValidateNoSynthesis(Suppress{}, leaked))

	assert.False(t, ValidateNoSynthesis(nil, UIState{}))
}

func TestResolveInvalidAssessment(t *testing.T) {
	bad := []Input{
		{h4("SIDEWAYS", 50), d1(Bullish, 50)},
		{h4(Bullish, -1), d1(Bullish, 50)},
		{h4(Bullish, 50), d1(Bullish, 100.5)},
		{h4(Bullish, math.NaN()), d1(Bullish, 50)},
	}
	for _, in := range bad {
		_, err := Resolve(in)
		assert.ErrorIs(t, err, ErrInvalidAssessment, "%+v", in)
	}
}

func TestResolutionJSON(t *testing.T) {
	res, err := Resolve(Input{h4(Bullish, 60), d1(Bullish, 75)})
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"state": "DIVERGENT",
		"action": "SHOW_BOTH",
		"primary": {"timeframe": "4h", "direction": "BULLISH", "probability": 60},
		"secondary": {"timeframe": "1d", "direction": "BULLISH", "probability": 75},
		"displayMessage": "Timeframe-dependent scenarios"
	}`, string(data))

	data, err = json.Marshal(Suppress{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"CONTRADICTORY","action":"SUPPRESS","displayMessage":"`+MessageContradictory+`"}`, string(data))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("long")
	require.NoError(t, err)
	assert.Equal(t, Bullish, d)

	d, err = ParseDirection("NO_TRADE")
	require.NoError(t, err)
	assert.Equal(t, Neutral, d)

	_, err = ParseDirection("up-ish")
	assert.ErrorIs(t, err, ErrInvalidAssessment)
}
