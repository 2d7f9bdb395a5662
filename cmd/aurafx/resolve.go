package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/mtf"
)

func newResolveCmd() *cobra.Command {
	var h4, d1 string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an H4/D1 pair of assessments into what may be displayed",
		Example: `  aurafx resolve --h4 BULLISH:72 --d1 BULLISH:68
  aurafx resolve --h4 BULLISH:80 --d1 NEUTRAL:45`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if h4 == "" || d1 == "" {
				return errors.New("both --h4 and --d1 are required")
			}

			primary, err := parseAssessment(h4, analysis.TF4h)
			if err != nil {
				return fmt.Errorf("bad --h4: %w", err)
			}
			secondary, err := parseAssessment(d1, analysis.TF1d)
			if err != nil {
				return fmt.Errorf("bad --d1: %w", err)
			}

			resolution, err := mtf.Resolve(mtf.Input{H4: primary, D1: secondary})
			if err != nil {
				return err
			}
			ui := mtf.MapConflictToUIState(resolution)

			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"resolution": resolution,
				"ui_state":   ui,
				"valid":      mtf.ValidateNoSynthesis(resolution, ui),
			})
		},
	}

	cmd.Flags().StringVar(&h4, "h4", "", "primary assessment as DIRECTION:PROBABILITY")
	cmd.Flags().StringVar(&d1, "d1", "", "secondary assessment as DIRECTION:PROBABILITY")

	return cmd
}

// parseAssessment reads DIRECTION:PROBABILITY, e.g. BULLISH:65
func parseAssessment(s string, tf analysis.Timeframe) (mtf.TimeframeAssessment, error) {
	dir, prob, ok := strings.Cut(s, ":")
	if !ok {
		return mtf.TimeframeAssessment{}, fmt.Errorf("%w: %q: want DIRECTION:PROBABILITY", mtf.ErrInvalidAssessment, s)
	}

	d, err := mtf.ParseDirection(dir)
	if err != nil {
		return mtf.TimeframeAssessment{}, err
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(prob), 64)
	if err != nil {
		return mtf.TimeframeAssessment{}, fmt.Errorf("%w: probability %q", mtf.ErrInvalidAssessment, prob)
	}

	a := mtf.TimeframeAssessment{Timeframe: tf, Direction: d, Probability: p}
	return a, a.Validate()
}
