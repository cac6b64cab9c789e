// Package scoring converts predicted probabilities and known outcomes into
// calibration losses.
package scoring

import (
	"math"

	"github.com/ksadov/backcast/internal/models"
)

// Brier returns the squared error between the predicted probability and the
// 0/1-encoded outcome. Defined only for yes/no outcomes; ambiguous and
// unresolved markets return ok=false and are excluded from aggregates.
func Brier(p float64, outcome models.Outcome) (float64, bool) {
	var truth float64
	switch outcome {
	case models.OutcomeYes:
		truth = 1
	case models.OutcomeNo:
		truth = 0
	default:
		return 0, false
	}
	d := p - truth
	return d * d, true
}

// Directional returns +1 when the prediction lands on the resolved side of
// 0.5, -1 when it lands on the wrong side, and 0 when it abstains at exactly
// 0.5 or the outcome is not yes/no.
func Directional(p float64, outcome models.Outcome) int {
	switch outcome {
	case models.OutcomeYes:
		switch {
		case p > 0.5:
			return 1
		case p < 0.5:
			return -1
		}
	case models.OutcomeNo:
		switch {
		case p < 0.5:
			return 1
		case p > 0.5:
			return -1
		}
	}
	return 0
}

// Stats returns the mean and 95% confidence interval half-width for a set of
// scores. Empty input yields (0, 0).
func Stats(scores []float64) (mean, ci95 float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	n := float64(len(scores))

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean = sum / n

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= n

	stdErr := math.Sqrt(variance) / math.Sqrt(n)
	return mean, 1.96 * stdErr
}

// Clamp forces p into [0, 1]. Models frequently emit probabilities slightly
// outside bounds due to numeric formatting; clamping keeps the loss
// well-defined. clamped reports whether any adjustment happened.
func Clamp(p float64) (clamped float64, adjusted bool) {
	switch {
	case p < 0:
		return 0, true
	case p > 1:
		return 1, true
	}
	return p, false
}
