package scoring

import (
	"math"
	"testing"

	"github.com/ksadov/backcast/internal/models"
)

func TestBrier(t *testing.T) {
	tests := []struct {
		name     string
		p        float64
		outcome  models.Outcome
		expected float64
		ok       bool
	}{
		{name: "perfect no", p: 0.0, outcome: models.OutcomeNo, expected: 0.0, ok: true},
		{name: "perfect yes", p: 1.0, outcome: models.OutcomeYes, expected: 0.0, ok: true},
		{name: "coin flip on yes", p: 0.5, outcome: models.OutcomeYes, expected: 0.25, ok: true},
		{name: "coin flip on no", p: 0.5, outcome: models.OutcomeNo, expected: 0.25, ok: true},
		{name: "confidently wrong", p: 1.0, outcome: models.OutcomeNo, expected: 1.0, ok: true},
		{name: "ambiguous excluded", p: 0.7, outcome: models.OutcomeAmbiguous, ok: false},
		{name: "unresolved excluded", p: 0.7, outcome: models.OutcomeUnknown, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Brier(tt.p, tt.outcome)
			if ok != tt.ok {
				t.Fatalf("Brier(%v, %v) ok = %v, want %v", tt.p, tt.outcome, ok, tt.ok)
			}
			if ok && math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Brier(%v, %v) = %v, want %v", tt.p, tt.outcome, got, tt.expected)
			}
		})
	}
}

func TestDirectional(t *testing.T) {
	tests := []struct {
		name     string
		p        float64
		outcome  models.Outcome
		expected int
	}{
		{name: "right on yes", p: 0.9, outcome: models.OutcomeYes, expected: 1},
		{name: "wrong on yes", p: 0.1, outcome: models.OutcomeYes, expected: -1},
		{name: "right on no", p: 0.1, outcome: models.OutcomeNo, expected: 1},
		{name: "wrong on no", p: 0.9, outcome: models.OutcomeNo, expected: -1},
		{name: "abstain", p: 0.5, outcome: models.OutcomeYes, expected: 0},
		{name: "ambiguous", p: 0.9, outcome: models.OutcomeAmbiguous, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Directional(tt.p, tt.outcome); got != tt.expected {
				t.Errorf("Directional(%v, %v) = %d, want %d", tt.p, tt.outcome, got, tt.expected)
			}
		})
	}
}

func TestStats(t *testing.T) {
	mean, ci := Stats(nil)
	if mean != 0 || ci != 0 {
		t.Errorf("Stats(nil) = (%v, %v), want (0, 0)", mean, ci)
	}

	mean, ci = Stats([]float64{0.5, 0.5, 0.5})
	if mean != 0.5 {
		t.Errorf("mean of constant scores = %v, want 0.5", mean)
	}
	if ci != 0 {
		t.Errorf("CI of constant scores = %v, want 0", ci)
	}

	mean, ci = Stats([]float64{0, 1})
	if mean != 0.5 {
		t.Errorf("mean = %v, want 0.5", mean)
	}
	// std dev 0.5, std err 0.5/sqrt(2), ci = 1.96 * that
	want := 1.96 * 0.5 / math.Sqrt2
	if math.Abs(ci-want) > 1e-12 {
		t.Errorf("ci = %v, want %v", ci, want)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		p        float64
		expected float64
		adjusted bool
	}{
		{name: "in range", p: 0.42, expected: 0.42, adjusted: false},
		{name: "zero", p: 0, expected: 0, adjusted: false},
		{name: "one", p: 1, expected: 1, adjusted: false},
		{name: "above one", p: 1.3, expected: 1.0, adjusted: true},
		{name: "below zero", p: -0.2, expected: 0.0, adjusted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, adjusted := Clamp(tt.p)
			if got != tt.expected || adjusted != tt.adjusted {
				t.Errorf("Clamp(%v) = (%v, %v), want (%v, %v)", tt.p, got, adjusted, tt.expected, tt.adjusted)
			}
		})
	}
}
