package models

import "time"

// ExampleResult is one row of the evaluation report, in dataset order.
type ExampleResult struct {
	ExampleID   string      `json:"example_id"`
	Question    string      `json:"question"`
	Outcome     Outcome     `json:"outcome,omitempty"`
	Answer      *float64    `json:"answer,omitempty"`
	Brier       *float64    `json:"brier,omitempty"`
	Directional *int        `json:"directional,omitempty"`
	Failure     *Failure    `json:"failure,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	Steps       int         `json:"steps"`
	DurationSec float64     `json:"duration_sec"`
}

// Summary holds aggregate statistics for one evaluation run. Means are
// computed over scored examples only; failed and ambiguous examples are
// counted but never enter a mean.
type Summary struct {
	TotalExamples    int     `json:"total_examples"`
	ScoredExamples   int     `json:"scored_examples"`
	FailedExamples   int     `json:"failed_examples"`
	AmbiguousSkipped int     `json:"ambiguous_skipped"`

	MeanBrier       float64 `json:"mean_brier"`
	BrierCI95       float64 `json:"brier_ci95"`
	MeanDirectional float64 `json:"mean_directional"`
	FailureRate     float64 `json:"failure_rate"`
	TimeoutRate     float64 `json:"timeout_rate"`

	FailuresByType map[FailureType]int `json:"failures_by_type"`
}

// Report is the full output of one evaluation run.
type Report struct {
	JobName          string          `json:"job_name"`
	DatasetName      string          `json:"dataset_name"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          time.Time       `json:"ended_at"`
	TotalDurationSec float64         `json:"total_duration_sec"`
	Summary          Summary         `json:"summary"`
	Results          []ExampleResult `json:"results"`
}
