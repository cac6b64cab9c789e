package models

import (
	"errors"
	"time"
)

// ErrSealed is returned when appending to a trajectory that already sealed.
var ErrSealed = errors.New("trajectory is sealed")

// Step is one completed turn of the agent loop.
type Step struct {
	Index       int            `json:"index"`
	Thought     string         `json:"thought"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	Observation string         `json:"observation,omitempty"`
}

// Trajectory is the append-only step log for one agent run. It is owned
// exclusively by the worker executing the run, so it carries no locking.
type Trajectory struct {
	ID     string `json:"id"`
	Steps  []Step `json:"steps"`
	sealed bool
}

// Append records a completed step. Steps are numbered by append order.
func (t *Trajectory) Append(step Step) error {
	if t.sealed {
		return ErrSealed
	}
	step.Index = len(t.Steps)
	t.Steps = append(t.Steps, step)
	return nil
}

// Seal freezes the trajectory. Further appends fail with ErrSealed.
// Sealing twice is a no-op.
func (t *Trajectory) Seal() {
	t.sealed = true
}

// Sealed reports whether the trajectory has been sealed.
func (t *Trajectory) Sealed() bool {
	return t.sealed
}

// RunResult is the sealed trajectory plus either a final answer or exactly
// one failure marker. Created once per example; immutable thereafter.
type RunResult struct {
	ExampleID  string      `json:"example_id"`
	Trajectory *Trajectory `json:"trajectory,omitempty"`
	Answer     *float64    `json:"answer,omitempty"`
	Failure    *Failure    `json:"failure,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
}

// DurationSec returns the wall-clock run time in seconds.
func (r *RunResult) DurationSec() float64 {
	return r.EndedAt.Sub(r.StartedAt).Seconds()
}
