package models

import "time"

// Outcome is the ground-truth resolution of a backtest example.
type Outcome string

const (
	OutcomeYes       Outcome = "yes"
	OutcomeNo        Outcome = "no"
	OutcomeAmbiguous Outcome = "ambiguous"
	// OutcomeUnknown marks live examples that have not resolved yet.
	OutcomeUnknown Outcome = ""
)

// Scoreable reports whether the outcome can enter aggregate scoring.
// Ambiguous and unresolved markets are counted separately.
func (o Outcome) Scoreable() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Example is one forecasting question, loaded from a dataset file or built
// from a live market. Immutable after load.
type Example struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Description     string    `json:"description"`
	CreatorUsername string    `json:"creatorUsername"`
	Comments        []string  `json:"comments"`
	CurrentDate     time.Time `json:"current_date"`
	Outcome         Outcome   `json:"outcome,omitempty"`

	// MarketProbability is the market's own probability at CurrentDate,
	// kept for comparison against the agent's answer.
	MarketProbability *float64 `json:"market_probability,omitempty"`

	GroupSlugs  []string `json:"groupSlugs,omitempty"`
	CreatedTime int64    `json:"createdTime,omitempty"` // epoch millis
}

// Dataset is an ordered collection of examples from one or more files.
type Dataset struct {
	Name     string
	Examples []Example
}
