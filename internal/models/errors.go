package models

// FailureType identifies the category of failure that sealed a run without
// an answer.
type FailureType string

const (
	// Completion backend exhausted its retry budget.
	FailAdapter FailureType = "adapter_failure"

	// Reasoning output referenced a tool that is not registered.
	FailMalformedToolChoice FailureType = "malformed_tool_choice"

	// Tool arguments could not be coerced to the declared schema.
	FailInvalidToolArgs FailureType = "invalid_tool_args"

	// Run exceeded the configured maximum step count.
	FailStepBudgetExceeded FailureType = "step_budget_exceeded"

	// Harness deadline expired before the trajectory sealed.
	FailTimeout FailureType = "timeout"

	// Catch-all for panics and unexpected worker errors.
	FailInternal FailureType = "internal_error"
)

// Failure marks a run that sealed without producing an answer.
type Failure struct {
	Type    FailureType `json:"type"`
	Message string      `json:"message"`
}
