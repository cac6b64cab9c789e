// Package agent implements the ReAct control loop: a trajectory state
// machine that alternates reasoning calls and tool executions until the
// finish tool seals the run.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ksadov/backcast/internal/llm"
	"github.com/ksadov/backcast/internal/models"
	"github.com/ksadov/backcast/internal/scoring"
	"github.com/ksadov/backcast/internal/tools"
)

// Agent runs one trajectory per Run call. The underlying client and registry
// are shared across workers; all per-run state lives in the RunResult.
type Agent struct {
	client   llm.Client
	registry *tools.Registry
	maxSteps int
}

// New creates an agent. maxSteps bounds the number of reasoning/tool turns
// before the run is sealed with a step-budget failure.
func New(client llm.Client, registry *tools.Registry, maxSteps int) *Agent {
	return &Agent{
		client:   client,
		registry: registry,
		maxSteps: maxSteps,
	}
}

// Run drives the trajectory for one example to a sealed result: either an
// answer in [0, 1] or exactly one failure marker, never both, never neither.
func (a *Agent) Run(ctx context.Context, ex models.Example) *models.RunResult {
	result := &models.RunResult{
		ExampleID:  ex.ID,
		Trajectory: &models.Trajectory{ID: uuid.NewString()},
		StartedAt:  time.Now(),
	}
	defer func() {
		result.Trajectory.Seal()
		result.EndedAt = time.Now()
	}()

	for turn := 0; turn < a.maxSteps; turn++ {
		if err := ctx.Err(); err != nil {
			return a.fail(result, models.FailTimeout, err.Error())
		}

		decision, err := a.client.Decide(ctx, llm.Request{
			Example: ex,
			Steps:   result.Trajectory.Steps,
			Tools:   a.registry.Definitions(),
		})
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return a.fail(result, models.FailTimeout, ctx.Err().Error())
			case errors.Is(err, llm.ErrMalformedOutput):
				return a.fail(result, models.FailMalformedToolChoice, err.Error())
			default:
				return a.fail(result, models.FailAdapter, err.Error())
			}
		}

		tool, ok := a.registry.Lookup(decision.Tool)
		if !ok {
			return a.fail(result, models.FailMalformedToolChoice,
				fmt.Sprintf("tool %q is not registered", decision.Tool))
		}

		if tool.Name == tools.FinishToolName {
			return a.finish(result, decision)
		}

		observation := a.execute(ctx, tool, decision.Args, result)
		if result.Failure != nil {
			return result
		}

		result.Trajectory.Append(models.Step{
			Thought:     decision.Thought,
			Tool:        decision.Tool,
			Args:        decision.Args,
			Observation: observation,
		})
	}

	return a.fail(result, models.FailStepBudgetExceeded,
		fmt.Sprintf("no answer after %d steps", a.maxSteps))
}

// execute runs one tool call. Schema violations seal the run; execution
// faults become observations so the agent can reason around them.
func (a *Agent) execute(ctx context.Context, tool tools.Tool, args map[string]any, result *models.RunResult) string {
	observation, err := tool.Run(ctx, args)
	if err == nil {
		return observation
	}

	var argErr *tools.ArgError
	if errors.As(err, &argErr) {
		a.fail(result, models.FailInvalidToolArgs, argErr.Error())
		return ""
	}

	slog.Debug("tool execution fault",
		"example", result.ExampleID,
		"tool", tool.Name,
		"error", err)
	return fmt.Sprintf("tool error: %v", err)
}

// finish validates the answer, clamping slightly-out-of-range probabilities
// with a recorded warning, and seals the trajectory.
func (a *Agent) finish(result *models.RunResult, decision llm.Decision) *models.RunResult {
	answer, err := tools.FinishAnswer(decision.Args)
	if err != nil {
		return a.fail(result, models.FailInvalidToolArgs, err.Error())
	}

	clamped, adjusted := scoring.Clamp(answer)
	if adjusted {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("answer %g out of [0,1], clamped to %g", answer, clamped))
	}

	result.Trajectory.Append(models.Step{
		Thought:     decision.Thought,
		Tool:        tools.FinishToolName,
		Args:        decision.Args,
		Observation: fmt.Sprintf("final answer: %g", clamped),
	})
	result.Answer = &clamped
	return result
}

func (a *Agent) fail(result *models.RunResult, kind models.FailureType, message string) *models.RunResult {
	result.Failure = &models.Failure{Type: kind, Message: message}
	return result
}
