// Package executor runs the evaluation harness: a worker pool that replays
// the agent against a historical dataset and aggregates the scored results.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ksadov/backcast/internal/config"
	"github.com/ksadov/backcast/internal/dataset"
	"github.com/ksadov/backcast/internal/models"
	"github.com/ksadov/backcast/internal/scoring"
)

// TrajectoryRunner executes one agent trajectory to a sealed result.
type TrajectoryRunner interface {
	Run(ctx context.Context, ex models.Example) *models.RunResult
}

// RunnerFactory builds the runner for one example. The factory is called
// per example so the search date restriction can track each example's
// reference date.
type RunnerFactory func(ex models.Example) TrajectoryRunner

// Orchestrator coordinates one evaluation run end to end: dataset loading,
// concurrent execution, persistence, and aggregation.
type Orchestrator struct {
	cfg     config.JobConfig
	cutoff  time.Time
	factory RunnerFactory
}

// NewOrchestrator creates an orchestrator. cutoff is the model's knowledge
// cutoff; a zero value disables the dataset cutoff filter.
func NewOrchestrator(cfg config.JobConfig, cutoff time.Time, factory RunnerFactory) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		cutoff:  cutoff,
		factory: factory,
	}
}

// Run executes the full evaluation defined by the job configuration.
func (o *Orchestrator) Run(ctx context.Context) (*models.Report, error) {
	startTime := time.Now()

	loader := dataset.NewLoader(dataset.Filters{
		Cutoff:        o.cutoff,
		ExcludeGroups: o.cfg.Filters.ExcludeGroups,
		MaxExamples:   o.cfg.MaxExamples,
	})
	datasets, err := loader.LoadAll(ctx, o.cfg.Datasets)
	if err != nil {
		return nil, fmt.Errorf("loading datasets: %w", err)
	}

	var names []string
	var examples []models.Example
	for _, ds := range datasets {
		names = append(names, ds.Name)
		examples = append(examples, ds.Examples...)
	}
	if o.cfg.MaxExamples > 0 && len(examples) > o.cfg.MaxExamples {
		examples = examples[:o.cfg.MaxExamples]
	}

	jobName := time.Now().Format("2006-01-02__15-04-05")
	if o.cfg.Name != nil {
		jobName = *o.cfg.Name
	}
	jobDir := filepath.Join(o.cfg.JobsDir, jobName)

	if _, err := os.Stat(jobDir); err == nil {
		return nil, fmt.Errorf("job directory already exists: %s (will not overwrite existing results)", jobDir)
	}
	if err := os.MkdirAll(filepath.Join(jobDir, "examples"), 0755); err != nil {
		return nil, fmt.Errorf("creating job directory: %w", err)
	}

	cfgJSON, _ := json.MarshalIndent(o.cfg, "", "  ")
	os.WriteFile(filepath.Join(jobDir, "config.json"), cfgJSON, 0644)

	nWorkers := o.cfg.Workers
	if nWorkers <= 0 {
		nWorkers = 1
	}
	if nWorkers > len(examples) {
		nWorkers = len(examples)
	}

	slog.Info("starting evaluation",
		"job", jobName,
		"examples", len(examples),
		"workers", nWorkers)

	ordered, skipped := o.runConcurrent(ctx, examples, jobDir, nWorkers)

	report := o.aggregate(jobName, strings.Join(names, "+"), examples, ordered, startTime)
	if skipped > 0 {
		slog.Warn("evaluation cancelled before completion", "skipped", skipped)
	}

	reportJSON, _ := json.MarshalIndent(report, "", "  ")
	os.WriteFile(filepath.Join(jobDir, "report.json"), reportJSON, 0644)

	return report, nil
}

// runConcurrent fans examples out to nWorkers workers and collects results
// back into dataset order. Returns the ordered results (nil slots for
// examples never fed due to cancellation) and the count of such slots.
func (o *Orchestrator) runConcurrent(ctx context.Context, examples []models.Example, jobDir string, nWorkers int) ([]*models.RunResult, int) {
	type item struct {
		idx int
		ex  models.Example
	}

	itemChan := make(chan item) // unbuffered
	ordered := make([]*models.RunResult, len(examples))

	var wg sync.WaitGroup

	// Start workers. Each ordered slot is written by exactly one worker, so
	// the slice needs no locking.
	for range nWorkers {
		wg.Go(func() {
			for it := range itemChan {
				result := o.runOne(ctx, it.ex)
				o.persistResult(jobDir, result)
				ordered[it.idx] = result
			}
		})
	}

	// Feeder goroutine: sends examples to workers, respects context
	// cancellation.
	go func() {
		defer close(itemChan)
		for i, ex := range examples {
			select {
			case <-ctx.Done():
				return
			case itemChan <- item{idx: i, ex: ex}:
			}
		}
	}()

	wg.Wait()

	skipped := 0
	for _, r := range ordered {
		if r == nil {
			skipped++
		}
	}
	return ordered, skipped
}

// runOne executes a single example under its hard wall-clock deadline. The
// run happens in its own goroutine so a stuck trajectory cannot block the
// worker past the deadline plus a short grace period.
func (o *Orchestrator) runOne(ctx context.Context, ex models.Example) *models.RunResult {
	start := time.Now()
	timeout := time.Duration(o.cfg.ExampleTimeoutSec * float64(time.Second))
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *models.RunResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				res := &models.RunResult{
					ExampleID:  ex.ID,
					Trajectory: &models.Trajectory{},
					Failure: &models.Failure{
						Type:    models.FailInternal,
						Message: fmt.Sprintf("panic during run: %v", r),
					},
					StartedAt: start,
					EndedAt:   time.Now(),
				}
				res.Trajectory.Seal()
				done <- res
			}
		}()
		done <- o.factory(ex).Run(runCtx, ex)
	}()

	select {
	case res := <-done:
		return res
	case <-runCtx.Done():
	}

	// The deadline fired mid-run. The trajectory sees the cancellation on
	// its next context check; give it a moment to seal itself before the
	// worker records a synthetic timeout and moves on.
	select {
	case res := <-done:
		return res
	case <-time.After(5 * time.Second):
	}

	slog.Warn("run did not observe cancellation, recording timeout",
		"example", ex.ID,
		"timeout_sec", o.cfg.ExampleTimeoutSec)

	res := &models.RunResult{
		ExampleID:  ex.ID,
		Trajectory: &models.Trajectory{},
		Failure: &models.Failure{
			Type:    models.FailTimeout,
			Message: fmt.Sprintf("no result within %gs", o.cfg.ExampleTimeoutSec),
		},
		StartedAt: start,
		EndedAt:   time.Now(),
	}
	res.Trajectory.Seal()
	return res
}

// persistResult writes the full run result, trajectory included, to the job
// directory so individual runs can be inspected after the fact.
func (o *Orchestrator) persistResult(jobDir string, result *models.RunResult) {
	name := sanitizeFilename(result.ExampleID) + ".json"
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		slog.Error("marshaling run result", "example", result.ExampleID, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(jobDir, "examples", name), data, 0644); err != nil {
		slog.Error("writing run result", "example", result.ExampleID, "error", err)
	}
}

// aggregate turns the ordered run results into report rows and summary
// statistics. Means cover scored examples only; failed and ambiguous
// examples are counted but never enter a mean.
func (o *Orchestrator) aggregate(jobName, datasetName string, examples []models.Example, ordered []*models.RunResult, startTime time.Time) *models.Report {
	report := &models.Report{
		JobName:     jobName,
		DatasetName: datasetName,
		StartedAt:   startTime,
		EndedAt:     time.Now(),
	}
	report.TotalDurationSec = report.EndedAt.Sub(report.StartedAt).Seconds()

	summary := models.Summary{
		FailuresByType: make(map[models.FailureType]int),
	}

	var briers []float64
	var directionalSum float64
	var timeouts int

	for i, res := range ordered {
		if res == nil {
			continue
		}
		ex := examples[i]
		summary.TotalExamples++

		row := models.ExampleResult{
			ExampleID:   res.ExampleID,
			Question:    ex.Question,
			Outcome:     ex.Outcome,
			Answer:      res.Answer,
			Failure:     res.Failure,
			Warnings:    res.Warnings,
			DurationSec: res.DurationSec(),
		}
		if res.Trajectory != nil {
			row.Steps = len(res.Trajectory.Steps)
		}

		switch {
		case res.Failure != nil:
			summary.FailedExamples++
			summary.FailuresByType[res.Failure.Type]++
			if res.Failure.Type == models.FailTimeout {
				timeouts++
			}
		case res.Answer != nil:
			if brier, ok := scoring.Brier(*res.Answer, ex.Outcome); ok {
				d := scoring.Directional(*res.Answer, ex.Outcome)
				row.Brier = &brier
				row.Directional = &d
				briers = append(briers, brier)
				directionalSum += float64(d)
				summary.ScoredExamples++
			} else {
				summary.AmbiguousSkipped++
			}
		}

		report.Results = append(report.Results, row)
	}

	if len(briers) > 0 {
		summary.MeanBrier, summary.BrierCI95 = scoring.Stats(briers)
		summary.MeanDirectional = directionalSum / float64(len(briers))
	}
	if summary.TotalExamples > 0 {
		summary.FailureRate = float64(summary.FailedExamples) / float64(summary.TotalExamples)
		summary.TimeoutRate = float64(timeouts) / float64(summary.TotalExamples)
	}

	report.Summary = summary
	return report
}

// sanitizeFilename makes an example ID safe to use as a file name.
func sanitizeFilename(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
}
