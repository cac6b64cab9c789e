package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ksadov/backcast/internal/config"
	"github.com/ksadov/backcast/internal/models"
)

type fakeRunner struct {
	fn func(ctx context.Context, ex models.Example) *models.RunResult
}

func (f fakeRunner) Run(ctx context.Context, ex models.Example) *models.RunResult {
	return f.fn(ctx, ex)
}

func fakeFactory(fn func(ctx context.Context, ex models.Example) *models.RunResult) RunnerFactory {
	return func(ex models.Example) TrajectoryRunner {
		return fakeRunner{fn: fn}
	}
}

func answered(ex models.Example, p float64) *models.RunResult {
	res := &models.RunResult{
		ExampleID:  ex.ID,
		Trajectory: &models.Trajectory{ID: ex.ID},
		Answer:     &p,
		StartedAt:  time.Now(),
		EndedAt:    time.Now(),
	}
	res.Trajectory.Append(models.Step{Tool: "finish"})
	res.Trajectory.Seal()
	return res
}

func failed(ex models.Example, kind models.FailureType, msg string) *models.RunResult {
	res := &models.RunResult{
		ExampleID:  ex.ID,
		Trajectory: &models.Trajectory{ID: ex.ID},
		Failure:    &models.Failure{Type: kind, Message: msg},
		StartedAt:  time.Now(),
		EndedAt:    time.Now(),
	}
	res.Trajectory.Seal()
	return res
}

// writeDataset writes a JSONL dataset file and returns its path.
func writeDataset(t *testing.T, dir, name string, examples []models.Example) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating dataset file: %v", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			t.Fatalf("encoding example: %v", err)
		}
	}
	return path
}

func makeExamples(n int, outcome models.Outcome) []models.Example {
	examples := make([]models.Example, n)
	for i := range examples {
		examples[i] = models.Example{
			ID:          fmt.Sprintf("ex-%02d", i),
			Question:    fmt.Sprintf("Will event %d happen?", i),
			CurrentDate: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			Outcome:     outcome,
		}
	}
	return examples
}

func testJobConfig(t *testing.T, datasets []string) config.JobConfig {
	t.Helper()
	cfg := config.DefaultJobConfig()
	cfg.JobsDir = filepath.Join(t.TempDir(), "jobs")
	name := "testjob"
	cfg.Name = &name
	cfg.Datasets = datasets
	cfg.Workers = 3
	cfg.ExampleTimeoutSec = 5
	cfg.FetchTimeoutSec = 1
	return cfg
}

func TestRunAllExamplesOnceInOrder(t *testing.T) {
	examples := makeExamples(8, models.OutcomeYes)
	path := writeDataset(t, t.TempDir(), "markets.jsonl", examples)
	cfg := testJobConfig(t, []string{path})

	orch := NewOrchestrator(cfg, time.Time{}, fakeFactory(
		func(ctx context.Context, ex models.Example) *models.RunResult {
			return answered(ex, 1.0)
		}))

	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(report.Results) != len(examples) {
		t.Fatalf("expected %d rows, got %d", len(examples), len(report.Results))
	}
	for i, row := range report.Results {
		if row.ExampleID != examples[i].ID {
			t.Errorf("row %d = %s, want %s (dataset order must be preserved)",
				i, row.ExampleID, examples[i].ID)
		}
	}

	s := report.Summary
	if s.TotalExamples != 8 || s.ScoredExamples != 8 || s.FailedExamples != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}
	// Every answer was 1.0 on a yes outcome.
	if s.MeanBrier != 0 {
		t.Errorf("mean brier = %g, want 0", s.MeanBrier)
	}
	if s.MeanDirectional != 1 {
		t.Errorf("mean directional = %g, want 1", s.MeanDirectional)
	}
}

func TestRunPersistsResults(t *testing.T) {
	examples := makeExamples(4, models.OutcomeNo)
	path := writeDataset(t, t.TempDir(), "markets.jsonl", examples)
	cfg := testJobConfig(t, []string{path})

	orch := NewOrchestrator(cfg, time.Time{}, fakeFactory(
		func(ctx context.Context, ex models.Example) *models.RunResult {
			return answered(ex, 0.2)
		}))

	if _, err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	jobDir := filepath.Join(cfg.JobsDir, "testjob")
	for _, name := range []string{"config.json", "report.json"} {
		if _, err := os.Stat(filepath.Join(jobDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(jobDir, "examples"))
	if err != nil {
		t.Fatalf("reading examples dir: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 per-example files, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(jobDir, "examples", "ex-00.json"))
	if err != nil {
		t.Fatalf("reading result file: %v", err)
	}
	var res models.RunResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("parsing result file: %v", err)
	}
	if res.ExampleID != "ex-00" || res.Answer == nil {
		t.Errorf("unexpected persisted result: %+v", res)
	}
}

func TestRunRefusesExistingJobDir(t *testing.T) {
	examples := makeExamples(1, models.OutcomeYes)
	path := writeDataset(t, t.TempDir(), "markets.jsonl", examples)
	cfg := testJobConfig(t, []string{path})

	if err := os.MkdirAll(filepath.Join(cfg.JobsDir, "testjob"), 0755); err != nil {
		t.Fatal(err)
	}

	orch := NewOrchestrator(cfg, time.Time{}, fakeFactory(
		func(ctx context.Context, ex models.Example) *models.RunResult {
			return answered(ex, 0.5)
		}))

	if _, err := orch.Run(context.Background()); err == nil {
		t.Fatal("expected error for existing job directory")
	}
}

func TestRunTimeoutDoesNotBlockOtherExamples(t *testing.T) {
	examples := makeExamples(4, models.OutcomeYes)
	examples[1].ID = "stuck"
	path := writeDataset(t, t.TempDir(), "markets.jsonl", examples)

	cfg := testJobConfig(t, []string{path})
	cfg.Workers = 2
	cfg.ExampleTimeoutSec = 0.3
	cfg.FetchTimeoutSec = 0.1

	orch := NewOrchestrator(cfg, time.Time{}, fakeFactory(
		func(ctx context.Context, ex models.Example) *models.RunResult {
			if ex.ID == "stuck" {
				// Hold the worker until the per-example deadline cancels us.
				<-ctx.Done()
				return failed(ex, models.FailTimeout, ctx.Err().Error())
			}
			return answered(ex, 1.0)
		}))

	start := time.Now()
	report, err := orch.Run(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("stuck example delayed the whole run: %v", elapsed)
	}

	if len(report.Results) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(report.Results))
	}
	for _, row := range report.Results {
		if row.ExampleID == "stuck" {
			if row.Failure == nil || row.Failure.Type != models.FailTimeout {
				t.Errorf("stuck example should be a timeout, got %+v", row.Failure)
			}
			continue
		}
		if row.Answer == nil {
			t.Errorf("example %s should have completed, got %+v", row.ExampleID, row.Failure)
		}
	}

	if report.Summary.TimeoutRate != 0.25 {
		t.Errorf("timeout rate = %g, want 0.25", report.Summary.TimeoutRate)
	}
}

func TestRunPanicBecomesInternalError(t *testing.T) {
	examples := makeExamples(3, models.OutcomeYes)
	path := writeDataset(t, t.TempDir(), "markets.jsonl", examples)
	cfg := testJobConfig(t, []string{path})

	orch := NewOrchestrator(cfg, time.Time{}, fakeFactory(
		func(ctx context.Context, ex models.Example) *models.RunResult {
			if ex.ID == "ex-01" {
				panic("boom")
			}
			return answered(ex, 0.9)
		}))

	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	row := report.Results[1]
	if row.Failure == nil || row.Failure.Type != models.FailInternal {
		t.Fatalf("panic should surface as internal_error, got %+v", row.Failure)
	}
	if report.Summary.FailedExamples != 1 || report.Summary.ScoredExamples != 2 {
		t.Errorf("unexpected summary: %+v", report.Summary)
	}
}

func TestRunMixedOutcomesSummary(t *testing.T) {
	examples := makeExamples(4, models.OutcomeYes)
	examples[1].Outcome = models.OutcomeNo
	examples[2].Outcome = models.OutcomeAmbiguous
	path := writeDataset(t, t.TempDir(), "markets.jsonl", examples)
	cfg := testJobConfig(t, []string{path})

	orch := NewOrchestrator(cfg, time.Time{}, fakeFactory(
		func(ctx context.Context, ex models.Example) *models.RunResult {
			if ex.ID == "ex-03" {
				return failed(ex, models.FailAdapter, "backend gone")
			}
			return answered(ex, 1.0)
		}))

	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	s := report.Summary
	if s.TotalExamples != 4 {
		t.Errorf("total = %d, want 4", s.TotalExamples)
	}
	// yes and no outcomes scored, ambiguous skipped, failure excluded.
	if s.ScoredExamples != 2 || s.AmbiguousSkipped != 1 || s.FailedExamples != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.FailuresByType[models.FailAdapter] != 1 {
		t.Errorf("failures by type: %+v", s.FailuresByType)
	}
	// brier(1.0, yes)=0 and brier(1.0, no)=1 average to 0.5.
	if s.MeanBrier != 0.5 {
		t.Errorf("mean brier = %g, want 0.5", s.MeanBrier)
	}
	if s.FailureRate != 0.25 {
		t.Errorf("failure rate = %g, want 0.25", s.FailureRate)
	}
}
