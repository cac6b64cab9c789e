package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/ksadov/backcast/internal/config"
)

func TestLoadModelConfig(t *testing.T) {
	modelToml := `provider = "openai"
model = "gpt-4o"
base_url = "https://example.com/v1"
api_key_env = "MY_KEY"
knowledge_cutoff = "2023-10-01"

[prompt]
temperature = 0.2
max_tokens = 4096

[sandbox]
image = "python:3.11-slim"
memory_mb = 256
time_limit_sec = 2.0
`

	fsys := fstest.MapFS{
		"model.toml": &fstest.MapFile{Data: []byte(modelToml)},
	}

	cfg, err := config.LoadModelConfig(fsys, "model.toml")
	if err != nil {
		t.Fatalf("LoadModelConfig failed: %v", err)
	}

	if cfg.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", cfg.Model)
	}

	if cfg.BaseURL != "https://example.com/v1" {
		t.Errorf("expected custom base_url, got %s", cfg.BaseURL)
	}

	if cfg.Prompt.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %f", cfg.Prompt.Temperature)
	}

	if cfg.Sandbox.TimeLimitSec != 2.0 {
		t.Errorf("expected sandbox time limit 2, got %f", cfg.Sandbox.TimeLimitSec)
	}

	cutoff, ok, err := cfg.CutoffDate()
	if err != nil || !ok {
		t.Fatalf("CutoffDate: ok=%v err=%v", ok, err)
	}
	if cutoff.Year() != 2023 || cutoff.Month() != 10 {
		t.Errorf("unexpected cutoff date %v", cutoff)
	}
}

func TestLoadModelConfigRequiresModel(t *testing.T) {
	fsys := fstest.MapFS{
		"model.toml": &fstest.MapFile{Data: []byte(`provider = "openai"`)},
	}

	if _, err := config.LoadModelConfig(fsys, "model.toml"); err == nil {
		t.Fatal("expected error for missing model name")
	}
}

func TestLoadJobConfig(t *testing.T) {
	jobYaml := `name: test-job
jobs_dir: test-output
datasets:
  - ./data/val.jsonl
max_examples: 50
workers: 4
example_timeout_sec: 120.0
fetch_timeout_sec: 10.0
max_steps: 8
model_config_path: configs/model.toml
retry:
  max_attempts: 5
  initial_delay_ms: 500
search:
  num_results: 3
  max_content_chars: 5000
market_filters:
  exclude_groups:
    - sex-and-love
tools:
  unified_web_search: true
  use_python_interpreter: true
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "job.yaml")
	if err := os.WriteFile(tmpFile, []byte(jobYaml), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	cfg, err := config.LoadJobConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadJobConfig failed: %v", err)
	}

	if *cfg.Name != "test-job" {
		t.Errorf("expected name test-job, got %s", *cfg.Name)
	}

	if cfg.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Workers)
	}

	if cfg.ExampleTimeoutSec != 120.0 {
		t.Errorf("expected example timeout 120, got %f", cfg.ExampleTimeoutSec)
	}

	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected retry max_attempts 5, got %d", cfg.Retry.MaxAttempts)
	}

	// Defaults survive a partial retry block.
	if cfg.Retry.Multiplier != 2.0 {
		t.Errorf("expected default retry multiplier 2.0, got %f", cfg.Retry.Multiplier)
	}

	if len(cfg.Filters.ExcludeGroups) != 1 || cfg.Filters.ExcludeGroups[0] != "sex-and-love" {
		t.Errorf("unexpected exclude groups: %v", cfg.Filters.ExcludeGroups)
	}

	if !cfg.Tools.UnifiedWebSearch || !cfg.Tools.UsePythonInterpreter {
		t.Error("expected both tool toggles enabled")
	}
}

func TestLoadJobConfigRejectsFetchTimeoutAboveExampleTimeout(t *testing.T) {
	jobYaml := `datasets: [./data/val.jsonl]
example_timeout_sec: 10.0
fetch_timeout_sec: 30.0
`

	tmpFile := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(tmpFile, []byte(jobYaml), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	if _, err := config.LoadJobConfig(tmpFile); err == nil {
		t.Fatal("expected error when fetch timeout exceeds example timeout")
	}
}

func TestDefaultJobConfig(t *testing.T) {
	cfg := config.DefaultJobConfig()

	if cfg.JobsDir != "jobs" {
		t.Errorf("expected default jobs_dir 'jobs', got %s", cfg.JobsDir)
	}

	if cfg.Workers != 1 {
		t.Errorf("expected default workers 1, got %d", cfg.Workers)
	}

	if cfg.MaxSteps != 10 {
		t.Errorf("expected default max_steps 10, got %d", cfg.MaxSteps)
	}

	if cfg.FetchTimeoutSec >= cfg.ExampleTimeoutSec {
		t.Error("default fetch timeout must be below example timeout")
	}
}
