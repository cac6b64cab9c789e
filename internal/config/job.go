package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// JobConfig represents the parsed job.yaml configuration for one
// evaluation run.
type JobConfig struct {
	Name     *string  `yaml:"name,omitempty"`
	JobsDir  string   `yaml:"jobs_dir"`
	Datasets []string `yaml:"datasets"`

	MaxExamples int `yaml:"max_examples"` // 0 = no cap

	// Workers is the size of the harness worker pool.
	Workers int `yaml:"workers"`

	// ExampleTimeoutSec is the hard wall-clock deadline per example.
	ExampleTimeoutSec float64 `yaml:"example_timeout_sec"`

	// FetchTimeoutSec bounds a single page retrieval. Must stay below
	// ExampleTimeoutSec so one slow page cannot consume the run.
	FetchTimeoutSec float64 `yaml:"fetch_timeout_sec"`

	// MaxSteps is the per-trajectory step budget.
	MaxSteps int `yaml:"max_steps"`

	Retry        RetryConfig `yaml:"retry,omitempty"`
	RateLimitRPS float64     `yaml:"rate_limit_rps"` // 0 = unlimited

	ModelConfigPath string `yaml:"model_config_path"`

	Search  SearchConfig  `yaml:"search"`
	Filters MarketFilters `yaml:"market_filters,omitempty"`
	Tools   ToolsConfig   `yaml:"tools,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`
}

// RetryConfig controls backoff for the completion client adapter.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

// SearchConfig configures the Google CSE search backend. API credentials
// come from the environment, never from the config file.
type SearchConfig struct {
	APIKeyEnv       string `yaml:"api_key_env"`
	CxEnv           string `yaml:"cx_env"`
	NumResults      int    `yaml:"num_results"`
	MaxContentChars int    `yaml:"max_content_chars"`
}

// MarketFilters excludes examples by group slug.
type MarketFilters struct {
	ExcludeGroups []string `yaml:"exclude_groups,omitempty"`
}

// ToolsConfig toggles the optional tools exposed to the agent.
type ToolsConfig struct {
	// UnifiedWebSearch replaces get_relevant_urls + retrieve_web_content
	// with a single web_search tool.
	UnifiedWebSearch bool `yaml:"unified_web_search"`

	// UsePythonInterpreter exposes eval_python backed by a Modal sandbox.
	UsePythonInterpreter bool `yaml:"use_python_interpreter"`
}

// DefaultJobConfig returns a JobConfig with default values.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		JobsDir:           "jobs",
		Workers:           1,
		ExampleTimeoutSec: 600.0,
		FetchTimeoutSec:   15.0,
		MaxSteps:          10,
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelayMs: 1000,
			MaxDelayMs:     30000,
			Multiplier:     2.0,
		},
		ModelConfigPath: "model.toml",
		Search: SearchConfig{
			APIKeyEnv:       "GOOGLE_CSE_KEY",
			CxEnv:           "GOOGLE_CSE_CX",
			NumResults:      5,
			MaxContentChars: 10000,
		},
	}
}

// LoadJobConfig loads and parses a job.yaml file.
func LoadJobConfig(path string) (JobConfig, error) {
	cfg := DefaultJobConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading job config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing job config: %w", err)
	}

	// Apply defaults for zeroed values
	if cfg.JobsDir == "" {
		cfg.JobsDir = "jobs"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ExampleTimeoutSec <= 0 {
		cfg.ExampleTimeoutSec = 600.0
	}
	if cfg.FetchTimeoutSec <= 0 {
		cfg.FetchTimeoutSec = 15.0
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Search.NumResults <= 0 {
		cfg.Search.NumResults = 5
	}

	if cfg.FetchTimeoutSec >= cfg.ExampleTimeoutSec {
		return cfg, fmt.Errorf("fetch_timeout_sec (%g) must be smaller than example_timeout_sec (%g)",
			cfg.FetchTimeoutSec, cfg.ExampleTimeoutSec)
	}

	return cfg, nil
}
