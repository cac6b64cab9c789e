package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ksadov/backcast/internal/agent"
	"github.com/ksadov/backcast/internal/config"
	"github.com/ksadov/backcast/internal/llm"
	"github.com/ksadov/backcast/internal/models"
	"github.com/ksadov/backcast/internal/sandbox"
	"github.com/ksadov/backcast/internal/tools"
)

const sandboxAppName = "backcast-interpreter"

// configureLogging applies the job's log_level to the default logger.
// Unknown or empty levels keep the info default.
func configureLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// NewAgentRunnerFactory builds the production agent stack from the job and
// model configs. The completion client, searcher, and retriever are shared
// across workers; the tool registry is rebuilt per example so the search
// date restriction matches each example's reference date.
func NewAgentRunnerFactory(jobCfg config.JobConfig, modelCfg config.ModelConfig) (RunnerFactory, error) {
	apiKey := os.Getenv(modelCfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("environment variable %s is not set", modelCfg.APIKeyEnv)
	}

	var client llm.Client = llm.NewOpenAIClient(modelCfg, apiKey)
	client = llm.NewRetryClient(client, jobCfg.Retry)
	client = llm.NewRateLimitedClient(client, jobCfg.RateLimitRPS)

	searcher := tools.NewSearcher(jobCfg.Search,
		os.Getenv(jobCfg.Search.APIKeyEnv), os.Getenv(jobCfg.Search.CxEnv))
	retriever := tools.NewRetriever(
		time.Duration(jobCfg.FetchTimeoutSec*float64(time.Second)),
		jobCfg.Search.MaxContentChars)

	var pyRunner sandbox.Runner
	if jobCfg.Tools.UsePythonInterpreter {
		r, err := sandbox.NewModalRunner(modelCfg.Sandbox, sandboxAppName)
		if err != nil {
			return nil, fmt.Errorf("creating sandbox runner: %w", err)
		}
		pyRunner = r
	}

	return func(ex models.Example) TrajectoryRunner {
		var toolset []tools.Tool
		if jobCfg.Tools.UnifiedWebSearch {
			toolset = append(toolset, tools.WebSearchTool(searcher, retriever, ex.CurrentDate))
		} else {
			toolset = append(toolset,
				tools.SearchTool(searcher, ex.CurrentDate),
				tools.RetrieveTool(retriever))
		}
		if pyRunner != nil {
			toolset = append(toolset, tools.PythonTool(pyRunner))
		}
		return agent.New(client, tools.NewRegistry(toolset...), jobCfg.MaxSteps)
	}, nil
}

// loadConfigs loads the job config and the model config it references.
// A relative model_config_path is resolved against the job config's
// directory.
func loadConfigs(configPath string) (config.JobConfig, config.ModelConfig, error) {
	jobCfg, err := config.LoadJobConfig(configPath)
	if err != nil {
		return jobCfg, config.ModelConfig{}, fmt.Errorf("loading job config: %w", err)
	}
	configureLogging(jobCfg.LogLevel)

	modelPath := jobCfg.ModelConfigPath
	if !filepath.IsAbs(modelPath) {
		modelPath = filepath.Join(filepath.Dir(configPath), modelPath)
	}
	modelCfg, err := config.LoadModelConfig(os.DirFS(filepath.Dir(modelPath)), filepath.Base(modelPath))
	if err != nil {
		return jobCfg, modelCfg, fmt.Errorf("loading model config: %w", err)
	}

	return jobCfg, modelCfg, nil
}

// RunFromConfig loads a job config file and executes the evaluation.
func RunFromConfig(ctx context.Context, configPath string) (*models.Report, error) {
	jobCfg, modelCfg, err := loadConfigs(configPath)
	if err != nil {
		return nil, err
	}

	cutoff, _, err := modelCfg.CutoffDate()
	if err != nil {
		return nil, err
	}

	factory, err := NewAgentRunnerFactory(jobCfg, modelCfg)
	if err != nil {
		return nil, err
	}

	return NewOrchestrator(jobCfg, cutoff, factory).Run(ctx)
}
