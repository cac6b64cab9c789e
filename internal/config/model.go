package config

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
)

// ModelConfig represents the parsed model.toml configuration for the
// completion backend and its prompt parameters.
type ModelConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	APIKeyEnv string `toml:"api_key_env"`

	// KnowledgeCutoff in 2021-01-01 format. Examples created before it are
	// excluded from backtests, and search results are restricted to pages
	// indexed before each example's reference date.
	KnowledgeCutoff string `toml:"knowledge_cutoff,omitempty"`

	Prompt  PromptParams  `toml:"prompt"`
	Sandbox SandboxConfig `toml:"sandbox"`
}

// PromptParams are passed through to the chat-completion request.
type PromptParams struct {
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// SandboxConfig configures the Modal sandbox backing eval_python.
type SandboxConfig struct {
	Image        string  `toml:"image"`
	MemoryMB     int     `toml:"memory_mb"`
	TimeLimitSec float64 `toml:"time_limit_sec"`
}

// CutoffDate parses KnowledgeCutoff, returning ok=false when unset.
func (c ModelConfig) CutoffDate() (time.Time, bool, error) {
	if c.KnowledgeCutoff == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse("2006-01-02", c.KnowledgeCutoff)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing knowledge_cutoff %q: %w", c.KnowledgeCutoff, err)
	}
	return t, true, nil
}

// DefaultModelConfig returns a ModelConfig with default values.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:  "openai",
		BaseURL:   "https://api.openai.com/v1",
		APIKeyEnv: "OPENAI_API_KEY",
		Prompt: PromptParams{
			Temperature: 0.0,
			MaxTokens:   2048,
		},
		Sandbox: SandboxConfig{
			Image:        "python:3.12-slim",
			MemoryMB:     512,
			TimeLimitSec: 5.0,
		},
	}
}

// LoadModelConfig loads and parses a model.toml file from the given
// filesystem.
func LoadModelConfig(fsys fs.FS, name string) (ModelConfig, error) {
	cfg := DefaultModelConfig()

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return cfg, fmt.Errorf("reading model config: %w", err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing model config: %w", err)
	}

	if cfg.Model == "" {
		return cfg, fmt.Errorf("model config: 'model' is required")
	}
	if _, _, err := cfg.CutoffDate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
