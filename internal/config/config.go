/*
PURPOSE:
  Defines the configuration structure and loading logic for forest-bench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure the artifacts root, candidate filter, run id, evaluation and exporters.
  - Configure the model provider (endpoint, models, retries, timeouts).

  Implementation-discovered:
  - Needs to support YAML and TOML parsing, chosen by file extension.
  - The API key is never stored in the file; only the name of the environment
    variable holding it (read by the CLI).

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli
  - Dependencies: gopkg.in/yaml.v3, github.com/BurntSushi/toml

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default file is not an error (falls back to defaults).
  - An explicitly named file that cannot be read is an error.

IMPLEMENTATION RULES:
  - Config struct tags support yaml and toml with the same key names.
  - Durations are written as strings ("2s", "5m").

USAGE:
  cfg, err := config.Load("forest_bench.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig().

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/run.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/daryltucker/forest-bench/internal/model"
)

// DefaultFiles are searched, in order, when no path is given.
var DefaultFiles = []string{"forest_bench.yaml", "forest_bench.yml", "forest_bench.toml", "bench.yaml"}

// Config represents the full configuration for forest-bench.
type Config struct {
	ArtifactsPath string   `yaml:"artifacts_path" toml:"artifacts_path"`
	Filter        string   `yaml:"filter" toml:"filter"`
	RunID         string   `yaml:"run_id" toml:"run_id"`
	Evaluate      bool     `yaml:"evaluate" toml:"evaluate"`
	Exporters     []string `yaml:"exporters" toml:"exporters"`
	// Rubric is "content" or "agent-task".
	Rubric string `yaml:"rubric" toml:"rubric"`

	History   HistoryConfig  `yaml:"history" toml:"history"`
	Log       LogConfig      `yaml:"log" toml:"log"`
	Provider  ProviderConfig `yaml:"provider" toml:"provider"`
	Pipelines PipelineConfig `yaml:"pipelines" toml:"pipelines"`
}

// HistoryConfig controls the SQLite run index.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Path defaults to <artifacts_path>/history.db.
	Path string `yaml:"path" toml:"path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ProviderConfig selects the model endpoint.
type ProviderConfig struct {
	Name            string        `yaml:"name" toml:"name"`
	Endpoint        string        `yaml:"endpoint" toml:"endpoint"`
	APIKeyEnv       string        `yaml:"api_key_env" toml:"api_key_env"`
	Model           string        `yaml:"model" toml:"model"`
	EvaluationModel string        `yaml:"evaluation_model" toml:"evaluation_model"`
	MaxRetries      int           `yaml:"max_retries" toml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay" toml:"retry_delay"`
	LoadTimeout     time.Duration `yaml:"load_timeout" toml:"load_timeout"`
	StreamTimeout   time.Duration `yaml:"stream_timeout" toml:"stream_timeout"`
	KeepAlive       string        `yaml:"keep_alive" toml:"keep_alive"`
	// Exclude filters model names (substring match) in `models`.
	Exclude []string `yaml:"exclude" toml:"exclude"`
}

// PipelineConfig overrides the model per agent role in the built-in candidates.
type PipelineConfig struct {
	Researcher    string `yaml:"researcher" toml:"researcher"`
	Outliner      string `yaml:"outliner" toml:"outliner"`
	Writer        string `yaml:"writer" toml:"writer"`
	PitchWriter   string `yaml:"pitch_writer" toml:"pitch_writer"`
	Critic        string `yaml:"critic" toml:"critic"`
	MaxIterations int    `yaml:"max_iterations" toml:"max_iterations"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ArtifactsPath: "artifacts",
		Filter:        "*",
		Exporters:     []string{"console", "markdown", "json"},
		Rubric:        "content",
		History:       HistoryConfig{Enabled: true},
		Log:           LogConfig{Level: "info", Format: "text"},
		Provider: ProviderConfig{
			Name:          "ollama",
			Endpoint:      "http://localhost:11434",
			APIKeyEnv:     "OPENAI_API_KEY",
			Model:         "llama3.2",
			MaxRetries:    3,
			RetryDelay:    2 * time.Second,
			LoadTimeout:   2 * time.Minute,
			StreamTimeout: 5 * time.Minute,
			Exclude:       []string{"embed", "rerank"},
		},
		Pipelines: PipelineConfig{MaxIterations: 3},
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches DefaultFiles in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		found := false
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// EvaluationModel is the judge model, falling back to the provider model.
func (c *Config) EvaluationModel() string {
	if m := strings.TrimSpace(c.Provider.EvaluationModel); m != "" {
		return m
	}
	return strings.TrimSpace(c.Provider.Model)
}

// HistoryPath is where the run index lives, or "" when disabled.
func (c *Config) HistoryPath() string {
	if !c.History.Enabled {
		return ""
	}
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.ArtifactsPath, "history.db")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ArtifactsPath) == "" {
		errs = append(errs, errors.New("artifacts_path must not be empty"))
	}
	if err := model.ValidateRunID(c.RunID); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Provider.Name) {
	case "", "ollama", "openai", "openai-compatible":
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider.Name))
	}
	if c.Evaluate && c.EvaluationModel() == "" {
		errs = append(errs, errors.New("evaluation requires provider.evaluation_model or provider.model"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.max_retries must be >= 0"))
	}
	return errors.Join(errs...)
}
