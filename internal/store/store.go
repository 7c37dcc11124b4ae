/*
PURPOSE:
  Persists a run to disk: run directory, configuration snapshot, environment
  snapshot, and per-candidate output/metrics.

REQUIREMENTS:
  User-specified:
  - Layout: <root>/<runId>/run-config.json, environment.json,
    <category>/<name>/output.md, <category>/<name>/metrics.json.
  - Run id is the configured id or "{UTC timestamp}_{slug(prompt)}".
  - Directory creation is idempotent.

  Implementation-discovered:
  - Every write is atomic (temp file + rename) so an interrupted run never
    leaves half-written JSON behind.
  - Category/name are used as path segments and must not escape the run dir.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/suite.go
  - Read back by: load.go (evaluate-existing-run)

ERROR HANDLING:
  - Returns wrapped errors; callers decide whether to abort.

USAGE:
  rs := store.New("artifacts")
  runPath, err := rs.CreateRunDirectory(cfg, prompt)
  err = rs.SaveOutput(runPath, result)

RELATED FILES:
  - internal/store/atomic.go
  - internal/store/load.go
*/

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/daryltucker/forest-bench/internal/model"
)

// File names inside a run directory.
const (
	RunConfigFile   = "run-config.json"
	EnvironmentFile = "environment.json"
	OutputFile      = "output.md"
	MetricsFile     = "metrics.json"
)

// RunStore writes runs under Root.
type RunStore struct {
	Root string
}

// New creates a store rooted at root.
func New(root string) *RunStore {
	if root == "" {
		root = "."
	}
	return &RunStore{Root: root}
}

// RunConfigSnapshot is the content of run-config.json.
type RunConfigSnapshot struct {
	Prompt    string    `json:"prompt"`
	Filter    string    `json:"filter"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Evaluate  bool      `json:"evaluate"`
	Exporters []string  `json:"exporters"`
}

// Environment is the default environment snapshot. Callers may save any value instead.
type Environment struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Runtime   string    `json:"runtime"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	Hostname  string    `json:"hostname"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvironment captures host/runtime facts.
func NewEnvironment(provider, modelName string) Environment {
	host, _ := os.Hostname()
	return Environment{
		Provider:  provider,
		Model:     modelName,
		Runtime:   runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Hostname:  host,
		Timestamp: time.Now().UTC(),
	}
}

type metricsSnapshot struct {
	Prompt            string              `json:"prompt,omitempty"`
	Success           bool                `json:"success"`
	Error             string              `json:"error,omitempty"`
	ErrorKind         string              `json:"error_kind,omitempty"`
	DurationSeconds   float64             `json:"duration_seconds"`
	TotalCalls        int                 `json:"total_calls"`
	TotalInputTokens  int                 `json:"total_input_tokens"`
	TotalOutputTokens int                 `json:"total_output_tokens"`
	TotalTokens       int                 `json:"total_tokens"`
	TotalLatencyMs    float64             `json:"total_latency_ms"`
	Quality           *model.QualityScore `json:"quality"`
}

// RunPath returns the directory a run would use, without creating it.
func (s *RunStore) RunPath(cfg model.RunConfig, prompt string) string {
	return filepath.Join(s.Root, cfg.EffectiveRunID(prompt))
}

// CreateRunDirectory creates (if absent) and returns the run directory.
func (s *RunStore) CreateRunDirectory(cfg model.RunConfig, prompt string) (string, error) {
	if err := model.ValidateRunID(cfg.RunID); err != nil {
		return "", err
	}
	runPath := s.RunPath(cfg, prompt)
	if err := os.MkdirAll(runPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory %s: %w", runPath, err)
	}
	return runPath, nil
}

// SaveConfig writes run-config.json.
func (s *RunStore) SaveConfig(runPath string, cfg model.RunConfig, prompt string) error {
	snap := RunConfigSnapshot{
		Prompt:    prompt,
		Filter:    cfg.Filter,
		RunID:     cfg.EffectiveRunID(prompt),
		Timestamp: cfg.Timestamp.UTC(),
		Evaluate:  cfg.Evaluate,
		Exporters: cfg.Exporters,
	}
	return writeJSON(filepath.Join(runPath, RunConfigFile), snap)
}

// SaveEnvironment writes environment.json. env is opaque to the store.
func (s *RunStore) SaveEnvironment(runPath string, env any) error {
	return writeJSON(filepath.Join(runPath, EnvironmentFile), env)
}

// SaveOutput writes <category>/<name>/output.md (when there is content) and metrics.json.
func (s *RunStore) SaveOutput(runPath string, r model.RunResult) error {
	dir := CandidateDir(runPath, r.Category, r.Name)
	if r.Content != "" {
		if err := WriteFileAtomic(filepath.Join(dir, OutputFile), []byte(r.Content)); err != nil {
			return fmt.Errorf("failed to write output for %s: %w", r.FullName(), err)
		}
	}

	snap := metricsSnapshot{
		Prompt:            r.Prompt,
		Success:           r.Success,
		Error:             r.Error,
		ErrorKind:         r.ErrorKind,
		DurationSeconds:   r.Duration.Seconds(),
		TotalCalls:        r.Metrics.TotalCalls,
		TotalInputTokens:  r.Metrics.TotalInputTokens,
		TotalOutputTokens: r.Metrics.TotalOutputTokens,
		TotalTokens:       r.Metrics.TotalTokens,
		TotalLatencyMs:    r.Metrics.TotalLatencyMs,
		Quality:           r.QualityScore,
	}
	return writeJSON(filepath.Join(dir, MetricsFile), snap)
}

// CandidateDir is the per-candidate directory inside a run.
func CandidateDir(runPath, category, name string) string {
	return filepath.Join(runPath, pathSegment(category), pathSegment(name))
}

func writeJSON(path string, v any) error {
	if err := WriteJSONAtomic(path, v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// pathSegment keeps a name inside its parent directory.
func pathSegment(s string) string {
	s = strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(s))
	switch s {
	case "", ".", "..":
		return "_"
	}
	return s
}
