package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// StoredOutput is one candidate's saved content.
type StoredOutput struct {
	Category string
	Name     string
	Content  string
	// Prompt is the candidate's own prompt from metrics.json, falling back to
	// the run-level prompt for runs saved without it.
	Prompt string
}

// FullName is "category/name".
func (o StoredOutput) FullName() string { return o.Category + "/" + o.Name }

// Run is a run directory read back for re-evaluation.
type Run struct {
	Path    string
	Config  RunConfigSnapshot
	Outputs []StoredOutput
	// Skipped lists candidate directories without output.md.
	Skipped []string
}

// LoadRun reads run-config.json and every <category>/<name>/output.md under runPath.
func LoadRun(runPath string) (*Run, error) {
	info, err := os.Stat(runPath)
	if err != nil {
		return nil, fmt.Errorf("run directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", runPath)
	}

	raw, err := os.ReadFile(filepath.Join(runPath, RunConfigFile))
	if err != nil {
		return nil, fmt.Errorf("%s not found in %s: %w", RunConfigFile, runPath, err)
	}
	run := &Run{Path: runPath}
	if err := json.Unmarshal(raw, &run.Config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", RunConfigFile, err)
	}

	categories, err := os.ReadDir(runPath)
	if err != nil {
		return nil, err
	}
	for _, cat := range categories {
		if !cat.IsDir() || strings.HasPrefix(cat.Name(), ".") {
			continue
		}
		candidates, err := os.ReadDir(filepath.Join(runPath, cat.Name()))
		if err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			if !cand.IsDir() {
				continue
			}
			content, err := os.ReadFile(filepath.Join(runPath, cat.Name(), cand.Name(), OutputFile))
			if errors.Is(err, fs.ErrNotExist) {
				run.Skipped = append(run.Skipped, cat.Name()+"/"+cand.Name())
				continue
			}
			if err != nil {
				return nil, err
			}
			dir := filepath.Join(runPath, cat.Name(), cand.Name())
			prompt, err := storedPrompt(dir)
			if err != nil {
				return nil, err
			}
			if prompt == "" {
				prompt = run.Config.Prompt
			}
			run.Outputs = append(run.Outputs, StoredOutput{
				Category: cat.Name(),
				Name:     cand.Name(),
				Content:  string(content),
				Prompt:   prompt,
			})
		}
	}
	return run, nil
}

// storedPrompt reads the prompt recorded in a candidate's metrics.json.
// A missing file yields "".
func storedPrompt(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var snap metricsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", filepath.Join(dir, MetricsFile), err)
	}
	return snap.Prompt, nil
}
