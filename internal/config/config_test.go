package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bench.yaml", `
artifacts_path: out
filter: "reflection/*"
evaluate: true
exporters: [console, csv]
provider:
  name: openai
  endpoint: http://localhost:8080/v1
  model: gpt-4.1-mini
  evaluation_model: gpt-4.1
  retry_delay: 500ms
pipelines:
  critic: judge-model
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ArtifactsPath != "out" || cfg.Filter != "reflection/*" || !cfg.Evaluate {
		t.Fatalf("top-level: %+v", cfg)
	}
	if strings.Join(cfg.Exporters, ",") != "console,csv" {
		t.Fatalf("exporters: %v", cfg.Exporters)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.RetryDelay != 500*time.Millisecond {
		t.Fatalf("provider: %+v", cfg.Provider)
	}
	// Unset keys keep their defaults.
	if cfg.Provider.MaxRetries != 3 || cfg.Provider.StreamTimeout != 5*time.Minute {
		t.Fatalf("defaults lost: %+v", cfg.Provider)
	}
	if cfg.EvaluationModel() != "gpt-4.1" || cfg.Pipelines.Critic != "judge-model" {
		t.Fatalf("models: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bench.toml", `
artifacts_path = "toml-out"
rubric = "agent-task"

[history]
enabled = false

[provider]
model = "qwen2.5"
stream_timeout = "90s"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ArtifactsPath != "toml-out" || cfg.Rubric != "agent-task" {
		t.Fatalf("top-level: %+v", cfg)
	}
	if cfg.HistoryPath() != "" {
		t.Fatalf("history should be disabled: %q", cfg.HistoryPath())
	}
	if cfg.Provider.Model != "qwen2.5" || cfg.Provider.StreamTimeout != 90*time.Second {
		t.Fatalf("provider: %+v", cfg.Provider)
	}
	if cfg.EvaluationModel() != "qwen2.5" {
		t.Fatalf("evaluation model fallback: %q", cfg.EvaluationModel())
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit file")
	}
	bad := writeFile(t, dir, "bad.yaml", "provider: [unterminated")
	if _, err := Load(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HistoryPath() != filepath.Join("artifacts", "history.db") {
		t.Fatalf("history path: %q", cfg.HistoryPath())
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Name = "bedrock"
	cfg.Provider.Model = ""
	cfg.Evaluate = true
	cfg.RunID = "../elsewhere"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"unknown provider", "evaluation requires", "invalid run id"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}
