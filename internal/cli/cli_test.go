package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeOllama answers /api/chat in both streaming and non-streaming modes.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text := "A generated article about testing.\n\nCompleteness: 4\nDepth: 5"
		if body["stream"] == true {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", text)
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":11,"eval_count":22}`)
			return
		}
		fmt.Fprintf(w, `{"model":%q,"message":{"role":"assistant","content":%q},"done":true,"prompt_eval_count":11,"eval_count":22}`, body["model"], text)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, endpoint string) (cfgPath, artifacts string) {
	t.Helper()
	dir := t.TempDir()
	artifacts = filepath.Join(dir, "artifacts")
	cfgPath = filepath.Join(dir, "bench.yaml")
	body := fmt.Sprintf(`
artifacts_path: %q
exporters: [json]
log:
  level: error
provider:
  endpoint: %q
  model: tiny
  max_retries: 1
`, artifacts, endpoint)
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return cfgPath, artifacts
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestListCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1")
	out := execute(t, "list", "--config", cfgPath)
	for _, want := range []string{
		"Available candidates (5)",
		"prompt-chaining/single-agent [baseline]",
		"reflection/two-agent",
		"3-agent pipeline: Researcher -> Outliner -> Writer",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	out = execute(t, "list", "reflection/*", "--config", cfgPath)
	if strings.Contains(out, "prompt-chaining") {
		t.Fatalf("filter ignored:\n%s", out)
	}
}

func TestRunEvaluateHistory(t *testing.T) {
	srv := fakeOllama(t)
	cfgPath, artifacts := writeConfig(t, srv.URL)

	execute(t, "run", "--config", cfgPath, "--filter", "prompt-chaining/*", "--run-id", "e2e")

	runPath := filepath.Join(artifacts, "e2e")
	raw, err := os.ReadFile(filepath.Join(runPath, "results.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc struct {
		Results []struct {
			FullName string `json:"full_name"`
			Success  bool   `json:"success"`
			Metrics  struct {
				TotalCalls  int `json:"total_calls"`
				TotalTokens int `json:"total_tokens"`
			} `json:"metrics"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(doc.Results) != 2 {
		t.Fatalf("results: %+v", doc.Results)
	}
	multi := doc.Results[1]
	if multi.FullName != "prompt-chaining/multi-agent" || !multi.Success || multi.Metrics.TotalCalls != 3 || multi.Metrics.TotalTokens != 99 {
		t.Fatalf("multi-agent: %+v", multi)
	}

	out := execute(t, "evaluate", runPath, "--config", cfgPath, "--model", "judge")
	if !strings.Contains(out, "EVALUATION SUMMARY") {
		t.Fatalf("evaluate output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(runPath, "evaluation.json")); err != nil {
		t.Fatalf("evaluation.json: %v", err)
	}

	out = execute(t, "history", "--config", cfgPath)
	if !strings.Contains(out, "e2e") || !strings.Contains(out, "2/2") {
		t.Fatalf("history output:\n%s", out)
	}
}

func TestExcluded(t *testing.T) {
	patterns := []string{"embed", "Rerank"}
	if !excluded("nomic-embed-text", patterns) || !excluded("bge-reranker", patterns) {
		t.Fatal("expected exclusion")
	}
	if excluded("llama3.2", patterns) {
		t.Fatal("unexpected exclusion")
	}
}
