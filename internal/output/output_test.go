package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/daryltucker/forest-bench/internal/metrics"
	"github.com/daryltucker/forest-bench/internal/model"
)

func sampleResults() []model.RunResult {
	good := model.NeutralScore("solid")
	good.Depth = 5
	return []model.RunResult{
		{
			Category:   "prompt-chaining",
			Name:       "single-agent",
			Prompt:     "Explain tides",
			Success:    true,
			Content:    "Tides are caused by the moon.",
			Duration:   2 * time.Second,
			IsBaseline: true,
			Metrics:    metrics.Aggregated{TotalCalls: 1, TotalTokens: 100, TotalInputTokens: 40, TotalOutputTokens: 60, TotalLatencyMs: 2000},
		},
		{
			Category:     "prompt-chaining",
			Name:         "multi-agent",
			Prompt:       "Explain tides",
			Success:      true,
			Content:      "Longer answer.",
			Duration:     5 * time.Second,
			Metrics:      metrics.Aggregated{TotalCalls: 3, TotalTokens: 250, TotalLatencyMs: 5000},
			QualityScore: &good,
			AgentModels:  map[string]string{"researcher": "llama3.2", "writer": "qwen2.5"},
		},
		{
			Category:     "reflection",
			Name:         "broken",
			Prompt:       "Explain tides",
			Error:        "boom",
			ErrorKind:    "invocation",
			ErrorDetails: "goroutine 1 [running]:",
		},
	}
}

func sampleConfig() model.RunConfig {
	return model.RunConfig{
		RunID:     "test-run",
		Evaluate:  true,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestByName(t *testing.T) {
	got := ByName([]string{"console", "MD", "json", "csv", "markdown", "bogus"}, &bytes.Buffer{})
	var names []string
	for _, e := range got {
		names = append(names, e.Name())
	}
	want := "console,markdown,json,csv"
	if strings.Join(names, ",") != want {
		t.Fatalf("names: got %v want %s", names, want)
	}
}

func TestJSONExporter(t *testing.T) {
	dir := t.TempDir()
	if err := (&JSONExporter{}).Export(sampleResults(), sampleConfig(), dir); err != nil {
		t.Fatalf("Export: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, ResultsJSONFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var doc struct {
		RunID             string           `json:"run_id"`
		EvaluationEnabled bool             `json:"evaluation_enabled"`
		Results           []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.RunID != "test-run" || !doc.EvaluationEnabled {
		t.Fatalf("header: %+v", doc)
	}
	if len(doc.Results) != 3 {
		t.Fatalf("results: got %d", len(doc.Results))
	}
	first := doc.Results[0]
	for _, k := range []string{"error", "error_details", "quality", "agent_models"} {
		if _, ok := first[k]; ok {
			t.Fatalf("expected %q omitted in %v", k, first)
		}
	}
	if first["full_name"] != "prompt-chaining/single-agent" {
		t.Fatalf("full_name: %v", first["full_name"])
	}
	q, ok := doc.Results[1]["quality"].(map[string]any)
	if !ok || q["depth"] != float64(5) {
		t.Fatalf("quality: %v", doc.Results[1]["quality"])
	}
	broken := doc.Results[2]
	if broken["error_kind"] != "invocation" || broken["error_details"] != "goroutine 1 [running]:" {
		t.Fatalf("error fields: %v", broken)
	}
}

func TestCSVExporter(t *testing.T) {
	dir := t.TempDir()
	if err := (&CSVExporter{}).Export(sampleResults(), sampleConfig(), dir); err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, ResultsCSVFile))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows: got %d want 4", len(rows))
	}
	for i, r := range rows {
		if len(r) != len(csvHeader) {
			t.Fatalf("row %d has %d columns, want %d", i, len(r), len(csvHeader))
		}
	}
	if rows[3][len(csvHeader)-1] != "boom" {
		t.Fatalf("error column: %v", rows[3])
	}
}

func TestJSONLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ResultsJSONLFile)
	w, err := NewJSONLWriter(path)
	if err != nil {
		t.Fatalf("NewJSONLWriter: %v", err)
	}
	for _, r := range sampleResults() {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines: got %d", len(lines))
	}
}

func TestMarkdownExporter(t *testing.T) {
	dir := t.TempDir()
	if err := (&MarkdownExporter{}).Export(sampleResults(), sampleConfig(), dir); err != nil {
		t.Fatalf("Export: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, ComparisonFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	md := string(raw)
	for _, want := range []string{
		"# Benchmark Results: Explain tides",
		"**Run ID:** test-run",
		"| prompt-chaining/single-agent (baseline) | OK |",
		"## Errors",
		"**Kind:** invocation",
		"goroutine 1 [running]:",
		"- **Tokens:** +150 (+150.0%)",
		"| researcher | `llama3.2` |",
		"## Quality Breakdown",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestConsoleExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsoleExporter(&buf).Export(sampleResults(), sampleConfig(), "/tmp/run"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"BENCHMARK RESULTS SUMMARY",
		"Run ID: test-run",
		"Benchmark",
		"prompt-chaining/single-agent",
		"FAIL",
		"prompt-chaining/multi-agent vs prompt-chaining/single-agent:",
		"Tokens: +150 (+150.0%)",
		"API Calls: +2",
		"researcher",
		"Run saved to: /tmp/run",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("console missing %q:\n%s", want, out)
		}
	}
	// No baseline quality, so no quality delta.
	if strings.Contains(out, "Quality: +") {
		t.Fatalf("unexpected quality delta:\n%s", out)
	}
}

func TestConsoleTable(t *testing.T) {
	c := NewConsoleExporter(&bytes.Buffer{})
	out := c.Table([]string{"Name", "Status"}, [][]string{{"a/one", "OK"}, {"a/two", "FAIL"}}, 1,
		func(row int) bool { return row == 1 })
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected border, header, separator, two rows and border; got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "╭") || !strings.Contains(lines[1], "Name") || !strings.Contains(lines[4], "a/two") {
		t.Fatalf("table layout:\n%s", out)
	}
	// Every line has the same display width.
	for _, l := range lines[1:] {
		if len([]rune(l)) != len([]rune(lines[0])) {
			t.Fatalf("ragged table:\n%s", out)
		}
	}
}

func TestWriteAnalysis(t *testing.T) {
	q := model.NeutralScore("")
	a := model.ComparativeAnalysis{
		Prompt:    "Explain tides",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Benchmarks: []model.BenchmarkComparison{
			{FullName: "a/base", IsBaseline: true, WordCount: 1000, TotalTokens: 2000, TotalCalls: 1, TotalLatencyMs: 1500, QualityScore: &q},
			{FullName: "a/multi", WordCount: 1500, TotalTokens: 5000, TotalCalls: 3, TotalLatencyMs: 4500,
				Strengths: []string{"thorough"}, Weaknesses: []string{"slow"}},
		},
		AnalysisText: "Multi is deeper.",
		VerdictText:  "Use multi.",
	}
	dir := t.TempDir()
	path, err := WriteAnalysis(a, dir)
	if err != nil {
		t.Fatalf("WriteAnalysis: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	md := string(raw)
	for _, want := range []string{
		"| a/base * | 1,000 | 2,000 | 1 | 1,500ms | 3.0/5 |",
		"\\* baseline",
		"**a/multi** vs **a/base**:",
		"- Words: +500 (+50.0%)",
		"- Latency: +3000ms (+200.0%)",
		"**Strengths:**\n- thorough",
		"## Verdict\n\nUse multi.",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("analysis missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "- Quality:") {
		t.Fatalf("quality delta requires both scores:\n%s", md)
	}
}

func TestWriteEvaluation(t *testing.T) {
	q := model.NeutralScore("Reasonable coverage.")
	ev := Evaluation{
		Prompt:    "Explain tides",
		Model:     "llama3.2",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Outputs: []EvaluatedOutput{
			{Category: "a", Benchmark: "one", Quality: &q},
			{Category: "a", Benchmark: "two"},
		},
	}
	dir := t.TempDir()
	if err := WriteEvaluation(ev, dir); err != nil {
		t.Fatalf("WriteEvaluation: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, EvaluationJSONFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(entries) != 2 || entries[1]["quality"] != nil {
		t.Fatalf("entries: %v", entries)
	}

	md, err := os.ReadFile(filepath.Join(dir, EvaluationMDFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{
		"**Evaluation Model:** llama3.2",
		"| a/one | 3 | 3 | 3 | 3 | 3 | 3 | 3 | 3 | **3.0** |",
		"| a/two | - | - | - | - | - | - | - | - | **-** |",
		"### a/one\n\nReasonable coverage.",
	} {
		if !strings.Contains(string(md), want) {
			t.Fatalf("evaluation.md missing %q:\n%s", want, md)
		}
	}

	var buf bytes.Buffer
	if err := NewConsoleExporter(&buf).EvaluationSummary(ev); err != nil {
		t.Fatalf("EvaluationSummary: %v", err)
	}
	for _, want := range []string{"evaluation failed", "a/one", "3.0", "Avg"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("summary missing %q:\n%s", want, buf.String())
		}
	}
}

func TestFormatting(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{thousands(0), "0"},
		{thousands(999), "999"},
		{thousands(1000), "1,000"},
		{thousands(-1234567), "-1,234,567"},
		{signedInt(3), "+3"},
		{signedInt(-3), "-3"},
		{signedInt(0), "0"},
		{signedFloat(0.04), "0"},
		{signedFloat(-12.34), "-12.3"},
		{signedFloat(150), "+150.0"},
	}
	for i, c := range cases {
		if c.got != c.want {
			t.Fatalf("case %d: got %q want %q", i, c.got, c.want)
		}
	}
}
