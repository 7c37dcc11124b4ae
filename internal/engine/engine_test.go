package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daryltucker/forest-bench/internal/history"
	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/metrics"
	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/output"
	"github.com/daryltucker/forest-bench/internal/registry"
	"github.com/daryltucker/forest-bench/internal/store"
)

// fixedClient answers every call with the same text and usage.
func fixedClient(text string, in, out int) llm.Client {
	return llm.ClientFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		return llm.Response{Text: text, Model: req.Model, Usage: llm.Usage{InputTokens: in, OutputTokens: out}}, nil
	})
}

type fakeJudge struct {
	calls   int
	err     error
	explode bool
}

func (j *fakeJudge) Evaluate(ctx context.Context, prompt, content string) (model.QualityScore, error) {
	j.calls++
	if j.explode {
		panic("judge exploded")
	}
	if j.err != nil {
		return model.QualityScore{}, j.err
	}
	q := model.NeutralScore("fine")
	q.Depth = 5
	return q, nil
}

func discover(t *testing.T, groups ...registry.Group) []registry.CandidateInfo {
	t.Helper()
	reg := registry.New()
	for _, g := range groups {
		reg.RegisterGroup(g)
	}
	c, err := reg.Discover("")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return c
}

func chainingGroup() registry.Group {
	client := metrics.Instrument(fixedClient("answer", 10, 20), "ollama")
	return registry.Group{
		Category: "chaining",
		Prompt:   "Explain tides",
		Candidates: []registry.Method{
			{
				Name:     "single",
				Baseline: true,
				Handle: registry.PromptTextFunc(func(ctx context.Context, prompt string) (string, error) {
					resp, err := client.Chat(ctx, llm.Request{Model: "m", Messages: []llm.Message{llm.User(prompt)}})
					return resp.Text, err
				}),
			},
			{
				Name: "multi",
				Handle: func(ctx context.Context, prompt string) (registry.Output, error) {
					var text string
					for i := 0; i < 3; i++ {
						resp, err := client.Chat(ctx, llm.Request{Model: "m", Messages: []llm.Message{llm.User(prompt)}})
						if err != nil {
							return registry.Output{}, err
						}
						text += resp.Text
					}
					return registry.Output{Content: text, AgentModels: map[string]string{"writer": "m"}}, nil
				},
			},
		},
	}
}

func TestRun_CollectsMetricsPerCandidate(t *testing.T) {
	results, err := Run(context.Background(), discover(t, chainingGroup()), model.RunConfig{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d want 2", len(results))
	}

	single, multi := results[0], results[1]
	if !single.Success || !single.IsBaseline || single.Metrics.TotalCalls != 1 || single.Metrics.TotalTokens != 30 {
		t.Fatalf("single: %+v", single)
	}
	if !multi.Success || multi.Metrics.TotalCalls != 3 || multi.Metrics.TotalTokens != 90 {
		t.Fatalf("multi: %+v", multi)
	}
	if multi.AgentModels["writer"] != "m" {
		t.Fatalf("agent models: %v", multi.AgentModels)
	}
	if multi.Content != "answeransweranswer" {
		t.Fatalf("content: %q", multi.Content)
	}
	if single.QualityScore != nil {
		t.Fatalf("unexpected quality score without evaluation")
	}
}

func TestRun_FailuresAreRecorded(t *testing.T) {
	ok := registry.TextFunc(func(ctx context.Context) (string, error) { return "fine", nil })
	g := registry.Group{
		Category: "failures",
		Prompt:   "p",
		Candidates: []registry.Method{
			{Name: "ctor-error", New: func() (any, error) { return nil, errors.New("no deps") }},
			{Name: "ctor-nil", New: func() (any, error) { return nil, nil }},
			{Name: "ctor-panic", New: func() (any, error) { panic("bad wiring") }},
			{Name: "signature", Handle: func(int) string { return "" }},
			{Name: "empty", Handle: registry.TextFunc(func(ctx context.Context) (string, error) { return "  \n ", nil })},
			{Name: "error", Handle: registry.TextFunc(func(ctx context.Context) (string, error) {
				return "", fmt.Errorf("step two: %w", errors.New("model unavailable"))
			})},
			{Name: "panic", Handle: registry.TextFunc(func(ctx context.Context) (string, error) { panic("kaboom") })},
			{Name: "ok", Handle: ok},
		},
	}

	results, err := Run(context.Background(), discover(t, g), model.RunConfig{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("results: got %d want 8", len(results))
	}

	tests := []struct {
		name      string
		kind      string
		errSubstr string
	}{
		{"ctor-error", KindConstruction, "no deps"},
		{"ctor-nil", KindConstruction, "nil"},
		{"ctor-panic", KindConstruction, "bad wiring"},
		{"signature", KindSignature, "unsupported signature"},
		{"empty", KindEmptyContent, "empty content"},
		{"error", KindInvocation, "model unavailable"},
		{"panic", KindInvocation, "kaboom"},
	}
	for i, tt := range tests {
		r := results[i]
		if r.Name != tt.name {
			t.Fatalf("result %d: got %s want %s", i, r.Name, tt.name)
		}
		if r.Success {
			t.Fatalf("%s: expected failure", tt.name)
		}
		if r.ErrorKind != tt.kind {
			t.Fatalf("%s: kind got %q want %q", tt.name, r.ErrorKind, tt.kind)
		}
		if !strings.Contains(r.Error, tt.errSubstr) {
			t.Fatalf("%s: error %q missing %q", tt.name, r.Error, tt.errSubstr)
		}
		if r.Content != "" {
			t.Fatalf("%s: failed result carries content", tt.name)
		}
	}

	if got := results[5].Error; got != "model unavailable" {
		t.Fatalf("root cause: got %q", got)
	}
	if !strings.Contains(results[5].ErrorDetails, "step two") {
		t.Fatalf("details lost the chain: %q", results[5].ErrorDetails)
	}
	if !strings.Contains(results[6].ErrorDetails, "goroutine") {
		t.Fatalf("panic details lack a stack: %q", results[6].ErrorDetails)
	}
	if last := results[7]; !last.Success || last.Content != "fine" {
		t.Fatalf("run did not continue after failures: %+v", last)
	}
}

func TestRun_Evaluation(t *testing.T) {
	candidates := discover(t, chainingGroup())

	t.Run("scored", func(t *testing.T) {
		judge := &fakeJudge{}
		results, err := Run(context.Background(), candidates, model.RunConfig{Evaluate: true}, judge)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if judge.calls != 2 {
			t.Fatalf("judge calls: got %d want 2", judge.calls)
		}
		for _, r := range results {
			if r.QualityScore == nil || r.QualityScore.Depth != 5 {
				t.Fatalf("%s: score %+v", r.FullName(), r.QualityScore)
			}
		}
	})

	t.Run("disabled", func(t *testing.T) {
		judge := &fakeJudge{}
		if _, err := Run(context.Background(), candidates, model.RunConfig{}, judge); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if judge.calls != 0 {
			t.Fatalf("judge called %d times with evaluation off", judge.calls)
		}
	})

	for _, judge := range []*fakeJudge{{err: errors.New("judge down")}, {explode: true}} {
		results, err := Run(context.Background(), candidates, model.RunConfig{Evaluate: true}, judge)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		for _, r := range results {
			if !r.Success || r.QualityScore != nil {
				t.Fatalf("judge failure must not fail the candidate: %+v", r)
			}
		}
	}
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var secondRan bool
	g := registry.Group{
		Category: "cancel",
		Prompt:   "p",
		Candidates: []registry.Method{
			{Name: "first", Handle: registry.TextFunc(func(ctx context.Context) (string, error) { return "done", nil })},
			{Name: "cancels", Handle: registry.TextFunc(func(ctx context.Context) (string, error) {
				cancel()
				return "", ctx.Err()
			})},
			{Name: "never", Handle: registry.TextFunc(func(ctx context.Context) (string, error) {
				secondRan = true
				return "x", nil
			})},
		},
	}

	var seen []string
	r := New(nil)
	r.OnResult = func(res model.RunResult) { seen = append(seen, res.Name) }
	results, err := r.Run(ctx, discover(t, g), model.RunConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: got %v want context.Canceled", err)
	}
	if len(results) != 1 || results[0].Name != "first" {
		t.Fatalf("results: %+v", results)
	}
	if secondRan {
		t.Fatal("candidate ran after cancellation")
	}
	if strings.Join(seen, ",") != "first" {
		t.Fatalf("OnResult: %v", seen)
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := Run(ctx, discover(t, chainingGroup()), model.RunConfig{}, nil)
	if !errors.Is(err, context.Canceled) || len(results) != 0 {
		t.Fatalf("got %d results, err %v", len(results), err)
	}
}

func TestRootCauseAndKind(t *testing.T) {
	base := errors.New("disk full")
	err := &InvocationError{Candidate: "a/b", Err: fmt.Errorf("save: %w", base)}
	if RootCause(err) != base {
		t.Fatalf("RootCause: %v", RootCause(err))
	}
	if Kind(err) != KindInvocation {
		t.Fatalf("Kind: %s", Kind(err))
	}
	if Kind(&EmptyContentError{Candidate: "a/b"}) != KindEmptyContent {
		t.Fatal("empty content kind")
	}
	if RootCause(nil) != nil {
		t.Fatal("RootCause(nil) should be nil")
	}
}

type fakeComparer struct {
	calls   int
	prompts [][]string
}

func (c *fakeComparer) Compare(ctx context.Context, results []model.RunResult) model.ComparativeAnalysis {
	c.calls++
	var prompts []string
	for _, r := range results {
		prompts = append(prompts, r.Prompt)
	}
	c.prompts = append(c.prompts, prompts)
	return model.ComparativeAnalysis{Prompt: results[0].Prompt, AnalysisText: "close call", VerdictText: "multi wins"}
}

type fakeHistory struct {
	runs    []history.Run
	results [][]model.RunResult
}

func (h *fakeHistory) RecordRun(ctx context.Context, run history.Run, results []model.RunResult) (string, error) {
	h.runs = append(h.runs, run)
	h.results = append(h.results, results)
	return "id", nil
}

func newSuite(t *testing.T, judge Evaluator) (*Suite, *fakeComparer, *fakeHistory) {
	t.Helper()
	reg := registry.New()
	reg.RegisterGroup(chainingGroup())
	cmp := &fakeComparer{}
	hist := &fakeHistory{}
	s := &Suite{
		Registry:   reg,
		Store:      store.New(t.TempDir()),
		Judge:      judge,
		Comparator: cmp,
		Exporters:  output.ByName([]string{"json", "markdown"}, nil),
		History:    hist,
	}
	return s, cmp, hist
}

func TestSuite_Run(t *testing.T) {
	s, cmp, hist := newSuite(t, &fakeJudge{})
	res, err := s.Run(context.Background(), model.RunConfig{RunID: "suite-run", Evaluate: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Base(res.RunPath) != "suite-run" {
		t.Fatalf("run path: %s", res.RunPath)
	}
	for _, f := range []string{
		store.RunConfigFile,
		store.EnvironmentFile,
		output.ResultsJSONLFile,
		output.ResultsJSONFile,
		output.ComparisonFile,
		output.AnalysisFile,
		filepath.Join("chaining", "single", store.OutputFile),
		filepath.Join("chaining", "multi", store.MetricsFile),
	} {
		if _, err := os.Stat(filepath.Join(res.RunPath, f)); err != nil {
			t.Fatalf("missing %s: %v", f, err)
		}
	}
	if cmp.calls != 1 || len(res.Analyses) != 1 || res.Analyses[0].VerdictText != "multi wins" {
		t.Fatalf("comparison: calls=%d analyses=%+v", cmp.calls, res.Analyses)
	}
	if len(hist.runs) != 1 || hist.runs[0].RunID != "suite-run" || hist.runs[0].Cancelled || len(hist.results[0]) != 2 {
		t.Fatalf("history: %+v", hist.runs)
	}
}

func TestSuite_RunWithoutEvaluation(t *testing.T) {
	s, cmp, _ := newSuite(t, nil)
	res, err := s.Run(context.Background(), model.RunConfig{RunID: "plain"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cmp.calls != 0 || len(res.Analyses) != 0 {
		t.Fatal("comparison ran without evaluation")
	}
	if _, err := os.Stat(filepath.Join(res.RunPath, output.AnalysisFile)); !os.IsNotExist(err) {
		t.Fatalf("analysis.md should not exist: %v", err)
	}
}

func TestSuite_Errors(t *testing.T) {
	s, _, _ := newSuite(t, nil)
	if _, err := s.Run(context.Background(), model.RunConfig{Evaluate: true}); err == nil {
		t.Fatal("expected error when evaluating without a judge")
	}
	if _, err := s.Run(context.Background(), model.RunConfig{Filter: "nothing/*"}); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("err: got %v want ErrNoCandidates", err)
	}
}

func TestEvaluateRun(t *testing.T) {
	s, _, _ := newSuite(t, nil)
	res, err := s.Run(context.Background(), model.RunConfig{RunID: "to-score"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	judge := &fakeJudge{}
	ev, err := EvaluateRun(context.Background(), res.RunPath, judge, "judge-model")
	if err != nil {
		t.Fatalf("EvaluateRun: %v", err)
	}
	if ev.Prompt != "Explain tides" || ev.Model != "judge-model" {
		t.Fatalf("evaluation header: %+v", ev)
	}
	if len(ev.Outputs) != 2 || judge.calls != 2 {
		t.Fatalf("outputs=%d calls=%d", len(ev.Outputs), judge.calls)
	}
	for _, o := range ev.Outputs {
		if o.Quality == nil {
			t.Fatalf("%s: missing score", o.FullName())
		}
	}
	for _, f := range []string{output.EvaluationJSONFile, output.EvaluationMDFile} {
		if _, err := os.Stat(filepath.Join(res.RunPath, f)); err != nil {
			t.Fatalf("missing %s: %v", f, err)
		}
	}

	if _, err := EvaluateRun(context.Background(), filepath.Join(t.TempDir(), "missing"), judge, "m"); err == nil {
		t.Fatal("expected error for missing run directory")
	}
}

// promptJudge records which prompt each piece of content was judged against.
type promptJudge struct{ seen map[string]string }

func (j *promptJudge) Evaluate(ctx context.Context, prompt, content string) (model.QualityScore, error) {
	if j.seen == nil {
		j.seen = map[string]string{}
	}
	j.seen[content] = prompt
	return model.NeutralScore("ok"), nil
}

func textGroup(category, prompt string, names ...string) registry.Group {
	g := registry.Group{Category: category, Prompt: prompt}
	for i, name := range names {
		out := "out-" + category + "-" + name
		g.Candidates = append(g.Candidates, registry.Method{
			Name:     name,
			Baseline: i == 0,
			Handle: registry.PromptTextFunc(func(ctx context.Context, prompt string) (string, error) {
				return out, nil
			}),
		})
	}
	return g
}

func TestSuite_MixedPrompts(t *testing.T) {
	reg := registry.New()
	reg.RegisterGroup(textGroup("a", "Prompt A", "x", "w"))
	reg.RegisterGroup(textGroup("b", "Prompt B", "y", "v"))
	reg.RegisterGroup(textGroup("c", "Prompt C", "solo"))
	cmp := &fakeComparer{}
	s := &Suite{Registry: reg, Store: store.New(t.TempDir()), Judge: &promptJudge{}, Comparator: cmp}

	res, err := s.Run(context.Background(), model.RunConfig{RunID: "mixed", Evaluate: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cmp.calls != 2 || len(res.Analyses) != 2 {
		t.Fatalf("comparisons: calls=%d analyses=%d", cmp.calls, len(res.Analyses))
	}
	for i, want := range []string{"Prompt A", "Prompt B"} {
		for _, p := range cmp.prompts[i] {
			if p != want {
				t.Fatalf("group %d compared prompts %v, want all %q", i, cmp.prompts[i], want)
			}
		}
		if res.Analyses[i].Prompt != want {
			t.Fatalf("analysis %d prompt %q, want %q", i, res.Analyses[i].Prompt, want)
		}
	}
	raw, err := os.ReadFile(filepath.Join(res.RunPath, output.AnalysisFile))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{"# Benchmark Analysis: Prompt A", "# Benchmark Analysis: Prompt B"} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("analysis.md missing %q", want)
		}
	}

	judge := &promptJudge{}
	ev, err := EvaluateRun(context.Background(), res.RunPath, judge, "judge")
	if err != nil {
		t.Fatalf("EvaluateRun: %v", err)
	}
	want := map[string]string{
		"out-a-x": "Prompt A", "out-a-w": "Prompt A",
		"out-b-y": "Prompt B", "out-b-v": "Prompt B",
		"out-c-solo": "Prompt C",
	}
	for content, prompt := range want {
		if judge.seen[content] != prompt {
			t.Fatalf("%s judged against %q, want %q", content, judge.seen[content], prompt)
		}
	}
	if ev.Prompt != "" {
		t.Fatalf("mixed run should have no shared prompt, got %q", ev.Prompt)
	}
	for _, o := range ev.Outputs {
		if o.Prompt == "" {
			t.Fatalf("%s: prompt not recorded", o.FullName())
		}
	}
}
