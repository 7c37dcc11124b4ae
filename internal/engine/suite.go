package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/daryltucker/forest-bench/internal/history"
	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/output"
	"github.com/daryltucker/forest-bench/internal/registry"
	"github.com/daryltucker/forest-bench/internal/store"
)

// ErrNoCandidates is returned when the filter selects nothing.
var ErrNoCandidates = errors.New("no candidates match filter")

// Comparer produces a cross-candidate analysis.
type Comparer interface {
	Compare(ctx context.Context, results []model.RunResult) model.ComparativeAnalysis
}

// HistoryRecorder indexes finished runs.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, run history.Run, results []model.RunResult) (string, error)
}

// Suite wires discovery, execution, persistence and reporting for one run.
// Judge and Comparator are required only when cfg.Evaluate is set.
type Suite struct {
	Registry    *registry.Registry
	Store       *store.RunStore
	Judge       Evaluator
	Comparator  Comparer
	Exporters   []output.Exporter
	History     HistoryRecorder
	Environment any
}

// SuiteResult is what a suite run produced.
// Analyses holds one comparison per prompt group with more than one result.
type SuiteResult struct {
	RunPath  string
	Results  []model.RunResult
	Analyses []model.ComparativeAnalysis
}

// Run executes every candidate matching cfg.Filter. On cancellation the finished
// candidates are still saved and exported, and the context error is returned.
func (s *Suite) Run(ctx context.Context, cfg model.RunConfig) (SuiteResult, error) {
	if cfg.Evaluate && s.Judge == nil {
		return SuiteResult{}, errors.New("evaluation requested but no evaluation model is configured")
	}
	if err := model.ValidateRunID(cfg.RunID); err != nil {
		return SuiteResult{}, err
	}
	reg := s.Registry
	if reg == nil {
		reg = registry.Default
	}
	st := s.Store
	if st == nil {
		st = store.New(cfg.ArtifactsPath)
	}

	candidates, err := reg.Discover(cfg.Filter)
	if err != nil {
		return SuiteResult{}, err
	}
	if len(candidates) == 0 {
		return SuiteResult{}, fmt.Errorf("%w: %q", ErrNoCandidates, cfg.Filter)
	}

	// The run directory is named after the first candidate's prompt.
	prompt := candidates[0].Prompt
	if cfg.Timestamp.IsZero() {
		cfg.Timestamp = time.Now().UTC()
	}
	cfg.RunID = cfg.EffectiveRunID(prompt)

	output.Logger.Info("Starting benchmark run",
		"run_id", cfg.RunID,
		"filter", cfg.Filter,
		"candidates", len(candidates),
		"evaluate", cfg.Evaluate,
	)

	runPath, err := st.CreateRunDirectory(cfg, prompt)
	if err != nil {
		return SuiteResult{}, err
	}
	out := SuiteResult{RunPath: runPath}
	if err := st.SaveConfig(runPath, cfg, prompt); err != nil {
		return out, err
	}
	env := s.Environment
	if env == nil {
		env = store.NewEnvironment("", "")
	}
	if err := st.SaveEnvironment(runPath, env); err != nil {
		return out, err
	}

	progress, err := output.NewJSONLWriter(filepath.Join(runPath, output.ResultsJSONLFile))
	if err != nil {
		return out, fmt.Errorf("failed to open progress log: %w", err)
	}
	defer progress.Close()

	runner := New(s.Judge)
	runner.OnResult = func(r model.RunResult) {
		if err := st.SaveOutput(runPath, r); err != nil {
			output.Logger.Error("Failed to save candidate output", "candidate", r.FullName(), "error", err)
		}
		if err := progress.Write(r); err != nil {
			output.Logger.Error("Failed to append progress", "candidate", r.FullName(), "error", err)
		}
	}

	results, runErr := runner.Run(ctx, candidates, cfg)
	out.Results = results

	for _, e := range s.Exporters {
		if err := e.Export(results, cfg, runPath); err != nil {
			return out, fmt.Errorf("exporter %s: %w", e.Name(), err)
		}
	}

	if runErr == nil && cfg.Evaluate && s.Comparator != nil {
		for _, group := range groupByPrompt(results) {
			if len(group) < 2 {
				continue
			}
			output.Logger.Info("Running comparative analysis", "category", group[0].Category, "candidates", len(group))
			out.Analyses = append(out.Analyses, s.Comparator.Compare(ctx, group))
		}
		if len(out.Analyses) > 0 {
			if _, err := output.WriteAnalyses(out.Analyses, runPath); err != nil {
				return out, err
			}
		}
	}

	if s.History != nil {
		// A cancelled run is still indexed.
		hctx := context.WithoutCancel(ctx)
		_, err := s.History.RecordRun(hctx, history.Run{
			RunID:     cfg.RunID,
			Prompt:    prompt,
			RunPath:   runPath,
			Filter:    cfg.Filter,
			Evaluate:  cfg.Evaluate,
			Cancelled: runErr != nil,
			CreatedAt: cfg.Timestamp,
		}, results)
		if err != nil {
			return out, fmt.Errorf("failed to record history: %w", err)
		}
	}

	output.Logger.Info("Run saved", "path", runPath, "results", len(results))
	return out, runErr
}

// EvaluateRun re-scores the stored outputs of an existing run directory and writes
// evaluation.json and evaluation.md next to them. modelName is recorded in the report.
func EvaluateRun(ctx context.Context, runPath string, judge Evaluator, modelName string) (output.Evaluation, error) {
	if judge == nil {
		return output.Evaluation{}, errors.New("evaluation requires a judge")
	}
	run, err := store.LoadRun(runPath)
	if err != nil {
		return output.Evaluation{}, err
	}
	for _, skipped := range run.Skipped {
		output.Logger.Warn("Skipping candidate without output", "candidate", skipped)
	}

	ev := output.Evaluation{
		Prompt:    sharedPrompt(run),
		Model:     modelName,
		Timestamp: time.Now().UTC(),
	}
	for _, o := range run.Outputs {
		if err := ctx.Err(); err != nil {
			return ev, err
		}
		output.Logger.Info("Evaluating stored output", "candidate", o.FullName())
		entry := output.EvaluatedOutput{Category: o.Category, Benchmark: o.Name, Prompt: o.Prompt}
		score, err := evaluate(ctx, judge, o.Prompt, o.Content)
		if err != nil {
			output.Logger.Warn("Quality evaluation failed", "error", &EvaluationError{Candidate: o.FullName(), Err: err})
		} else {
			entry.Quality = &score
			output.Logger.Info("Scored", "candidate", o.FullName(), "quality", fmt.Sprintf("%.1f", score.Average()))
		}
		ev.Outputs = append(ev.Outputs, entry)
	}

	if err := output.WriteEvaluation(ev, runPath); err != nil {
		return ev, err
	}
	return ev, nil
}

// groupByPrompt splits results into runs of the same prompt, in first-seen order.
func groupByPrompt(results []model.RunResult) [][]model.RunResult {
	var groups [][]model.RunResult
	index := map[string]int{}
	for _, r := range results {
		i, ok := index[r.Prompt]
		if !ok {
			i = len(groups)
			index[r.Prompt] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

// sharedPrompt is the prompt every stored output was run with, or "" when they differ.
func sharedPrompt(run *store.Run) string {
	if len(run.Outputs) == 0 {
		return run.Config.Prompt
	}
	p := run.Outputs[0].Prompt
	for _, o := range run.Outputs[1:] {
		if o.Prompt != p {
			return ""
		}
	}
	return p
}
