/*
PURPOSE:
  Runs candidates one at a time and turns every outcome into a RunResult.
  One candidate's failure never aborts the run.

REQUIREMENTS:
  User-specified:
  - Strictly sequential execution, in list order.
  - Fresh candidate instance per run; construction, signature, empty content and
    invocation failures are recorded as failed results.
  - Optional quality scoring; judge failures are logged, the result still succeeds.
  - Cancellation stops the loop and returns what was collected so far.

  Implementation-discovered:
  - A metrics scope is bound into the candidate's context; instrumented model
    clients record into it.
  - OnResult lets callers persist each result as it arrives.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/suite.go, internal/cli
  - Uses: internal/registry, internal/metrics, internal/model, internal/output (logger)

ERROR HANDLING:
  - Logs errors but continues (resilience).
  - Only the context's error is returned.

IMPLEMENTATION RULES:
  - Check ctx before each candidate.
  - Duration covers construction through evaluation.

USAGE:
  results, err := engine.Run(ctx, candidates, cfg, judge)

RELATED FILES:
  - internal/engine/errors.go
  - internal/engine/suite.go

MAINTENANCE:
  - A parallel variant would need one scope per worker; scopes are already per invocation.
*/

package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/daryltucker/forest-bench/internal/metrics"
	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/output"
	"github.com/daryltucker/forest-bench/internal/registry"
)

// Evaluator scores one candidate output.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt, content string) (model.QualityScore, error)
}

// Runner executes candidates.
type Runner struct {
	Judge    Evaluator
	OnResult func(model.RunResult)
}

// New creates a runner. judge may be nil.
func New(judge Evaluator) *Runner {
	return &Runner{Judge: judge}
}

// Run executes candidates without an OnResult hook.
func Run(ctx context.Context, candidates []registry.CandidateInfo, cfg model.RunConfig, judge Evaluator) ([]model.RunResult, error) {
	return New(judge).Run(ctx, candidates, cfg)
}

// Run executes each candidate in order and returns one result per attempted candidate.
// When ctx is cancelled the results collected so far are returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, candidates []registry.CandidateInfo, cfg model.RunConfig) ([]model.RunResult, error) {
	results := make([]model.RunResult, 0, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			output.Logger.Warn("Run cancelled", "completed", len(results), "remaining", len(candidates)-i)
			return results, err
		}

		output.Logger.Info("Running candidate", "candidate", c.FullName(), "index", i+1, "total", len(candidates))
		res, err := r.runOne(ctx, c, cfg)
		if err != nil {
			output.Logger.Warn("Run cancelled", "candidate", c.FullName(), "error", err)
			return results, err
		}

		if res.Success {
			output.Logger.Info("Candidate succeeded",
				"candidate", c.FullName(),
				"duration", res.Duration,
				"calls", res.Metrics.TotalCalls,
				"tokens", res.Metrics.TotalTokens,
			)
		} else {
			output.Logger.Error("Candidate failed", "candidate", c.FullName(), "kind", res.ErrorKind, "error", res.Error)
		}

		results = append(results, res)
		if r.OnResult != nil {
			r.OnResult(res)
		}
	}
	return results, nil
}

// runOne returns a non-nil error only when the run context was cancelled.
func (r *Runner) runOne(ctx context.Context, c registry.CandidateInfo, cfg model.RunConfig) (model.RunResult, error) {
	start := time.Now()
	res := model.RunResult{
		Category:   c.Category,
		Name:       c.Name,
		Prompt:     c.Prompt,
		IsBaseline: c.IsBaseline,
	}
	name := c.FullName()

	handle, err := construct(c)
	if err != nil {
		return fail(res, &ConstructionError{Candidate: name, Err: err}, start), nil
	}

	call, ok := registry.Bind(handle)
	if !ok {
		return fail(res, &SignatureError{Candidate: name, Type: fmt.Sprintf("%T", handle)}, start), nil
	}

	scope := metrics.NewScope()
	out, err := invoke(metrics.WithScope(ctx, scope), name, call, c.Prompt)
	res.Metrics = scope.Close()
	if err != nil {
		if ctx.Err() != nil {
			return model.RunResult{}, ctx.Err()
		}
		return fail(res, err, start), nil
	}
	if strings.TrimSpace(out.Content) == "" {
		return fail(res, &EmptyContentError{Candidate: name}, start), nil
	}

	res.Success = true
	res.Content = out.Content
	if len(out.AgentModels) > 0 {
		res.AgentModels = make(map[string]string, len(out.AgentModels))
		for k, v := range out.AgentModels {
			res.AgentModels[k] = v
		}
	}

	if cfg.Evaluate && r.Judge != nil {
		score, err := evaluate(ctx, r.Judge, c.Prompt, out.Content)
		if err != nil {
			output.Logger.Warn("Quality evaluation failed", "error", &EvaluationError{Candidate: name, Err: err})
		} else {
			res.QualityScore = &score
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

func construct(c registry.CandidateInfo) (h any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("constructor panicked: %v", rec)
		}
	}()
	if c.New == nil {
		return nil, fmt.Errorf("no constructor")
	}
	h, err = c.New()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("constructor returned nil")
	}
	return h, nil
}

func invoke(ctx context.Context, name string, call func(context.Context, string) (registry.Output, error), prompt string) (out registry.Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &InvocationError{Candidate: name, Err: fmt.Errorf("panic: %v", rec), Stack: string(debug.Stack())}
		}
	}()
	out, err = call(ctx, prompt)
	if err != nil {
		return registry.Output{}, &InvocationError{Candidate: name, Err: err}
	}
	return out, nil
}

func evaluate(ctx context.Context, judge Evaluator, prompt, content string) (score model.QualityScore, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("judge panicked: %v", rec)
		}
	}()
	return judge.Evaluate(ctx, prompt, content)
}

func fail(res model.RunResult, err error, start time.Time) model.RunResult {
	res.Success = false
	res.Content = ""
	res.Error = RootCause(err).Error()
	if strings.TrimSpace(res.Error) == "" {
		res.Error = err.Error()
	}
	res.ErrorKind = Kind(err)
	res.ErrorDetails = Details(err)
	res.Duration = time.Since(start)
	return res
}
