/*
PURPOSE:
  LLM-as-judge quality scoring. Judge scores one output against a rubric;
  Comparator (compare.go) analyses several outputs that share a prompt.

REQUIREMENTS:
  User-specified:
  - Eight 1-5 dimensions with numbered anchors, fixed "dimension: value" answer format.
  - Content is cleaned (agent headers, status footer) and capped at 8,000 characters.
  - A failed judge call never propagates: every dimension becomes 3 and the
    reasoning carries the failure.
  - Parsing never fails on malformed judge output.

  Implementation-discovered:
  - The judge call is streamed; chunks are collected into one response.
  - Judge calls run outside any candidate's metrics scope, so judging cost is not
    charged to the candidate.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine (Runner.Judge, Suite, EvaluateRun)
  - Uses: internal/llm, internal/model

ERROR HANDLING:
  - Evaluate returns a nil error; failures are encoded in the score.

USAGE:
  j := evaluate.NewJudge(client, evaluate.WithRubric(evaluate.AgentTaskRubric))
  score, _ := j.Evaluate(ctx, prompt, content)

RELATED FILES:
  - internal/evaluate/rubric.go
  - internal/evaluate/parse.go
  - internal/evaluate/compare.go
*/

package evaluate

import (
	"context"

	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/model"
)

type settings struct {
	rubric      Rubric
	model       string
	temperature *float64
}

// Option configures a Judge or Comparator.
type Option func(*settings)

// WithRubric selects the rubric (default ContentRubric). Comparator ignores it.
func WithRubric(r Rubric) Option {
	return func(s *settings) { s.rubric = r }
}

// WithModel overrides the client's default model for judge calls.
func WithModel(name string) Option {
	return func(s *settings) { s.model = name }
}

// WithTemperature sets the sampling temperature for judge calls.
func WithTemperature(t float64) Option {
	return func(s *settings) { s.temperature = &t }
}

func newSettings(opts []Option) settings {
	s := settings{rubric: ContentRubric}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s settings) request(system, user string) llm.Request {
	return llm.Request{
		Model:       s.model,
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
		Temperature: s.temperature,
	}
}

// Judge scores single outputs.
type Judge struct {
	client llm.Client
	settings
}

// NewJudge creates a judge backed by client.
func NewJudge(client llm.Client, opts ...Option) *Judge {
	return &Judge{client: client, settings: newSettings(opts)}
}

// Rubric returns the rubric in use.
func (j *Judge) Rubric() Rubric { return j.rubric }

// Evaluate scores content written for prompt.
func (j *Judge) Evaluate(ctx context.Context, prompt, content string) (model.QualityScore, error) {
	clean := truncateRunes(CleanContent(content), evalContentLimit, j.rubric.TruncationMarker)
	req := j.request(j.rubric.SystemPrompt, j.rubric.Prompt(prompt, clean))

	resp, err := llm.Collect(ctx, j.client, req)
	if err != nil {
		return model.NeutralScore("API call failed: " + err.Error()), nil
	}
	return ParseScore(resp.Text), nil
}
