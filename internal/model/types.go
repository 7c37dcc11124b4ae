/*
PURPOSE:
  Defines the core data structures used throughout Forest Bench.
  These models represent run results, quality scores and comparative analyses.

REQUIREMENTS:
  User-specified:
  - Record duration, success/failure, content and aggregated call metrics per candidate.
  - Quality scores have eight 1-5 dimensions; the average is always computed.

  Implementation-discovered:
  - Need JSON tags for results.json / metrics.json.
  - Results are values; exporters and the store only read them.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/evaluate, internal/store, internal/output, internal/history
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time and time.Duration for high precision.

USAGE:
  res := model.RunResult{...}

SELF-HEALING INSTRUCTIONS:
  - If new dimensions are added, update Dimensions(), Average() and the exporters.

RELATED FILES:
  - internal/output/markdown.go
  - internal/output/json.go

MAINTENANCE:
  - Update when adding new fields to capture.
*/

package model

import (
	"encoding/json"
	"time"

	"github.com/daryltucker/forest-bench/internal/metrics"
)

// RunResult is the outcome of one candidate in one run.
// Success implies non-blank Content; failure implies empty Content and non-empty Error.
type RunResult struct {
	Category     string             `json:"category"`
	Name         string             `json:"name"`
	Prompt       string             `json:"prompt"`
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
	ErrorKind    string             `json:"error_kind,omitempty"`
	ErrorDetails string             `json:"error_details,omitempty"`
	Content      string             `json:"content,omitempty"`
	Duration     time.Duration      `json:"duration"`
	Metrics      metrics.Aggregated `json:"metrics"`
	QualityScore *QualityScore      `json:"quality_score,omitempty"`
	IsBaseline   bool               `json:"is_baseline,omitempty"`
	AgentModels  map[string]string  `json:"agent_models,omitempty"`
}

// FullName is "category/name".
func (r RunResult) FullName() string {
	return r.Category + "/" + r.Name
}

// Baseline returns the first result marked as baseline.
func Baseline(results []RunResult) (RunResult, bool) {
	for _, r := range results {
		if r.IsBaseline {
			return r, true
		}
	}
	return RunResult{}, false
}

// QualityScore holds judge scores, each in [1,5].
type QualityScore struct {
	Completeness    int    `json:"completeness"`
	Structure       int    `json:"structure"`
	Accuracy        int    `json:"accuracy"`
	Engagement      int    `json:"engagement"`
	EvidenceQuality int    `json:"evidence_quality"`
	Balance         int    `json:"balance"`
	Actionability   int    `json:"actionability"`
	Depth           int    `json:"depth"`
	Reasoning       string `json:"reasoning"`
}

// Dimension names in rubric order. Keys match the judge's response format.
var DimensionNames = []string{
	"completeness",
	"structure",
	"accuracy",
	"engagement",
	"evidence_quality",
	"balance",
	"actionability",
	"depth",
}

// Dimensions returns the scores in DimensionNames order.
func (q QualityScore) Dimensions() []int {
	return []int{q.Completeness, q.Structure, q.Accuracy, q.Engagement, q.EvidenceQuality, q.Balance, q.Actionability, q.Depth}
}

// Set assigns a dimension by name. Unknown names are ignored.
func (q *QualityScore) Set(name string, v int) {
	switch name {
	case "completeness":
		q.Completeness = v
	case "structure":
		q.Structure = v
	case "accuracy":
		q.Accuracy = v
	case "engagement":
		q.Engagement = v
	case "evidence_quality":
		q.EvidenceQuality = v
	case "balance":
		q.Balance = v
	case "actionability":
		q.Actionability = v
	case "depth":
		q.Depth = v
	}
}

// Average is the unweighted mean of the eight dimensions.
func (q QualityScore) Average() float64 {
	dims := q.Dimensions()
	sum := 0
	for _, d := range dims {
		sum += d
	}
	return float64(sum) / float64(len(dims))
}

// NeutralScore returns a score with every dimension set to 3.
func NeutralScore(reasoning string) QualityScore {
	return QualityScore{3, 3, 3, 3, 3, 3, 3, 3, reasoning}
}

// MarshalJSON adds the computed average.
func (q QualityScore) MarshalJSON() ([]byte, error) {
	type plain QualityScore
	return json.Marshal(struct {
		plain
		Average float64 `json:"average"`
	}{plain(q), q.Average()})
}

// BenchmarkComparison is one candidate's row in a comparative analysis.
type BenchmarkComparison struct {
	FullName       string        `json:"full_name"`
	IsBaseline     bool          `json:"is_baseline"`
	WordCount      int           `json:"word_count"`
	TotalTokens    int           `json:"total_tokens"`
	TotalCalls     int           `json:"total_calls"`
	TotalLatencyMs float64       `json:"total_latency_ms"`
	QualityScore   *QualityScore `json:"quality_score,omitempty"`
	Strengths      []string      `json:"strengths,omitempty"`
	Weaknesses     []string      `json:"weaknesses,omitempty"`
}

// ComparativeAnalysis is the judge's cross-candidate comparison.
type ComparativeAnalysis struct {
	Prompt       string                `json:"prompt"`
	Timestamp    time.Time             `json:"timestamp"`
	Benchmarks   []BenchmarkComparison `json:"benchmarks"`
	AnalysisText string                `json:"analysis"`
	VerdictText  string                `json:"verdict"`
}
