/*
PURPOSE:
  JSON outputs for a run:
  - results.jsonl: one line per candidate, appended as each candidate finishes.
  - results.json: the full result set, written once by the json exporter.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.
  - Nulls and empty values omitted; numeric fields match the other exporters.

  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array (append-friendly).
    A cancelled run still leaves every finished candidate in results.jsonl.

ARCHITECTURE INTEGRATION:
  - JSONLWriter called by: internal/engine/suite.go (Runner.OnResult)
  - JSONExporter selected by: ByName("json")
  - Consumes: internal/model.RunResult

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONLWriter(filepath.Join(runPath, "results.jsonl"))
  w.Write(result)
  w.Close()

RELATED FILES:
  - internal/model/types.go
*/

package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/store"
)

// File names written by this file.
const (
	ResultsJSONFile  = "results.json"
	ResultsJSONLFile = "results.jsonl"
)

// ResultRecord is the exported view of one RunResult.
type ResultRecord struct {
	Category        string              `json:"category"`
	Name            string              `json:"name"`
	FullName        string              `json:"full_name"`
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	ErrorKind       string              `json:"error_kind,omitempty"`
	ErrorDetails    string              `json:"error_details,omitempty"`
	IsBaseline      bool                `json:"is_baseline,omitempty"`
	DurationSeconds float64             `json:"duration_seconds"`
	Metrics         MetricsRecord       `json:"metrics"`
	Quality         *model.QualityScore `json:"quality,omitempty"`
	AgentModels     map[string]string   `json:"agent_models,omitempty"`
}

// MetricsRecord is the exported view of aggregated metrics.
type MetricsRecord struct {
	TotalCalls        int     `json:"total_calls"`
	TotalTokens       int     `json:"total_tokens"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalLatencyMs    float64 `json:"total_latency_ms"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
}

// NewResultRecord converts a result for export.
func NewResultRecord(r model.RunResult) ResultRecord {
	return ResultRecord{
		Category:        r.Category,
		Name:            r.Name,
		FullName:        r.FullName(),
		Success:         r.Success,
		Error:           r.Error,
		ErrorKind:       r.ErrorKind,
		ErrorDetails:    r.ErrorDetails,
		IsBaseline:      r.IsBaseline,
		DurationSeconds: r.Duration.Seconds(),
		Metrics: MetricsRecord{
			TotalCalls:        r.Metrics.TotalCalls,
			TotalTokens:       r.Metrics.TotalTokens,
			TotalInputTokens:  r.Metrics.TotalInputTokens,
			TotalOutputTokens: r.Metrics.TotalOutputTokens,
			TotalLatencyMs:    r.Metrics.TotalLatencyMs,
			AverageLatencyMs:  r.Metrics.AverageLatencyMs,
		},
		Quality:     r.QualityScore,
		AgentModels: r.AgentModels,
	}
}

type resultsDocument struct {
	RunID             string         `json:"run_id"`
	Prompt            string         `json:"prompt"`
	Timestamp         time.Time      `json:"timestamp"`
	EvaluationEnabled bool           `json:"evaluation_enabled"`
	Results           []ResultRecord `json:"results"`
}

// JSONExporter writes results.json.
type JSONExporter struct{}

func (j *JSONExporter) Name() string { return "json" }

func (j *JSONExporter) Export(results []model.RunResult, cfg model.RunConfig, runPath string) error {
	prompt := promptOf(results)
	doc := resultsDocument{
		RunID:             cfg.EffectiveRunID(prompt),
		Prompt:            prompt,
		Timestamp:         cfg.Timestamp.UTC(),
		EvaluationEnabled: cfg.Evaluate,
		Results:           make([]ResultRecord, 0, len(results)),
	}
	for _, r := range results {
		doc.Results = append(doc.Results, NewResultRecord(r))
	}

	path := filepath.Join(runPath, ResultsJSONFile)
	if err := store.WriteJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	Logger.Info("JSON results saved", "path", path)
	return nil
}

// JSONLWriter appends one ResultRecord per line.
type JSONLWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONLWriter creates (or truncates) path.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONLWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single result as a JSON line.
func (jw *JSONLWriter) Write(r model.RunResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.encoder.Encode(NewResultRecord(r)); err != nil {
		return err
	}
	return jw.file.Sync()
}

// Close closes the underlying file.
func (jw *JSONLWriter) Close() error {
	return jw.file.Close()
}
