package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/store"
)

// Files written by WriteEvaluation.
const (
	EvaluationJSONFile = "evaluation.json"
	EvaluationMDFile   = "evaluation.md"
)

// EvaluatedOutput is one stored candidate output scored after the fact.
// Quality is nil when the judge could not be reached at all.
type EvaluatedOutput struct {
	Category  string              `json:"category"`
	Benchmark string              `json:"benchmark"`
	Prompt    string              `json:"prompt,omitempty"`
	Quality   *model.QualityScore `json:"quality"`
}

// FullName is "category/benchmark".
func (e EvaluatedOutput) FullName() string { return e.Category + "/" + e.Benchmark }

// Evaluation is the result of re-scoring a run directory.
// Prompt is empty when the outputs were judged against different prompts.
type Evaluation struct {
	Prompt    string
	Model     string
	Timestamp time.Time
	Outputs   []EvaluatedOutput
}

// WriteEvaluation writes evaluation.json and evaluation.md into runPath.
func WriteEvaluation(ev Evaluation, runPath string) error {
	outputs := ev.Outputs
	if outputs == nil {
		outputs = []EvaluatedOutput{}
	}
	jsonPath := filepath.Join(runPath, EvaluationJSONFile)
	if err := store.WriteJSONAtomic(jsonPath, outputs); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}

	var b strings.Builder
	if ev.Prompt != "" {
		fmt.Fprintf(&b, "# Evaluation Results: %s\n\n", ev.Prompt)
	} else {
		b.WriteString("# Evaluation Results\n\n")
	}
	fmt.Fprintf(&b, "**Evaluation Model:** %s\n", ev.Model)
	fmt.Fprintf(&b, "**Timestamp:** %s UTC\n\n", ev.Timestamp.UTC().Format("2006-01-02 15:04:05"))

	if ev.Prompt == "" {
		b.WriteString("## Prompts\n\n")
		seen := map[string]bool{}
		for _, o := range ev.Outputs {
			if o.Prompt == "" || seen[o.Category] {
				continue
			}
			seen[o.Category] = true
			fmt.Fprintf(&b, "- **%s:** %s\n", o.Category, o.Prompt)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Quality Scores\n\n")
	writeQualityHeader(&b)
	for _, o := range ev.Outputs {
		writeQualityRow(&b, o.FullName(), o.Quality)
	}
	b.WriteString("\n" + qualityLegend + "\n\n")

	var reasoned []EvaluatedOutput
	for _, o := range ev.Outputs {
		if o.Quality != nil && o.Quality.Reasoning != "" {
			reasoned = append(reasoned, o)
		}
	}
	if len(reasoned) > 0 {
		b.WriteString("## Evaluation Reasoning\n\n")
		for _, o := range reasoned {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", o.FullName(), o.Quality.Reasoning)
		}
	}
	b.WriteString("---\n\n*Generated by forest-bench evaluator*\n")

	mdPath := filepath.Join(runPath, EvaluationMDFile)
	if err := store.WriteFileAtomic(mdPath, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to write %s: %w", mdPath, err)
	}
	Logger.Info("Evaluation saved", "json", jsonPath, "markdown", mdPath)
	return nil
}

// EvaluationSummary prints the per-dimension score table for a re-scored run.
func (c *ConsoleExporter) EvaluationSummary(ev Evaluation) error {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(c.Banner("EVALUATION SUMMARY"))
	b.WriteString("\n\n")
	headers := []string{"Benchmark", "Status", "C", "S", "A", "E", "Ev", "B", "Ac", "D", "Avg"}
	rows := make([][]string, 0, len(ev.Outputs))
	for _, o := range ev.Outputs {
		q := o.Quality
		if q == nil {
			rows = append(rows, []string{o.FullName(), "evaluation failed", "-", "-", "-", "-", "-", "-", "-", "-", "-"})
			continue
		}
		row := []string{o.FullName(), "OK"}
		for _, v := range q.Dimensions() {
			row = append(row, strconv.Itoa(v))
		}
		rows = append(rows, append(row, fmt.Sprintf("%.1f", q.Average())))
	}
	b.WriteString(c.Table(headers, rows, 1, func(row int) bool { return ev.Outputs[row].Quality == nil }))
	b.WriteString("\n\n")
	b.WriteString(c.muted.Render("C=Completeness S=Structure A=Accuracy E=Engagement Ev=Evidence B=Balance Ac=Actionability D=Depth"))
	b.WriteString("\n")

	_, err := io.WriteString(c.w, b.String())
	return err
}
