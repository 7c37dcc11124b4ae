/*
PURPOSE:
  Writes run results to a CSV file (results.csv).
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV.

  Implementation-discovered:
  - Spreadsheet users want one flat row per candidate: metrics plus every quality dimension.
  - Overwrite on each export; a run directory only ever has one results.csv.

ARCHITECTURE INTEGRATION:
  - CSVExporter selected by: ByName("csv")
  - Consumes: internal/model.RunResult

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex; the writer may be shared.

USAGE:
  w, err := output.NewCSVWriter("results.csv")
  w.Write(result)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Write() mapping when RunResult changes.
*/

package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/daryltucker/forest-bench/internal/model"
)

// ResultsCSVFile is written by CSVExporter.
const ResultsCSVFile = "results.csv"

var csvHeader = append([]string{
	"category", "name", "baseline", "success", "duration_s",
	"calls", "input_tokens", "output_tokens", "total_tokens", "latency_ms",
}, append(append([]string{}, model.DimensionNames...), "quality_avg", "agent_models", "error")...)

// CSVWriter handles writing results to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	// Write Header
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single result to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(r model.RunResult) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := []string{
		r.Category,
		r.Name,
		strconv.FormatBool(r.IsBaseline),
		strconv.FormatBool(r.Success),
		fmt.Sprintf("%.4f", r.Duration.Seconds()),
		strconv.Itoa(r.Metrics.TotalCalls),
		strconv.Itoa(r.Metrics.TotalInputTokens),
		strconv.Itoa(r.Metrics.TotalOutputTokens),
		strconv.Itoa(r.Metrics.TotalTokens),
		fmt.Sprintf("%.1f", r.Metrics.TotalLatencyMs),
	}
	if q := r.QualityScore; q != nil {
		for _, d := range q.Dimensions() {
			record = append(record, strconv.Itoa(d))
		}
		record = append(record, fmt.Sprintf("%.2f", q.Average()))
	} else {
		for range model.DimensionNames {
			record = append(record, "")
		}
		record = append(record, "")
	}

	agents := ""
	if len(r.AgentModels) > 0 {
		b, _ := json.Marshal(r.AgentModels)
		agents = string(b)
	}
	record = append(record, agents, r.Error)

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}

// CSVExporter writes results.csv.
type CSVExporter struct{}

func (c *CSVExporter) Name() string { return "csv" }

func (c *CSVExporter) Export(results []model.RunResult, cfg model.RunConfig, runPath string) error {
	path := filepath.Join(runPath, ResultsCSVFile)
	w, err := NewCSVWriter(path)
	if err != nil {
		return fmt.Errorf("failed to init CSV writer at %s: %w", path, err)
	}
	for _, r := range results {
		if err := w.Write(r); err != nil {
			w.Close()
			return fmt.Errorf("failed to write result to CSV: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	Logger.Info("CSV results saved", "path", path)
	return nil
}
