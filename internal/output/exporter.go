package output

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/daryltucker/forest-bench/internal/model"
)

// Exporter renders a result set. Exporters only read results.
type Exporter interface {
	Name() string
	Export(results []model.RunResult, cfg model.RunConfig, runPath string) error
}

// ByName resolves exporter names. Console output goes to w. Unknown names are
// logged and skipped; duplicates are kept once.
func ByName(names []string, w io.Writer) []Exporter {
	var out []Exporter
	seen := map[string]bool{}
	for _, n := range names {
		var e Exporter
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "console":
			e = NewConsoleExporter(w)
		case "markdown", "md":
			e = &MarkdownExporter{}
		case "json":
			e = &JSONExporter{}
		case "csv":
			e = &CSVExporter{}
		default:
			Logger.Warn("Unknown exporter, skipping", "exporter", n)
			continue
		}
		if seen[e.Name()] {
			continue
		}
		seen[e.Name()] = true
		out = append(out, e)
	}
	return out
}

func promptOf(results []model.RunResult) string {
	if len(results) == 0 {
		return "N/A"
	}
	return results[0].Prompt
}

func statusLabel(r model.RunResult) string {
	if r.Success {
		return "OK"
	}
	return "FAIL"
}

func qualityLabel(q *model.QualityScore) string {
	if q == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f/5", q.Average())
}

// delta is one candidate compared against the baseline.
type delta struct {
	Tokens     int
	TokensPct  float64
	LatencyS   float64
	LatencyPct float64
	Calls      int
	Quality    *float64
}

func compareToBaseline(r, base model.RunResult) delta {
	d := delta{
		Tokens:   r.Metrics.TotalTokens - base.Metrics.TotalTokens,
		LatencyS: r.Duration.Seconds() - base.Duration.Seconds(),
		Calls:    r.Metrics.TotalCalls - base.Metrics.TotalCalls,
	}
	if base.Metrics.TotalTokens > 0 {
		d.TokensPct = float64(d.Tokens) / float64(base.Metrics.TotalTokens) * 100
	}
	if base.Duration > 0 {
		d.LatencyPct = d.LatencyS / base.Duration.Seconds() * 100
	}
	if r.QualityScore != nil && base.QualityScore != nil {
		q := r.QualityScore.Average() - base.QualityScore.Average()
		d.Quality = &q
	}
	return d
}

// signedInt renders +n, -n or 0.
func signedInt(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// signedFloat renders +x.y, -x.y or 0.
func signedFloat(f float64) string {
	f = math.Round(f*10) / 10
	switch {
	case f > 0:
		return fmt.Sprintf("+%.1f", f)
	case f < 0:
		return fmt.Sprintf("%.1f", f)
	default:
		return "0"
	}
}
