package output

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/store"
)

// AnalysisFile is written by WriteAnalysis.
const AnalysisFile = "analysis.md"

// WriteAnalysis renders a comparative analysis to <runPath>/analysis.md and returns the path.
func WriteAnalysis(a model.ComparativeAnalysis, runPath string) (string, error) {
	return WriteAnalyses([]model.ComparativeAnalysis{a}, runPath)
}

// WriteAnalyses writes one analysis.md holding a section per prompt group.
func WriteAnalyses(analyses []model.ComparativeAnalysis, runPath string) (string, error) {
	var b strings.Builder
	for i, a := range analyses {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		renderAnalysis(&b, a)
	}
	b.WriteString("---\n\n*Generated by forest-bench comparative evaluator*\n")

	path := filepath.Join(runPath, AnalysisFile)
	if err := store.WriteFileAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	Logger.Info("Analysis report saved", "path", path, "groups", len(analyses))
	return path, nil
}

func renderAnalysis(b *strings.Builder, a model.ComparativeAnalysis) {
	fmt.Fprintf(b, "# Benchmark Analysis: %s\n\n", a.Prompt)
	fmt.Fprintf(b, "**Generated:** %s UTC\n\n", a.Timestamp.UTC().Format("2006-01-02 15:04:05"))

	b.WriteString("## Metrics Comparison\n\n")
	b.WriteString("| Benchmark | Words | Tokens | API Calls | Latency | Avg Quality |\n")
	b.WriteString("|-----------|------:|-------:|----------:|--------:|------------:|\n")

	var base *model.BenchmarkComparison
	for i := range a.Benchmarks {
		if a.Benchmarks[i].IsBaseline && base == nil {
			base = &a.Benchmarks[i]
		}
	}
	for _, bm := range a.Benchmarks {
		marker := ""
		if bm.IsBaseline {
			marker = " *"
		}
		fmt.Fprintf(b, "| %s%s | %s | %s | %d | %sms | %s |\n",
			bm.FullName, marker, thousands(bm.WordCount), thousands(bm.TotalTokens), bm.TotalCalls,
			thousands(int(math.Round(bm.TotalLatencyMs))), qualityLabel(bm.QualityScore))
	}
	b.WriteString("\n")
	if base != nil {
		b.WriteString("\\* baseline\n\n")
	}

	if base != nil && len(a.Benchmarks) > 1 {
		b.WriteString("### Comparison vs Baseline\n\n")
		for _, bm := range a.Benchmarks {
			if bm.IsBaseline {
				continue
			}
			words := bm.WordCount - base.WordCount
			tokens := bm.TotalTokens - base.TotalTokens
			latency := bm.TotalLatencyMs - base.TotalLatencyMs

			fmt.Fprintf(b, "**%s** vs **%s**:\n\n", bm.FullName, base.FullName)
			fmt.Fprintf(b, "- Words: %s (%s%%)\n", signedInt(words), signedFloat(percentOf(float64(words), float64(base.WordCount))))
			fmt.Fprintf(b, "- Tokens: %s (%s%%)\n", signedInt(tokens), signedFloat(percentOf(float64(tokens), float64(base.TotalTokens))))
			fmt.Fprintf(b, "- Latency: %sms (%s%%)\n", signedInt(int(math.Round(latency))), signedFloat(percentOf(latency, base.TotalLatencyMs)))
			fmt.Fprintf(b, "- API Calls: %s\n", signedInt(bm.TotalCalls-base.TotalCalls))
			if bm.QualityScore != nil && base.QualityScore != nil {
				fmt.Fprintf(b, "- Quality: %s\n", signedFloat(bm.QualityScore.Average()-base.QualityScore.Average()))
			}
			b.WriteString("\n")
		}
	}

	var scored []model.BenchmarkComparison
	for _, bm := range a.Benchmarks {
		if bm.QualityScore != nil {
			scored = append(scored, bm)
		}
	}
	if len(scored) > 0 {
		b.WriteString("## Quality Scores\n\n")
		writeQualityHeader(b)
		for _, bm := range scored {
			writeQualityRow(b, bm.FullName, bm.QualityScore)
		}
		b.WriteString("\n*Scores: 1=Poor, 5=Excellent*\n\n")
	}

	var judged []model.BenchmarkComparison
	for _, bm := range a.Benchmarks {
		if len(bm.Strengths) > 0 || len(bm.Weaknesses) > 0 {
			judged = append(judged, bm)
		}
	}
	if len(judged) > 0 {
		b.WriteString("## Strengths & Weaknesses\n\n")
		for _, bm := range judged {
			fmt.Fprintf(b, "### %s\n\n", bm.FullName)
			writeBullets(b, "Strengths", bm.Strengths)
			writeBullets(b, "Weaknesses", bm.Weaknesses)
		}
	}

	b.WriteString("## Comparative Analysis\n\n")
	b.WriteString(a.AnalysisText)
	b.WriteString("\n\n## Verdict\n\n")
	b.WriteString(a.VerdictText)
	b.WriteString("\n\n")
}

func writeBullets(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func percentOf(diff, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return diff / base * 100
}

// thousands formats n with comma group separators.
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
