package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/store"
)

// ComparisonFile is written by MarkdownExporter.
const ComparisonFile = "comparison.md"

const qualityLegend = "*Compl=Completeness, Struct=Structure, Accur=Accuracy, Engage=Engagement, Evid=Evidence, Bal=Balance, Action=Actionability*"

// MarkdownExporter writes comparison.md.
type MarkdownExporter struct{}

func (m *MarkdownExporter) Name() string { return "markdown" }

func (m *MarkdownExporter) Export(results []model.RunResult, cfg model.RunConfig, runPath string) error {
	var b strings.Builder
	prompt := promptOf(results)

	fmt.Fprintf(&b, "# Benchmark Results: %s\n\n", prompt)
	fmt.Fprintf(&b, "**Run ID:** %s\n", cfg.EffectiveRunID(prompt))
	fmt.Fprintf(&b, "**Timestamp:** %s UTC\n\n", cfg.Timestamp.UTC().Format("2006-01-02 15:04:05"))

	b.WriteString("## Results\n\n")
	b.WriteString("| Benchmark | Status | API Calls | Tokens | Latency | Quality |\n")
	b.WriteString("|-----------|--------|-----------|--------|---------|---------|\n")
	for _, r := range results {
		marker := ""
		if r.IsBaseline {
			marker = " (baseline)"
		}
		fmt.Fprintf(&b, "| %s%s | %s | %d | %d | %.1fs | %s |\n",
			r.FullName(), marker, statusLabel(r), r.Metrics.TotalCalls, r.Metrics.TotalTokens,
			r.Duration.Seconds(), qualityLabel(r.QualityScore))
	}
	b.WriteString("\n")

	var failed []model.RunResult
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		b.WriteString("## Errors\n\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "### %s\n\n", r.FullName())
			fmt.Fprintf(&b, "**Error:** %s\n\n", r.Error)
			if r.ErrorKind != "" {
				fmt.Fprintf(&b, "**Kind:** %s\n\n", r.ErrorKind)
			}
			if r.ErrorDetails != "" {
				b.WriteString("**Stack Trace:**\n```\n")
				b.WriteString(r.ErrorDetails)
				b.WriteString("\n```\n\n")
			}
		}
	}

	if base, ok := model.Baseline(results); ok && len(results) > 1 {
		b.WriteString("## Comparison\n\n")
		fmt.Fprintf(&b, "Baseline: **%s**\n\n", base.FullName())
		for _, r := range results {
			if r.IsBaseline {
				continue
			}
			d := compareToBaseline(r, base)
			fmt.Fprintf(&b, "### %s\n\n", r.FullName())
			fmt.Fprintf(&b, "- **Tokens:** %s (%s%%)\n", signedInt(d.Tokens), signedFloat(d.TokensPct))
			fmt.Fprintf(&b, "- **Latency:** %ss\n", signedFloat(d.LatencyS))
			fmt.Fprintf(&b, "- **API Calls:** %s\n", signedInt(d.Calls))
			if d.Quality != nil {
				fmt.Fprintf(&b, "- **Quality:** %s\n", signedFloat(*d.Quality))
			}
			b.WriteString("\n")
		}
	}

	var withModels []model.RunResult
	for _, r := range results {
		if len(r.AgentModels) > 0 {
			withModels = append(withModels, r)
		}
	}
	if len(withModels) > 0 {
		b.WriteString("## Agent Models\n\n")
		for _, r := range withModels {
			fmt.Fprintf(&b, "### %s\n\n", r.FullName())
			b.WriteString("| Agent | Model |\n|-------|-------|\n")
			for _, agent := range sortedKeys(r.AgentModels) {
				fmt.Fprintf(&b, "| %s | `%s` |\n", agent, r.AgentModels[agent])
			}
			b.WriteString("\n")
		}
	}

	var scored []model.RunResult
	for _, r := range results {
		if r.QualityScore != nil {
			scored = append(scored, r)
		}
	}
	if len(scored) > 0 {
		b.WriteString("## Quality Breakdown\n\n")
		writeQualityHeader(&b)
		for _, r := range scored {
			writeQualityRow(&b, r.FullName(), r.QualityScore)
		}
		b.WriteString("\n" + qualityLegend + "\n\n")
	}

	path := filepath.Join(runPath, ComparisonFile)
	if err := store.WriteFileAtomic(path, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	Logger.Info("Markdown report saved", "path", path)
	return nil
}

func writeQualityHeader(b *strings.Builder) {
	b.WriteString("| Benchmark | Compl | Struct | Accur | Engage | Evid | Bal | Action | Depth | **Avg** |\n")
	b.WriteString("|-----------|:-----:|:------:|:-----:|:------:|:----:|:---:|:------:|:-----:|:-------:|\n")
}

func writeQualityRow(b *strings.Builder, name string, q *model.QualityScore) {
	if q == nil {
		fmt.Fprintf(b, "| %s | - | - | - | - | - | - | - | - | **-** |\n", name)
		return
	}
	fmt.Fprintf(b, "| %s | %d | %d | %d | %d | %d | %d | %d | %d | **%.1f** |\n",
		name, q.Completeness, q.Structure, q.Accuracy, q.Engagement, q.EvidenceQuality,
		q.Balance, q.Actionability, q.Depth, q.Average())
}
