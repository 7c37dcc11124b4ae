package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/daryltucker/forest-bench/internal/model"
)

var (
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorError   = lipgloss.Color("#f7768e")
	colorMuted   = lipgloss.Color("#565f89")
)

// ConsoleExporter prints a summary table and baseline deltas.
type ConsoleExporter struct {
	w      io.Writer
	banner lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
}

// NewConsoleExporter writes to w (stdout when nil). Colors are only emitted when w is a terminal.
func NewConsoleExporter(w io.Writer) *ConsoleExporter {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &ConsoleExporter{
		w: w,
		banner: r.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorPrimary).
			Bold(true).
			Width(70).
			Align(lipgloss.Center),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		ok:     r.NewStyle().Foreground(colorSuccess).Bold(true),
		fail:   r.NewStyle().Foreground(colorError).Bold(true),
		muted:  r.NewStyle().Foreground(colorMuted),
	}
}

func (c *ConsoleExporter) Name() string { return "console" }

// Banner renders a framed title line.
func (c *ConsoleExporter) Banner(title string) string {
	return c.banner.Render(title)
}

func (c *ConsoleExporter) Export(results []model.RunResult, cfg model.RunConfig, runPath string) error {
	var b strings.Builder
	prompt := promptOf(results)

	b.WriteString("\n")
	b.WriteString(c.Banner("BENCHMARK RESULTS SUMMARY"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Prompt: %s\n", prompt)
	fmt.Fprintf(&b, "Run ID: %s\n\n", cfg.EffectiveRunID(prompt))

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.FullName(), statusLabel(r), strconv.Itoa(r.Metrics.TotalCalls), strconv.Itoa(r.Metrics.TotalTokens),
			fmt.Sprintf("%.1fs", r.Duration.Seconds()), qualityLabel(r.QualityScore),
		})
	}
	b.WriteString(c.Table([]string{"Benchmark", "Status", "Calls", "Tokens", "Latency", "Quality"}, rows, 1,
		func(row int) bool { return !results[row].Success }))
	b.WriteString("\n\n")

	var withModels []model.RunResult
	for _, r := range results {
		if len(r.AgentModels) > 0 {
			withModels = append(withModels, r)
		}
	}
	if len(withModels) > 0 {
		b.WriteString("Agent Models:\n\n")
		for _, r := range withModels {
			fmt.Fprintf(&b, "  %s:\n", r.FullName())
			for _, agent := range sortedKeys(r.AgentModels) {
				fmt.Fprintf(&b, "    %-15s → %s\n", agent, r.AgentModels[agent])
			}
		}
		b.WriteString("\n")
	}

	if base, ok := model.Baseline(results); ok && len(results) > 1 {
		b.WriteString("Comparison with baseline:\n\n")
		for _, r := range results {
			if r.IsBaseline {
				continue
			}
			d := compareToBaseline(r, base)
			fmt.Fprintf(&b, "  %s vs %s:\n", r.FullName(), base.FullName())
			fmt.Fprintf(&b, "    Tokens: %s (%s%%)\n", signedInt(d.Tokens), signedFloat(d.TokensPct))
			fmt.Fprintf(&b, "    Latency: %ss (%s%%)\n", signedFloat(d.LatencyS), signedFloat(d.LatencyPct))
			fmt.Fprintf(&b, "    API Calls: %s\n", signedInt(d.Calls))
			if d.Quality != nil {
				fmt.Fprintf(&b, "    Quality: %s\n", signedFloat(*d.Quality))
			}
			b.WriteString("\n")
		}
	}

	if runPath != "" {
		b.WriteString(c.muted.Render("Run saved to: " + runPath))
		b.WriteString("\n")
	}

	_, err := io.WriteString(c.w, b.String())
	return err
}

// Table renders rows under headers with the console styles. When statusCol is
// a valid column, its cells are drawn in the error color for rows where failed
// reports true and in the success color otherwise.
func (c *ConsoleExporter) Table(headers []string, rows [][]string, statusCol int, failed func(row int) bool) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return c.header
			case col == statusCol && failed != nil && failed(row):
				return c.fail.Padding(0, 1)
			case col == statusCol:
				return c.ok.Padding(0, 1)
			}
			return c.cell
		}).
		Render()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
