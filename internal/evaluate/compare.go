package evaluate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/model"
)

const (
	compareContentLimit = 3000
	compareTruncMarker  = "\n\n[Content truncated for comparison...]"
	verdictPlaceholder  = "See analysis above."
	unknownPrompt       = "Unknown"
)

const compareSystemPrompt = "You are an expert content analyst comparing AI-generated outputs from different approaches.\n" +
	"Your role is to provide objective, detailed comparative analysis highlighting the strengths\n" +
	"and weaknesses of each approach. Be specific and cite examples from the content."

const compareTemplate = `Compare the following benchmark outputs written about: "<<PROMPT>>"

## Benchmark Outputs

<<CONTENT>>

## Metrics Summary

<<METRICS>>

---

## Your Analysis

Provide a detailed comparative analysis. Format your response exactly as:

### ANALYSIS
[3-5 paragraphs comparing the outputs across dimensions like:
- Content depth and comprehensiveness
- Evidence quality (statistics, examples, citations)
- Balance (pros vs cons coverage)
- Practical actionability
- Writing quality and engagement
Cite specific examples from each output to support your analysis.]

### STRENGTHS AND WEAKNESSES
[For each benchmark, list 2-3 key strengths and 2-3 key weaknesses in this format:]

**[benchmark_name]**
Strengths:
- [strength 1]
- [strength 2]
Weaknesses:
- [weakness 1]
- [weakness 2]

### VERDICT
[2-3 sentences summarizing which approach performed better and why, considering both quality and efficiency (tokens/latency).]
`

var (
	wordRe         = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)
	numberedItemRe = regexp.MustCompile(`^\d+[.)]\s*`)

	analysisHeaderRe  = regexp.MustCompile(`(?i)###\s*ANALYSIS\s*\n`)
	swHeaderRe        = regexp.MustCompile(`(?i)###\s*STRENGTHS\s+AND\s+WEAKNESSES\s*\n`)
	verdictHeaderRe   = regexp.MustCompile(`(?i)###\s*VERDICT\s*\n`)
	strengthsStartRe  = regexp.MustCompile(`(?i)###\s*STRENGTHS`)
	verdictStartRe    = regexp.MustCompile(`(?i)###\s*VERDICT`)
	anyHeaderRe       = regexp.MustCompile(`###`)
	boldNameRe        = regexp.MustCompile(`\*\*([^*]+)\*\*[ \t]*\n`)
	strengthsLabelRe  = regexp.MustCompile(`(?i)Strengths:\s*\n`)
	weaknessesLabelRe = regexp.MustCompile(`(?i)Weaknesses:\s*\n`)
	baselineSuffixRe  = regexp.MustCompile(`(?i)\s*\(baseline\)\s*$`)
)

// Comparator produces cross-candidate analyses.
type Comparator struct {
	client llm.Client
	settings
}

// NewComparator creates a comparator backed by client.
func NewComparator(client llm.Client, opts ...Option) *Comparator {
	return &Comparator{client: client, settings: newSettings(opts)}
}

// Compare analyses results that share one prompt (the first result's prompt is used).
// A judge failure is reported inside the analysis, never returned.
func (c *Comparator) Compare(ctx context.Context, results []model.RunResult) model.ComparativeAnalysis {
	prompt := unknownPrompt
	if len(results) > 0 {
		prompt = results[0].Prompt
	}

	comparisons := make([]model.BenchmarkComparison, 0, len(results))
	for _, r := range results {
		comparisons = append(comparisons, model.BenchmarkComparison{
			FullName:       r.FullName(),
			IsBaseline:     r.IsBaseline,
			WordCount:      CountWords(r.Content),
			TotalTokens:    r.Metrics.TotalTokens,
			TotalCalls:     r.Metrics.TotalCalls,
			TotalLatencyMs: r.Metrics.TotalLatencyMs,
			QualityScore:   r.QualityScore,
		})
	}

	user := strings.NewReplacer(
		"<<PROMPT>>", prompt,
		"<<CONTENT>>", contentSection(results),
		"<<METRICS>>", metricsTable(comparisons),
	).Replace(compareTemplate)

	analysis := model.ComparativeAnalysis{Prompt: prompt, Benchmarks: comparisons}

	resp, err := llm.Collect(ctx, c.client, c.request(compareSystemPrompt, user))
	analysis.Timestamp = time.Now().UTC()
	if err != nil {
		analysis.AnalysisText = "Comparative analysis failed: " + err.Error()
		analysis.VerdictText = "Unable to generate verdict due to API error."
		return analysis
	}

	text, verdict, sw := ParseComparison(resp.Text)
	analysis.AnalysisText = text
	analysis.VerdictText = verdict
	for i := range analysis.Benchmarks {
		if entry, ok := sw[normalizeName(analysis.Benchmarks[i].FullName)]; ok {
			analysis.Benchmarks[i].Strengths = entry.Strengths
			analysis.Benchmarks[i].Weaknesses = entry.Weaknesses
		}
	}
	return analysis
}

// CountWords counts \b\w+\b matches.
func CountWords(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(wordRe.FindAllStringIndex(text, -1))
}

func contentSection(results []model.RunResult) string {
	var b strings.Builder
	for _, r := range results {
		marker := ""
		if r.IsBaseline {
			marker = " (BASELINE)"
		}
		content := r.Content
		if content == "" {
			content = "(No content)"
		}
		fmt.Fprintf(&b, "### %s%s\n\n", r.FullName(), marker)
		b.WriteString(truncateRunes(content, compareContentLimit, compareTruncMarker))
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

func metricsTable(rows []model.BenchmarkComparison) string {
	var b strings.Builder
	b.WriteString("| Benchmark | Words | Tokens | API Calls | Latency |\n")
	b.WriteString("|-----------|-------|--------|-----------|---------|\n")
	for _, c := range rows {
		marker := ""
		if c.IsBaseline {
			marker = " *"
		}
		fmt.Fprintf(&b, "| %s%s | %d | %d | %d | %.0fms |\n", c.FullName, marker, c.WordCount, c.TotalTokens, c.TotalCalls, c.TotalLatencyMs)
	}
	b.WriteString("\n*baseline\n")
	return b.String()
}

// StrengthsWeaknesses is one parsed candidate block.
type StrengthsWeaknesses struct {
	Strengths  []string
	Weaknesses []string
}

// ParseComparison splits a judge response into analysis, verdict and per-candidate
// strengths/weaknesses keyed by normalized candidate name.
func ParseComparison(response string) (analysis, verdict string, sw map[string]StrengthsWeaknesses) {
	sw = map[string]StrengthsWeaknesses{}

	if s, ok := section(response, analysisHeaderRe, strengthsStartRe, verdictStartRe); ok {
		analysis = strings.TrimSpace(s)
	}
	if s, ok := section(response, verdictHeaderRe, anyHeaderRe); ok {
		verdict = strings.TrimSpace(s)
	}
	if s, ok := section(response, swHeaderRe, verdictStartRe); ok {
		for name, entry := range parseBlocks(s) {
			sw[name] = entry
		}
	}

	if analysis == "" {
		analysis = response
	}
	if verdict == "" {
		verdict = verdictPlaceholder
	}
	return analysis, verdict, sw
}

// section returns the text after header up to the earliest terminator match, or the end.
func section(text string, header *regexp.Regexp, terminators ...*regexp.Regexp) (string, bool) {
	loc := header.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	body := text[loc[1]:]
	end := len(body)
	for _, t := range terminators {
		if m := t.FindStringIndex(body); m != nil && m[0] < end {
			end = m[0]
		}
	}
	return body[:end], true
}

func parseBlocks(s string) map[string]StrengthsWeaknesses {
	out := map[string]StrengthsWeaknesses{}
	headers := boldNameRe.FindAllStringSubmatchIndex(s, -1)
	for i, h := range headers {
		name := s[h[2]:h[3]]
		end := len(s)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		block := s[h[1]:end]

		sLoc := strengthsLabelRe.FindStringIndex(block)
		if sLoc == nil || strings.TrimSpace(block[:sLoc[0]]) != "" {
			continue
		}
		rest := block[sLoc[1]:]
		wLoc := weaknessesLabelRe.FindStringIndex(rest)
		if wLoc == nil {
			continue
		}
		out[normalizeName(name)] = StrengthsWeaknesses{
			Strengths:  listItems(rest[:wLoc[0]]),
			Weaknesses: listItems(rest[wLoc[1]:]),
		}
	}
	return out
}

// listItems collects "-", "*" and "1." or "1)" items. Continuation lines join the
// current item; a blank line ends it.
func listItems(text string) []string {
	var items []string
	var cur []string
	flush := func() {
		if item := strings.TrimSpace(strings.Join(cur, "\n")); item != "" {
			items = append(items, item)
		}
		cur = nil
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*"):
			flush()
			cur = []string{strings.TrimSpace(trimmed[1:])}
		case numberedItemRe.MatchString(trimmed):
			flush()
			cur = []string{strings.TrimSpace(numberedItemRe.ReplaceAllString(trimmed, ""))}
		case trimmed == "":
			flush()
		case cur != nil:
			cur = append(cur, trimmed)
		}
	}
	flush()
	return items
}

func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "`", "")
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(strings.TrimPrefix(name, "["), "]")
	name = baselineSuffixRe.ReplaceAllString(name, "")
	return strings.ToLower(strings.TrimSpace(name))
}
