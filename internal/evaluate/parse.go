package evaluate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/daryltucker/forest-bench/internal/model"
)

const (
	defaultDimensionScore = 3
	noReasoning           = "No detailed reasoning provided"
	evalContentLimit      = 8000
)

var (
	agentHeaderRe = regexp.MustCompile(`\n*=== \[.*?\] ===\n*`)
	footerRe      = regexp.MustCompile(`(?s)\n\n[✓✗].*$`)

	reasoningRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)reasoning\s*[:\-=]\s*(.+?)(?:\n\n|$)`),
		regexp.MustCompile(`(?is)reasoning\s*[:\-=]\s*(.+)`),
		regexp.MustCompile(`(?is)\*\*reasoning\*\*\s*[:\-=]\s*(.+?)(?:\n\n|$)`),
	}

	scoreRes = buildScorePatterns()
)

func buildScorePatterns() map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(model.DimensionNames))
	for _, d := range model.DimensionNames {
		q := regexp.QuoteMeta(d)
		out[d] = []*regexp.Regexp{
			regexp.MustCompile(`(?i)` + q + `\s*[:\-=]\s*(\d)`),
			regexp.MustCompile(`(?i)` + q + `\s*\(?\s*(\d)\s*/\s*5\s*\)?`),
			regexp.MustCompile(`(?i)"?` + q + `"?\s*:\s*(\d)`),
		}
	}
	return out
}

// ParseScore extracts a complete QualityScore from free judge text.
// Every dimension ends up in [1,5]; unmatched dimensions are 3.
func ParseScore(text string) model.QualityScore {
	var q model.QualityScore
	for _, d := range model.DimensionNames {
		q.Set(d, parseDimension(text, d))
	}
	q.Reasoning = parseReasoning(text)
	return q
}

func parseDimension(text, dim string) int {
	for _, re := range scoreRes[dim] {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return clamp(n, 1, 5)
	}
	return defaultDimensionScore
}

func parseReasoning(text string) string {
	for _, re := range reasoningRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if r := strings.TrimSpace(m[1]); r != "" {
			return r
		}
	}
	return noReasoning
}

// CleanContent removes agent section headers and a trailing ✓/✗ status footer.
func CleanContent(content string) string {
	content = footerRe.ReplaceAllString(content, "")
	content = agentHeaderRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// truncateRunes cuts s to limit characters and appends marker when it did.
func truncateRunes(s string, limit int, marker string) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + marker
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
