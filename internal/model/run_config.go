package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	runIDTimeLayout = "2006-01-02_150405"
	maxSlugLen      = 30
	fallbackSlug    = "run"
)

// RunConfig controls one run.
type RunConfig struct {
	Filter        string    `json:"filter"`
	RunID         string    `json:"run_id,omitempty"`
	ArtifactsPath string    `json:"artifacts_path"`
	Evaluate      bool      `json:"evaluate"`
	Exporters     []string  `json:"exporters"`
	Timestamp     time.Time `json:"timestamp"`
}

// EffectiveRunID returns RunID when set, else "{UTC timestamp}_{slug(prompt)}".
// A zero Timestamp is treated as now.
func (c RunConfig) EffectiveRunID(prompt string) string {
	if id := strings.TrimSpace(c.RunID); id != "" {
		return id
	}
	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(runIDTimeLayout) + "_" + Slug(prompt)
}

// ValidateRunID rejects ids that would not name a single directory under the
// artifacts root. The empty id is valid (a generated one is used).
func ValidateRunID(id string) error {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return nil
	case id == "." || id == "..":
		return fmt.Errorf("invalid run id %q", id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("invalid run id %q: must not contain path separators", id)
	}
	return nil
}

// Slug derives a filesystem-safe token from free text: lowercase ASCII letters,
// digits and hyphens only, at most 30 characters, no leading or trailing hyphen.
func Slug(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r == ' ' || r == '_':
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackSlug
	}
	return s
}
