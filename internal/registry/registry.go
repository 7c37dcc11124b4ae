/*
PURPOSE:
  Candidate catalog. Groups of candidates register themselves at startup;
  DiscoverAll builds a fresh []CandidateInfo on every call.

REQUIREMENTS:
  User-specified:
  - A group declares category, prompt and optional description.
  - A candidate declares name, optional description and an advisory baseline flag.
  - Glob filtering (* and ?) against "category/name", case-insensitive.
  - Discovery is best-effort: a broken group is skipped, never fatal.

  Implementation-discovered:
  - Sources are functions so a group can fail (or panic) while being built
    without taking the whole catalog down.
  - Duplicate full names: first registration wins.

ARCHITECTURE INTEGRATION:
  - Filled by: internal/pipelines (RegisterAll), tests
  - Consumed by: internal/engine, internal/cli (list)

ERROR HANDLING:
  - Source errors and panics are logged at debug level and skipped.
  - Filter returns an error only when the compiled pattern is invalid (it cannot be,
    every metacharacter is quoted, but regexp.Compile is still checked).

USAGE:
  registry.Default.RegisterGroup(registry.Group{Category: "chaining", Prompt: "...", Candidates: ...})
  all := registry.Default.DiscoverAll()
  some, err := registry.Filter(all, "chaining/*")

RELATED FILES:
  - internal/registry/invoke.go
  - internal/engine/runner.go
*/

package registry

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Method declares one candidate inside a group.
type Method struct {
	Name        string
	Description string
	Baseline    bool
	// Handle is the invocable. It must match one of the supported signatures
	// (see Func, PromptFunc, TextFunc, PromptTextFunc); anything else fails at run time.
	Handle any
	// New, when set, builds a fresh handle for every run. It takes precedence over Handle.
	New func() (any, error)
}

// Group declares a category of candidates sharing one prompt.
type Group struct {
	Category    string
	Prompt      string
	Description string
	Candidates  []Method
}

// Source yields a group. It may fail; failures are skipped during discovery.
type Source func() (Group, error)

// CandidateInfo is one discovered candidate.
type CandidateInfo struct {
	Category    string
	Name        string
	Prompt      string
	Description string
	IsBaseline  bool
	New         func() (any, error)
}

// FullName is "category/name".
func (c CandidateInfo) FullName() string {
	return c.Category + "/" + c.Name
}

// Registry is a list of registered sources.
type Registry struct {
	mu      sync.Mutex
	sources []Source
	logger  *slog.Logger
}

// Default is the process-wide registry.
var Default = New()

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// SetLogger sets the logger used for skipped sources.
func (r *Registry) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// Register adds a group source.
func (r *Registry) Register(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
}

// RegisterGroup adds a static group.
func (r *Registry) RegisterGroup(g Group) {
	r.Register(func() (Group, error) { return g, nil })
}

// DiscoverAll evaluates every source and returns one CandidateInfo per valid method.
// Order follows registration; callers must not depend on it.
func (r *Registry) DiscoverAll() []CandidateInfo {
	r.mu.Lock()
	sources := append([]Source(nil), r.sources...)
	logger := r.logger
	r.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}

	var out []CandidateInfo
	seen := map[string]bool{}
	for i, src := range sources {
		g, err := loadSource(src)
		if err != nil {
			logger.Debug("Skipping candidate source", "index", i, "error", err)
			continue
		}
		if strings.TrimSpace(g.Category) == "" || strings.TrimSpace(g.Prompt) == "" {
			logger.Debug("Skipping candidate group without category or prompt", "index", i, "category", g.Category)
			continue
		}
		for _, m := range g.Candidates {
			if strings.TrimSpace(m.Name) == "" {
				logger.Debug("Skipping unnamed candidate", "category", g.Category)
				continue
			}
			info := CandidateInfo{
				Category:    g.Category,
				Name:        m.Name,
				Prompt:      g.Prompt,
				Description: m.Description,
				IsBaseline:  m.Baseline,
				New:         constructor(m),
			}
			if info.Description == "" {
				info.Description = g.Description
			}
			if seen[info.FullName()] {
				logger.Warn("Skipping duplicate candidate", "candidate", info.FullName())
				continue
			}
			seen[info.FullName()] = true
			out = append(out, info)
		}
	}
	return out
}

// Discover returns the candidates matching pattern.
func (r *Registry) Discover(pattern string) ([]CandidateInfo, error) {
	return Filter(r.DiscoverAll(), pattern)
}

func loadSource(src Source) (g Group, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("source panicked: %v", rec)
		}
	}()
	return src()
}

func constructor(m Method) func() (any, error) {
	if m.New != nil {
		return m.New
	}
	h := m.Handle
	return func() (any, error) { return h, nil }
}

// Filter returns the candidates whose FullName matches the glob pattern.
// An empty pattern or "*" returns every candidate.
func Filter(candidates []CandidateInfo, pattern string) ([]CandidateInfo, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return candidates, nil
	}
	re, err := globRegexp(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	var out []CandidateInfo
	for _, c := range candidates {
		if re.MatchString(c.FullName()) {
			out = append(out, c)
		}
	}
	return out, nil
}

func globRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
