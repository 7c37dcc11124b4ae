// Package pipelines holds the built-in candidate groups. Each candidate builds its
// model clients through the configured factory and wraps them with metrics.Instrument,
// so every model call lands in the candidate's metrics scope.
package pipelines

import (
	"context"
	"fmt"
	"strings"

	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/metrics"
	"github.com/daryltucker/forest-bench/internal/registry"
)

// Models selects the model per agent role. Empty roles fall back to Default.
type Models struct {
	Default       string
	Researcher    string
	Outliner      string
	Writer        string
	PitchWriter   string
	Critic        string
	MaxIterations int
}

func (m Models) pick(role string) string {
	if strings.TrimSpace(role) != "" {
		return role
	}
	return m.Default
}

// Deps are what the built-in candidates need at construction time.
type Deps struct {
	Clients  llm.Factory
	Provider string
	Models   Models
}

// RegisterAll adds every built-in group to reg.
func RegisterAll(reg *registry.Registry, d Deps) {
	reg.Register(PromptChaining(d))
	reg.Register(Reflection(d))
}

// agent is one role bound to an instrumented client.
type agent struct {
	name   string
	model  string
	client llm.Client
}

func (d Deps) agent(name, model string) (agent, error) {
	if d.Clients == nil {
		return agent{}, fmt.Errorf("no model client factory configured")
	}
	if strings.TrimSpace(model) == "" {
		return agent{}, fmt.Errorf("no model configured for %s", name)
	}
	c, err := d.Clients(model)
	if err != nil {
		return agent{}, fmt.Errorf("client for %s: %w", name, err)
	}
	label := d.Provider
	if label == "" {
		label = "ollama"
	}
	return agent{name: name, model: model, client: metrics.Instrument(c, label)}, nil
}

func (a agent) ask(ctx context.Context, messages ...llm.Message) (string, error) {
	resp, err := a.client.Chat(ctx, llm.Request{Model: a.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.name, err)
	}
	return resp.Text, nil
}

func agentModels(agents ...agent) map[string]string {
	m := make(map[string]string, len(agents))
	for _, a := range agents {
		m[a.name] = a.model
	}
	return m
}

func dedent(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "\t")
	}
	return strings.Join(lines, "\n")
}
