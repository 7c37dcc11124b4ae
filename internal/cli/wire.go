package cli

import (
	"fmt"
	"os"

	"github.com/daryltucker/forest-bench/internal/config"
	"github.com/daryltucker/forest-bench/internal/evaluate"
	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/output"
	"github.com/daryltucker/forest-bench/internal/pipelines"
	"github.com/daryltucker/forest-bench/internal/registry"
)

// providerConfig maps the file config onto the llm layer. The API key is read
// from the environment variable named in the config.
func providerConfig(cfg *config.Config) llm.ProviderConfig {
	var key string
	if cfg.Provider.APIKeyEnv != "" {
		key = os.Getenv(cfg.Provider.APIKeyEnv)
	}
	return llm.ProviderConfig{
		Name:          cfg.Provider.Name,
		Endpoint:      cfg.Provider.Endpoint,
		APIKey:        key,
		MaxRetries:    cfg.Provider.MaxRetries,
		RetryDelay:    cfg.Provider.RetryDelay,
		LoadTimeout:   cfg.Provider.LoadTimeout,
		StreamTimeout: cfg.Provider.StreamTimeout,
		KeepAlive:     cfg.Provider.KeepAlive,
		Logger:        output.Logger,
	}
}

// newRegistry registers the built-in candidate groups.
func newRegistry(cfg *config.Config, clients llm.Factory) *registry.Registry {
	reg := registry.New()
	reg.SetLogger(output.Logger)
	pipelines.RegisterAll(reg, pipelines.Deps{
		Clients:  clients,
		Provider: cfg.Provider.Name,
		Models: pipelines.Models{
			Default:       cfg.Provider.Model,
			Researcher:    cfg.Pipelines.Researcher,
			Outliner:      cfg.Pipelines.Outliner,
			Writer:        cfg.Pipelines.Writer,
			PitchWriter:   cfg.Pipelines.PitchWriter,
			Critic:        cfg.Pipelines.Critic,
			MaxIterations: cfg.Pipelines.MaxIterations,
		},
	})
	return reg
}

// newJudges builds the per-candidate judge and the comparator on the evaluation model.
func newJudges(cfg *config.Config, clients llm.Factory) (*evaluate.Judge, *evaluate.Comparator, error) {
	evalModel := cfg.EvaluationModel()
	if evalModel == "" {
		return nil, nil, fmt.Errorf("no evaluation model configured")
	}
	rubric, err := evaluate.RubricByName(cfg.Rubric)
	if err != nil {
		return nil, nil, err
	}
	client, err := clients(evalModel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create evaluation client: %w", err)
	}
	judge := evaluate.NewJudge(client, evaluate.WithRubric(rubric), evaluate.WithModel(evalModel))
	cmp := evaluate.NewComparator(client, evaluate.WithModel(evalModel))
	return judge, cmp, nil
}
