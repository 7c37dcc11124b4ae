/*
PURPOSE:
  Defines the 'models' subcommand.
  Helps debug connectivity and pick model names for the config.

REQUIREMENTS:
  User-specified:
  - List available models.

  Implementation-discovered:
  - Useful validation step before full run.
  - Embedding/reranker models are noise here; config.provider.exclude filters them.

ARCHITECTURE INTEGRATION:
  - Calls: llm.Lister.Models() (Ollama /api/tags, OpenAI /models)

ERROR HANDLING:
  - Returns the provider error (bad URL, auth, unreachable host).

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  forest-bench models --endpoint http://ollama-1:11434

RELATED FILES:
  - internal/llm/factory.go
*/

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-bench/internal/llm"
)

var (
	modelsEndpoint string
	modelsProvider string
	modelsAll      bool
)

var listModelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"list-models"},
	Short:   "List models available on the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loaded
		if modelsEndpoint != "" {
			cfg.Provider.Endpoint = modelsEndpoint
		}
		if modelsProvider != "" {
			cfg.Provider.Name = modelsProvider
		}

		lister, err := llm.NewLister(providerConfig(cfg))
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Querying %s...\n", cfg.Provider.Endpoint)
		models, err := lister.Models(cmd.Context())
		if err != nil {
			return err
		}
		for _, m := range models {
			if !modelsAll && excluded(m, cfg.Provider.Exclude) {
				continue
			}
			fmt.Fprintf(w, "- %s\n", m)
		}
		return nil
	},
}

func excluded(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(listModelsCmd)
	listModelsCmd.Flags().StringVar(&modelsEndpoint, "endpoint", "", "Provider endpoint URL")
	listModelsCmd.Flags().StringVar(&modelsProvider, "provider", "", "Provider: ollama or openai")
	listModelsCmd.Flags().BoolVar(&modelsAll, "all", false, "Include models matching provider.exclude")
}
