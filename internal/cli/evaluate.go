package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-bench/internal/engine"
	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/output"
)

var (
	evalRunModel    string
	evalRunRubric   string
	evalRunEndpoint string
	evalRunProvider string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <run-dir>",
	Short: "Score the stored outputs of an existing run",
	Long: `Reads run-config.json and every <category>/<name>/output.md in the run directory,
scores each output with the judge model, and writes evaluation.json and evaluation.md.`,
	Example: `  forest-bench evaluate artifacts/2026-01-02_030405_the-benefits-of-test-driven --model llama3.1:70b`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loaded
		if evalRunModel != "" {
			cfg.Provider.EvaluationModel = evalRunModel
		}
		if evalRunRubric != "" {
			cfg.Rubric = evalRunRubric
		}
		if evalRunEndpoint != "" {
			cfg.Provider.Endpoint = evalRunEndpoint
		}
		if evalRunProvider != "" {
			cfg.Provider.Name = evalRunProvider
		}

		clients, err := llm.NewFactory(providerConfig(cfg))
		if err != nil {
			return err
		}
		judge, _, err := newJudges(cfg, clients)
		if err != nil {
			return err
		}

		runPath := args[0]
		output.Logger.Info("Evaluating run", "path", runPath, "model", cfg.EvaluationModel(), "rubric", judge.Rubric().Name)
		ev, err := engine.EvaluateRun(cmd.Context(), runPath, judge, cfg.EvaluationModel())
		if err != nil {
			return err
		}

		console := output.NewConsoleExporter(cmd.OutOrStdout())
		if err := console.EvaluationSummary(ev); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nEvaluation saved to: %s\n", runPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalRunModel, "model", "", "Judge model (default: provider.evaluation_model)")
	evaluateCmd.Flags().StringVar(&evalRunRubric, "rubric", "", "Judge rubric: content or agent-task")
	evaluateCmd.Flags().StringVar(&evalRunEndpoint, "endpoint", "", "Provider endpoint URL")
	evaluateCmd.Flags().StringVar(&evalRunProvider, "provider", "", "Provider: ollama or openai")
}
