/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the benchmark suite for the candidates matching the filter.

REQUIREMENTS:
  User-specified:
  - Run the benchmarks.
  - specific flags for overrides.
  - Ctrl-C stops after the current candidate; finished results are still saved.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Suite.Run()
  - Uses: internal/config, internal/history, internal/output

ERROR HANDLING:
  - Returns error if config is invalid, the filter matches nothing, or the suite fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Validate -> Suite.Run.

USAGE:
  forest-bench run --filter 'reflection/*' --evaluate

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/wire.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-bench/internal/engine"
	"github.com/daryltucker/forest-bench/internal/history"
	"github.com/daryltucker/forest-bench/internal/llm"
	"github.com/daryltucker/forest-bench/internal/model"
	"github.com/daryltucker/forest-bench/internal/output"
	"github.com/daryltucker/forest-bench/internal/store"
)

var (
	filterOverride    string
	runIDOverride     string
	artifactsOverride string
	exportersOverride []string
	modelOverride     string
	evalModelOverride string
	endpointOverride  string
	providerOverride  string
	rubricOverride    string
	evaluateFlag      bool
	noHistoryFlag     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark suite",
	Long: `Runs every candidate matching the filter, one at a time, against its group's prompt.
The process follows a strict protocol:
1. Discovery: Collects registered candidates and applies the glob filter.
2. Execution: Builds a fresh instance per candidate and records every model call it makes.
3. Scoring (--evaluate): An LLM judge scores each output; with more than one result a
   comparative analysis is written to analysis.md.

Outputs are saved under <artifacts>/<run-id>/ as each candidate finishes.`,
	Example: `  # Run with defaults (uses forest_bench.yaml)
  forest-bench run

  # Only the reflection candidates, scored by a judge model
  forest-bench run --filter 'reflection/*' --evaluate --evaluation-model llama3.1:70b

  # Against an OpenAI-compatible endpoint
  forest-bench run --provider openai --endpoint https://api.openai.com/v1 --model gpt-4.1-mini

  # Fixed run id and exporters
  forest-bench run --run-id nightly --exporters console,csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loaded

		// Overrides
		flags := cmd.Flags()
		if flags.Changed("filter") {
			cfg.Filter = filterOverride
		}
		if runIDOverride != "" {
			cfg.RunID = runIDOverride
		}
		if artifactsOverride != "" {
			cfg.ArtifactsPath = artifactsOverride
		}
		if len(exportersOverride) > 0 {
			cfg.Exporters = exportersOverride
		}
		if modelOverride != "" {
			cfg.Provider.Model = modelOverride
		}
		if evalModelOverride != "" {
			cfg.Provider.EvaluationModel = evalModelOverride
		}
		if endpointOverride != "" {
			cfg.Provider.Endpoint = endpointOverride
		}
		if providerOverride != "" {
			cfg.Provider.Name = providerOverride
		}
		if rubricOverride != "" {
			cfg.Rubric = rubricOverride
		}
		if flags.Changed("evaluate") {
			cfg.Evaluate = evaluateFlag
		}
		if noHistoryFlag {
			cfg.History.Enabled = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		clients, err := llm.NewFactory(providerConfig(cfg))
		if err != nil {
			return err
		}

		suite := &engine.Suite{
			Registry:    newRegistry(cfg, clients),
			Store:       store.New(cfg.ArtifactsPath),
			Exporters:   output.ByName(cfg.Exporters, cmd.OutOrStdout()),
			Environment: store.NewEnvironment(cfg.Provider.Name, cfg.Provider.Model),
		}
		if cfg.Evaluate {
			judge, cmp, err := newJudges(cfg, clients)
			if err != nil {
				return err
			}
			suite.Judge = judge
			suite.Comparator = cmp
		}
		if path := cfg.HistoryPath(); path != "" {
			if err := os.MkdirAll(cfg.ArtifactsPath, 0o755); err != nil {
				return fmt.Errorf("failed to create artifacts directory: %w", err)
			}
			db, err := history.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open history %s: %w", path, err)
			}
			defer db.Close()
			suite.History = db
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := suite.Run(ctx, model.RunConfig{
			Filter:        cfg.Filter,
			RunID:         cfg.RunID,
			ArtifactsPath: cfg.ArtifactsPath,
			Evaluate:      cfg.Evaluate,
			Exporters:     cfg.Exporters,
			Timestamp:     time.Now().UTC(),
		})
		switch {
		case errors.Is(err, engine.ErrNoCandidates):
			fmt.Fprintln(cmd.ErrOrStderr(), "Use 'forest-bench list' to see available candidates.")
			return err
		case errors.Is(err, context.Canceled):
			if res.RunPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Run cancelled; %d finished result(s) saved to %s\n", len(res.Results), res.RunPath)
			}
			return err
		case err != nil:
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&filterOverride, "filter", "f", "", "Glob over category/name (e.g. 'reflection/*')")
	runCmd.Flags().StringVar(&runIDOverride, "run-id", "", "Run directory name (default: timestamp + prompt slug)")
	runCmd.Flags().StringVarP(&artifactsOverride, "artifacts", "o", "", "Artifacts root directory")
	runCmd.Flags().StringSliceVar(&exportersOverride, "exporters", nil, "Comma-separated exporters: console, markdown, json, csv")
	runCmd.Flags().StringVar(&modelOverride, "model", "", "Default model for candidate agents")
	runCmd.Flags().StringVar(&evalModelOverride, "evaluation-model", "", "Judge model (default: --model)")
	runCmd.Flags().StringVar(&endpointOverride, "endpoint", "", "Provider endpoint URL")
	runCmd.Flags().StringVar(&providerOverride, "provider", "", "Provider: ollama or openai")
	runCmd.Flags().StringVar(&rubricOverride, "rubric", "", "Judge rubric: content or agent-task")
	runCmd.Flags().BoolVar(&evaluateFlag, "evaluate", false, "Score outputs with the judge model")
	runCmd.Flags().BoolVar(&noHistoryFlag, "no-history", false, "Do not record the run in the history index")
}
