/*
PURPOSE:
  Defines the root Cobra command for the forest-bench CLI.
  Handles global flags, config loading and logger setup.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config and --log-level.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Every subcommand needs the loaded config, so it is loaded once in PersistentPreRunE.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/forest-bench/main.go
  - Calls: Child commands (list, run, evaluate, models, history)
  - Modifies: output.Logger (via output.Configure).

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/forest-bench/main.go
  - internal/config/config.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-bench/internal/config"
	"github.com/daryltucker/forest-bench/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	logLevel  string
	logFormat string

	// loaded is set by PersistentPreRunE before any subcommand runs.
	loaded *config.Config

	rootCmd = &cobra.Command{
		Use:   "forest-bench",
		Short: "Benchmark harness for LLM workflow candidates",
		Long: `Runs registered workflow candidates against a shared prompt, records per-candidate
model-call metrics, optionally scores the outputs with an LLM judge, and writes reports.
Use 'run --help' for benchmark options.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}
			if err := output.Configure(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
				return err
			}
			loaded = cfg
			return nil
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./forest_bench.yaml or ./forest_bench.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
}
