/*
PURPOSE:
  Entry point for the forest-bench application.
  Hands the process arguments to the cobra command tree.

REQUIREMENTS:
  User-specified:
  - Must serve as the single binary entry point.
  - Non-zero exit on any command failure (scripts and CI rely on it).

  Implementation-discovered:
  - Signal handling lives in the `run` command, which needs the partial results;
    main stays signal-agnostic.

ARCHITECTURE INTEGRATION:
  - Calls: internal/cli.Execute()

ERROR HANDLING:
  - Explicit error check on Execute(); exit code 1 on failure.

IMPLEMENTATION RULES:
  - Critical: Keep main() minimal. All logic belongs in internal/ packages.

USAGE:
  go build -o forest-bench ./cmd/forest-bench
  ./forest-bench [command] [flags]

RELATED FILES:
  - internal/cli/root.go - The actual root command definition.
*/

package main

import (
	"fmt"
	"os"

	"github.com/daryltucker/forest-bench/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
