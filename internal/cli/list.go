package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-bench/internal/registry"
)

var listCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List registered candidates grouped by category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		// Nil factory: listing never constructs candidates.
		reg := newRegistry(loaded, nil)
		candidates, err := reg.Discover(pattern)
		if err != nil {
			return err
		}
		printCandidates(cmd, candidates)
		return nil
	},
}

func printCandidates(cmd *cobra.Command, candidates []registry.CandidateInfo) {
	w := cmd.OutOrStdout()
	if len(candidates) == 0 {
		fmt.Fprintln(w, "No candidates found.")
		return
	}

	var order []string
	byCategory := map[string][]registry.CandidateInfo{}
	prompts := map[string]string{}
	for _, c := range candidates {
		if _, ok := byCategory[c.Category]; !ok {
			order = append(order, c.Category)
			prompts[c.Category] = c.Prompt
		}
		byCategory[c.Category] = append(byCategory[c.Category], c)
	}

	fmt.Fprintf(w, "Available candidates (%d):\n\n", len(candidates))
	for _, cat := range order {
		fmt.Fprintf(w, "%s\n", cat)
		fmt.Fprintf(w, "  prompt: %s\n", truncate(prompts[cat], 80))
		for _, c := range byCategory[cat] {
			marker := ""
			if c.IsBaseline {
				marker = " [baseline]"
			}
			fmt.Fprintf(w, "  - %s%s\n", c.FullName(), marker)
			if c.Description != "" {
				fmt.Fprintf(w, "      %s\n", c.Description)
			}
		}
		fmt.Fprintln(w)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	rootCmd.AddCommand(listCmd)
}
