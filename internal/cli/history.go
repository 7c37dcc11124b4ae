package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-bench/internal/history"
	"github.com/daryltucker/forest-bench/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [record-id]",
	Short: "Show past runs from the history index",
	Long: `Without arguments, lists recent runs. With a record id, lists that run's results.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := loaded.HistoryPath()
		if path == "" {
			return fmt.Errorf("history is disabled in the config")
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no history at %s: %w", path, err)
		}
		db, err := history.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		w := cmd.OutOrStdout()
		console := output.NewConsoleExporter(w)

		if len(args) == 1 {
			entries, err := db.Results(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				name := e.FullName
				if e.IsBaseline {
					name += " *"
				}
				status := "OK"
				if !e.Success {
					status = "FAIL (" + e.ErrorKind + ")"
				}
				rows = append(rows, []string{
					name, status, strconv.Itoa(e.Calls), strconv.Itoa(e.Tokens),
					fmt.Sprintf("%.1fs", e.Duration.Seconds()), quality(e.Quality),
				})
			}
			fmt.Fprintln(w, console.Table([]string{"Candidate", "Status", "Calls", "Tokens", "Duration", "Quality"}, rows, 1,
				func(row int) bool { return !entries[row].Success }))
			return nil
		}

		runs, err := db.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			note := ""
			if r.Cancelled {
				note = "cancelled"
			}
			rows = append(rows, []string{
				r.ID, r.RunID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
				fmt.Sprintf("%d/%d", r.Succeeded, r.Candidates), quality(r.AvgQuality), note,
			})
		}
		fmt.Fprintln(w, console.Table([]string{"ID", "Run", "Created", "OK/Total", "Quality", "Note"}, rows, -1, nil))
		return nil
	},
}

func quality(q *float64) string {
	if q == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f/5", *q)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to show (0 for all)")
}
