package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or clear the scan history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded scans, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		scanner, _ := cmd.Flags().GetBool("scanner")
		scanLog, closeFn, err := openHistory(scanner)
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := scanLog.List(cmd.Context())
		if err != nil {
			return err
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tFACES\tRESULTS")
		for _, e := range entries {
			summary := ""
			for i, r := range e.Results {
				if i > 0 {
					summary += ", "
				}
				summary += fmt.Sprintf("%s (%s)", r.Label, formatDistance(r))
			}
			ts := time.UnixMilli(e.Timestamp).Local().Format(time.DateTime)
			fmt.Fprintf(w, "%s\t%d\t%s\n", ts, len(e.Results), summary)
		}
		return w.Flush()
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole scan history",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner, _ := cmd.Flags().GetBool("scanner")
		scanLog, closeFn, err := openHistory(scanner)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := scanLog.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Scan history cleared.")
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().Bool("scanner", false, "use the scanner daemon's history instead of the API server's")
	historyListCmd.Flags().Int("limit", 0, "show at most this many entries (0 = all)")
	historyCmd.AddCommand(historyListCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
