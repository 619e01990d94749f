package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/citewatch/internal/report"
	"github.com/sells-group/citewatch/internal/runlog"
	"github.com/sells-group/citewatch/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect citation run history",
	Long:  "Commands for listing, viewing, and summarizing citation runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		provider, _ := cmd.Flags().GetString("provider")
		modelSlug, _ := cmd.Flags().GetString("model")
		limit, _ := cmd.Flags().GetInt("limit")

		rows, err := st.ListRunRows(ctx, store.RunFilter{
			Provider: provider,
			Model:    modelSlug,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tPROVIDER\tMODEL\tPROMPT\tCITED\tRANK")
		for _, r := range rows {
			cited := "no"
			if r.Cited {
				cited = "yes"
			}
			rank := "-"
			if r.Rank != nil {
				rank = fmt.Sprintf("%d", *r.Rank)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Timestamp, r.Provider, r.Model, truncate(r.Prompt, 50), cited, rank)
		}
		return w.Flush()
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <timestamp>",
	Short: "Show the full results of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logs, err := runlog.ForTimestamp(cfg.Logs.Dir, args[0])
		if err != nil {
			return err
		}

		for _, rl := range logs {
			fmt.Printf("\n=== Provider: %s | Model: %s ===\n", rl.Provider, rl.Model)
			fmt.Println(runlog.FormatConsoleTable(rl))
			fmt.Printf("Cited %d/%d prompts\n", rl.CitedCount(), len(rl.Results))
		}
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show citation summary stats",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		prompts, err := st.ListPrompts(ctx, "", false)
		if err != nil {
			return err
		}
		rows, err := st.ListRunRows(ctx, store.RunFilter{})
		if err != nil {
			return err
		}

		clusters, err := loadClusters()
		if err != nil {
			return err
		}
		promptStats := report.ComputePromptStats(prompts, rows)
		clusterStats := report.ComputeClusterStats(clusters, promptStats)
		summary := report.ComputeSummary(prompts, rows, clusterStats)

		line := strings.Repeat("=", 50)
		fmt.Println("\n" + line)
		fmt.Println("  CITATION TRACKER STATS")
		fmt.Println(line)
		fmt.Printf("  Total Prompts:    %d\n", summary.TotalPrompts)
		fmt.Printf("  Total Runs:       %d\n", summary.TotalRuns)
		fmt.Printf("  Avg Citation:     %.1f%%\n", summary.AvgCitationRate)
		topModel := summary.TopModel
		if topModel == "" {
			topModel = "N/A"
		}
		fmt.Printf("  Top Model:        %s\n", topModel)
		fmt.Printf("  Top Model Rate:   %.1f%%\n", summary.TopModelRate)
		fmt.Println(line + "\n")

		if len(clusterStats) == 0 {
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CLUSTER\tPROMPTS\tRATE\tRANK\tSCORE")
		for _, c := range clusterStats {
			fmt.Fprintf(w, "%s %s\t%d\t%.1f%%\t%.1f\t%.2f\n",
				c.Icon, c.Name, c.PromptCount, c.CitationRate, c.AvgRank, c.Score)
		}
		return w.Flush()
	},
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max-3] + "..."
}

func init() {
	runsListCmd.Flags().String("provider", "", "filter by provider")
	runsListCmd.Flags().String("model", "", "filter by model")
	runsListCmd.Flags().Int("limit", 50, "max rows")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}
