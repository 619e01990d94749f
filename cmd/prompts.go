package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/citewatch/internal/registry"
	"github.com/sells-group/citewatch/internal/report"
	"github.com/sells-group/citewatch/internal/store"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage tracked prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts with citation stats",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		clusterID, _ := cmd.Flags().GetString("cluster")
		limit, _ := cmd.Flags().GetInt("limit")

		prompts, err := st.ListPrompts(ctx, clusterID, false)
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			fmt.Fprintln(os.Stderr, "No prompts found.")
			return nil
		}
		rows, err := st.ListRunRows(ctx, store.RunFilter{})
		if err != nil {
			return err
		}

		stats := report.ComputePromptStats(prompts, rows)
		if limit > 0 && len(stats) > limit {
			stats = stats[:limit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROMPT\tCLUSTER\tRATE\tRANK\tSCORE")
		for _, s := range stats {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.1f%%\t%.1f\t%.2f\n",
				s.PromptID, truncate(s.Prompt, 50), s.ClusterID, s.CitationRate, s.AvgRank, s.Score)
		}
		return w.Flush()
	},
}

var promptsAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Add prompts from a file, one per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		prompts, err := registry.LoadPrompts(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		clusters, err := loadClusters()
		if err != nil {
			return err
		}
		for _, text := range prompts {
			clusterID := registry.DetectCluster(text, clusters)
			if _, err := st.EnsurePrompt(ctx, text, clusterID, registry.ExtractKeywords(text)); err != nil {
				return err
			}
		}

		fmt.Printf("Added %d prompts from %s\n", len(prompts), args[0])
		return nil
	},
}

var promptsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Exclude a prompt from future runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prompt id: %s", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SetPromptActive(ctx, id, false); err != nil {
			return err
		}
		fmt.Printf("Disabled prompt %d\n", id)
		return nil
	},
}

func init() {
	promptsListCmd.Flags().String("cluster", "", "filter by cluster id")
	promptsListCmd.Flags().Int("limit", 20, "max prompts")

	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsAddCmd)
	promptsCmd.AddCommand(promptsDisableCmd)
	rootCmd.AddCommand(promptsCmd)
}
