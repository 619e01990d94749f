package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/citewatch/internal/export"
	"github.com/sells-group/citewatch/internal/report"
	"github.com/sells-group/citewatch/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs and prompt stats to an XLSX workbook",
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
		stats := export.Stats{
			Prompts:  promptStats,
			Clusters: report.ComputeClusterStats(clusters, promptStats),
			Models:   report.ComputeModelStats(rows),
		}
		if err := export.Workbook(exportOut, rows, stats); err != nil {
			return err
		}

		fmt.Printf("Wrote %d runs and %d prompts to %s\n", len(rows), len(promptStats), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "citewatch.xlsx", "output file path")
	rootCmd.AddCommand(exportCmd)
}
