package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/citewatch/internal/registry"
	"github.com/sells-group/citewatch/internal/runlog"
)

var importCmd = &cobra.Command{
	Use:   "import [logs-dir]",
	Short: "Import run log files into the store",
	Long:  "Reads run_*.json files from the logs directory and records every result in the store, seeding cluster metadata for new prompts.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir := cfg.Logs.Dir
		if len(args) == 1 {
			dir = args[0]
		}

		logs, err := runlog.List(dir)
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
		count := 0
		for _, rl := range logs {
			for _, rec := range rl.Results {
				clusterID := registry.DetectCluster(rec.Prompt, clusters)
				if _, err := st.EnsurePrompt(ctx, rec.Prompt, clusterID, registry.ExtractKeywords(rec.Prompt)); err != nil {
					return err
				}
			}
			if err := st.RecordRun(ctx, rl); err != nil {
				return err
			}
			count += len(rl.Results)
		}

		fmt.Printf("Imported %d runs from %s\n", count, dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
