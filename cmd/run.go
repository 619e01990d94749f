package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/citewatch/internal/provider"
	"github.com/sells-group/citewatch/internal/registry"
	"github.com/sells-group/citewatch/internal/runlog"
	"github.com/sells-group/citewatch/internal/runner"
)

var (
	runPromptsPath string
	runTargetsPath string
	runModels      []string
	runSkipStore   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate all prompts against configured providers",
	Long:  "Sends every prompt to each configured provider, matches cited domains against the target list, writes run logs, and records results in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("eval"); err != nil {
			return err
		}

		prompts, targets, err := loadInputs(runPromptsPath, runTargetsPath)
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			return fmt.Errorf("no prompts found in %s", cfg.Prompts.Path)
		}

		// Clusters load before any provider call so a malformed file
		// cannot abort a run after the API spend.
		clusters, err := loadClusters()
		if err != nil {
			return err
		}

		reg, err := provider.FromConfig(cfg)
		if err != nil {
			return err
		}
		if reg, err = provider.Filter(reg, runModels); err != nil {
			return err
		}

		logs, runErr := runner.New(reg, runnerOptions()).Run(ctx, prompts, targets)

		writer := runlog.NewWriter(cfg.Logs.Dir)

		blocks := make([]string, 0, len(logs))
		for _, rl := range logs {
			fmt.Printf("\n=== Provider: %s | Model: %s ===\n", rl.Provider, rl.Model)
			fmt.Println(runlog.FormatConsoleTable(rl))
			fmt.Printf("Cited %d/%d prompts\n", rl.CitedCount(), len(rl.Results))

			if err := writer.WriteRun(rl); err != nil {
				return err
			}
			blocks = append(blocks, runlog.FormatProviderTable(rl))
		}

		if len(logs) > 0 {
			ts := logs[0].Timestamp
			if err := writer.AppendMainLog(ts, blocks); err != nil {
				return err
			}
			if err := writer.WriteLastSummary(ts, blocks); err != nil {
				return err
			}
		}

		if !runSkipStore && len(logs) > 0 {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

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
			}
			zap.L().Info("runs recorded",
				zap.Int("providers", len(logs)),
				zap.Int("prompts", len(prompts)),
			)
		}

		// Partial results are flushed above before reporting cancellation.
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runPromptsPath, "prompts", "", "prompts file (default from config)")
	runCmd.Flags().StringVar(&runTargetsPath, "targets", "", "targets file (default from config)")
	runCmd.Flags().StringSliceVar(&runModels, "models", nil, "restrict to these model slugs")
	runCmd.Flags().BoolVar(&runSkipStore, "no-store", false, "skip recording results in the store")
	rootCmd.AddCommand(runCmd)
}
