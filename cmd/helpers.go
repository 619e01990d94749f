package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/registry"
	"github.com/sells-group/citewatch/internal/runner"
	"github.com/sells-group/citewatch/internal/store"
)

// initStore opens the configured store backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func runnerOptions() runner.Options {
	return runner.Options{
		Concurrency: cfg.Eval.Concurrency,
		CallTimeout: time.Duration(cfg.Eval.CallTimeoutSecs) * time.Second,
	}
}

// loadInputs reads the prompt and target lists from their configured paths.
func loadInputs(promptsPath, targetsPath string) ([]string, []model.TargetSpec, error) {
	if promptsPath == "" {
		promptsPath = cfg.Prompts.Path
	}
	if targetsPath == "" {
		targetsPath = cfg.Targets.Path
	}

	prompts, err := registry.LoadPrompts(promptsPath)
	if err != nil {
		return nil, nil, err
	}
	targets, err := registry.LoadTargets(targetsPath)
	if err != nil {
		return nil, nil, err
	}
	return prompts, targets, nil
}

// loadClusters reads the configured clusters file. A missing file already
// falls back to the built-in set inside LoadClusters; anything else, a
// malformed file included, is surfaced.
func loadClusters() ([]registry.Cluster, error) {
	return registry.LoadClusters(cfg.Clusters.Path)
}
