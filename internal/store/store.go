// Package store persists prompts, targets, flattened run outcomes, and
// background jobs for the reporting API. Two backends implement the same
// interface: SQLite for single-machine use and PostgreSQL for shared
// deployments.
package store

import (
	"context"

	"github.com/sells-group/citewatch/internal/model"
)

// RunFilter specifies criteria for listing run rows.
type RunFilter struct {
	Timestamp string `json:"timestamp,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	PromptID  int64  `json:"prompt_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the citation tracker.
type Store interface {
	// Prompts
	EnsurePrompt(ctx context.Context, text, clusterID string, keywords []string) (*model.Prompt, error)
	ListPrompts(ctx context.Context, clusterID string, activeOnly bool) ([]model.Prompt, error)
	SetPromptActive(ctx context.Context, id int64, active bool) error

	// Targets
	EnsureTarget(ctx context.Context, domain, company string) (*model.Target, error)
	ListTargets(ctx context.Context, activeOnly bool) ([]model.Target, error)
	SetTargetActive(ctx context.Context, id int64, active bool) error

	// Runs
	RecordRun(ctx context.Context, log model.RunLog) error
	ListRunRows(ctx context.Context, filter RunFilter) ([]model.RunRow, error)
	Timestamps(ctx context.Context) ([]string, error)

	// Jobs
	CreateJob(ctx context.Context, prompts, targets, models []string) (*model.Job, error)
	StartJob(ctx context.Context, id int64, total int) error
	UpdateJobProgress(ctx context.Context, id int64, progress int) error
	CompleteJob(ctx context.Context, id int64, result string) error
	FailJob(ctx context.Context, id int64, errMsg string) error
	GetJob(ctx context.Context, id int64) (*model.Job, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
