package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/db"
	"github.com/sells-group/citewatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems needing direct
// query access (bulk imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prompts (
	id         BIGSERIAL PRIMARY KEY,
	prompt     TEXT NOT NULL UNIQUE,
	cluster_id TEXT NOT NULL,
	keywords   JSONB NOT NULL DEFAULT '[]',
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS targets (
	id         BIGSERIAL PRIMARY KEY,
	domain     TEXT NOT NULL UNIQUE,
	company    TEXT,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id              BIGSERIAL PRIMARY KEY,
	timestamp       TEXT NOT NULL,
	provider        TEXT NOT NULL,
	model           TEXT NOT NULL,
	prompt_id       BIGINT NOT NULL REFERENCES prompts(id),
	prompt          TEXT NOT NULL,
	cited           BOOLEAN NOT NULL DEFAULT FALSE,
	rank            INTEGER,
	cited_urls      JSONB NOT NULL DEFAULT '[]',
	raw_response    TEXT,
	parsed_response JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id           BIGSERIAL PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'pending',
	prompts      JSONB NOT NULL,
	targets      JSONB NOT NULL,
	models       JSONB NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	total        INTEGER NOT NULL DEFAULT 0,
	result       TEXT,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_runs_prompt_id ON runs(prompt_id);
CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model);
CREATE INDEX IF NOT EXISTS idx_prompts_cluster ON prompts(cluster_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) EnsurePrompt(ctx context.Context, text, clusterID string, keywords []string) (*model.Prompt, error) {
	if clusterID == "" {
		clusterID = "uncategorized"
	}
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal keywords")
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO prompts (prompt, cluster_id, keywords)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (prompt) DO UPDATE SET updated_at = now()
		 RETURNING id, prompt, cluster_id, keywords, active, created_at, updated_at`,
		text, clusterID, string(keywordsJSON),
	)
	return scanPromptPG(row)
}

func (s *PostgresStore) ListPrompts(ctx context.Context, clusterID string, activeOnly bool) ([]model.Prompt, error) {
	query := `SELECT id, prompt, cluster_id, keywords, active, created_at, updated_at FROM prompts WHERE 1=1`
	var args []any
	if clusterID != "" {
		args = append(args, clusterID)
		query += ` AND cluster_id = $1`
	}
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prompts")
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		p, err := scanPromptPG(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, eris.Wrap(rows.Err(), "postgres: list prompts")
}

func (s *PostgresStore) SetPromptActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prompts SET active = $1, updated_at = now() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set prompt active %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prompt not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) EnsureTarget(ctx context.Context, domain, company string) (*model.Target, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO targets (domain, company)
		 VALUES ($1, NULLIF($2, ''))
		 ON CONFLICT (domain) DO UPDATE SET domain = EXCLUDED.domain
		 RETURNING id, domain, company, active, created_at`,
		domain, company,
	)
	return scanTargetPG(row)
}

// ImportTargets upserts a batch of targets in one staged COPY, keying on
// domain. Company names of existing rows are overwritten.
func (s *PostgresStore) ImportTargets(ctx context.Context, targets []model.Target) (int64, error) {
	rows := make([][]any, 0, len(targets))
	for _, t := range targets {
		var company any
		if t.Company != "" {
			company = t.Company
		}
		rows = append(rows, []any{t.Domain, company})
	}
	u := db.Upsert{Table: "targets", Columns: []string{"domain", "company"}, ConflictKey: "domain"}
	n, err := u.Run(ctx, s.pool, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: import targets")
	}
	return n, nil
}

func (s *PostgresStore) ListTargets(ctx context.Context, activeOnly bool) ([]model.Target, error) {
	query := `SELECT id, domain, company, active, created_at FROM targets WHERE 1=1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list targets")
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		t, err := scanTargetPG(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, eris.Wrap(rows.Err(), "postgres: list targets")
}

func (s *PostgresStore) SetTargetActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets SET active = $1 WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set target active %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("target not found: %d", id)
	}
	return nil
}

// RecordRun resolves prompt ids, then lands the flattened rows with one
// COPY per provider log.
func (s *PostgresStore) RecordRun(ctx context.Context, log model.RunLog) error {
	columns := []string{"timestamp", "provider", "model", "prompt_id", "prompt", "cited", "rank", "cited_urls", "raw_response", "parsed_response"}
	rows := make([][]any, 0, len(log.Results))

	for _, rec := range log.Results {
		prompt, err := s.EnsurePrompt(ctx, rec.Prompt, "", nil)
		if err != nil {
			return err
		}

		citedURLs, err := json.Marshal(rec.AllCitedURLs())
		if err != nil {
			return eris.Wrap(err, "postgres: marshal cited urls")
		}
		var parsedJSON any
		if rec.Parsed != nil {
			data, err := json.Marshal(rec.Parsed)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal parsed response")
			}
			parsedJSON = string(data)
		}

		rows = append(rows, []any{
			log.Timestamp, log.Provider, log.Model, prompt.ID, rec.Prompt,
			rec.Cited(), rec.BestRank(), string(citedURLs), rec.Raw, parsedJSON,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "runs", columns, rows)
	return err
}

func (s *PostgresStore) ListRunRows(ctx context.Context, filter RunFilter) ([]model.RunRow, error) {
	query := `SELECT id, timestamp, provider, model, prompt_id, prompt, cited, rank, cited_urls, raw_response, parsed_response, created_at
	          FROM runs WHERE 1=1`
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		query += clause + placeholder(len(args))
	}
	if filter.Timestamp != "" {
		add(` AND timestamp = `, filter.Timestamp)
	}
	if filter.Provider != "" {
		add(` AND provider = `, filter.Provider)
	}
	if filter.Model != "" {
		add(` AND model = `, filter.Model)
	}
	if filter.PromptID != 0 {
		add(` AND prompt_id = `, filter.PromptID)
	}
	query += ` ORDER BY timestamp DESC, id`
	if filter.Limit > 0 {
		add(` LIMIT `, filter.Limit)
		if filter.Offset > 0 {
			add(` OFFSET `, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list run rows")
	}
	defer rows.Close()

	var out []model.RunRow
	for rows.Next() {
		r, err := scanRunRowPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list run rows")
}

func (s *PostgresStore) Timestamps(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT timestamp FROM runs ORDER BY timestamp DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list timestamps")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, eris.Wrap(err, "postgres: scan timestamp")
		}
		out = append(out, ts)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list timestamps")
}

func (s *PostgresStore) CreateJob(ctx context.Context, prompts, targets, models []string) (*model.Job, error) {
	promptsJSON, targetsJSON, modelsJSON, err := marshalJobLists(prompts, targets, models)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (status, prompts, targets, models)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, status, prompts, targets, models, progress, total, result, error, created_at, started_at, completed_at`,
		string(model.JobPending), promptsJSON, targetsJSON, modelsJSON,
	)
	return scanJobPG(row)
}

func (s *PostgresStore) StartJob(ctx context.Context, id int64, total int) error {
	return s.execJob(ctx, id,
		`UPDATE jobs SET status = $1, total = $2, started_at = now() WHERE id = $3`,
		string(model.JobRunning), total, id,
	)
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id int64, progress int) error {
	return s.execJob(ctx, id, `UPDATE jobs SET progress = $1 WHERE id = $2`, progress, id)
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id int64, result string) error {
	return s.execJob(ctx, id,
		`UPDATE jobs SET status = $1, result = $2, progress = total, completed_at = now() WHERE id = $3`,
		string(model.JobCompleted), result, id,
	)
}

func (s *PostgresStore) FailJob(ctx context.Context, id int64, errMsg string) error {
	return s.execJob(ctx, id,
		`UPDATE jobs SET status = $1, error = $2, completed_at = now() WHERE id = $3`,
		string(model.JobFailed), errMsg, id,
	)
}

func (s *PostgresStore) execJob(ctx context.Context, id int64, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, prompts, targets, models, progress, total, result, error, created_at, started_at, completed_at
		 FROM jobs WHERE id = $1`,
		id,
	)
	return scanJobPG(row)
}

// pg scan helpers

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanPromptPG(row pgx.Row) (*model.Prompt, error) {
	var p model.Prompt
	var keywordsJSON []byte

	err := row.Scan(&p.ID, &p.Text, &p.ClusterID, &keywordsJSON, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("prompt not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan prompt")
	}
	if err := json.Unmarshal(keywordsJSON, &p.Keywords); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal keywords")
	}
	return &p, nil
}

func scanTargetPG(row pgx.Row) (*model.Target, error) {
	var t model.Target
	var company *string

	err := row.Scan(&t.ID, &t.Domain, &company, &t.Active, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("target not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan target")
	}
	if company != nil {
		t.Company = *company
	}
	return &t, nil
}

func scanRunRowPG(row pgx.Row) (*model.RunRow, error) {
	var r model.RunRow
	var citedURLs []byte
	var raw, parsed *string

	err := row.Scan(&r.ID, &r.Timestamp, &r.Provider, &r.Model, &r.PromptID, &r.Prompt,
		&r.Cited, &r.Rank, &citedURLs, &raw, &parsed, &r.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run row")
	}
	if err := json.Unmarshal(citedURLs, &r.CitedURLs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cited urls")
	}
	if raw != nil {
		r.RawResponse = *raw
	}
	if parsed != nil {
		r.ParsedResponse = *parsed
	}
	return &r, nil
}

func scanJobPG(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status string
	var promptsJSON, targetsJSON, modelsJSON []byte
	var result, errMsg *string

	err := row.Scan(&j.ID, &status, &promptsJSON, &targetsJSON, &modelsJSON,
		&j.Progress, &j.Total, &result, &errMsg, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	j.Status = model.JobStatus(status)
	if result != nil {
		j.Result = *result
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	lists := []struct {
		raw  []byte
		dest *[]string
	}{
		{promptsJSON, &j.Prompts},
		{targetsJSON, &j.Targets},
		{modelsJSON, &j.Models},
	}
	for _, l := range lists {
		if err := json.Unmarshal(l.raw, l.dest); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job lists")
		}
	}
	return &j, nil
}
