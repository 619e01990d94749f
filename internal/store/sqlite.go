package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/citewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prompts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt     TEXT UNIQUE NOT NULL,
	cluster_id TEXT NOT NULL,
	keywords   TEXT NOT NULL DEFAULT '[]',
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS targets (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	domain     TEXT UNIQUE NOT NULL,
	company    TEXT,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp       TEXT NOT NULL,
	provider        TEXT NOT NULL,
	model           TEXT NOT NULL,
	prompt_id       INTEGER NOT NULL REFERENCES prompts(id),
	prompt          TEXT NOT NULL,
	cited           INTEGER NOT NULL DEFAULT 0,
	rank            INTEGER,
	cited_urls      TEXT NOT NULL DEFAULT '[]',
	raw_response    TEXT,
	parsed_response TEXT,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	status       TEXT NOT NULL DEFAULT 'pending',
	prompts      TEXT NOT NULL,
	targets      TEXT NOT NULL,
	models       TEXT NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	total        INTEGER NOT NULL DEFAULT 0,
	result       TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL,
	started_at   DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_prompt_id ON runs(prompt_id);
CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model);
CREATE INDEX IF NOT EXISTS idx_prompts_cluster ON prompts(cluster_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsurePrompt(ctx context.Context, text, clusterID string, keywords []string) (*model.Prompt, error) {
	if clusterID == "" {
		clusterID = "uncategorized"
	}
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal keywords")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO prompts (prompt, cluster_id, keywords, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		text, clusterID, string(keywordsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert prompt")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, cluster_id, keywords, active, created_at, updated_at FROM prompts WHERE prompt = ?`,
		text,
	)
	return scanPrompt(row)
}

func (s *SQLiteStore) ListPrompts(ctx context.Context, clusterID string, activeOnly bool) ([]model.Prompt, error) {
	query := `SELECT id, prompt, cluster_id, keywords, active, created_at, updated_at FROM prompts WHERE 1=1`
	var args []any
	if clusterID != "" {
		query += ` AND cluster_id = ?`
		args = append(args, clusterID)
	}
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prompts")
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, eris.Wrap(rows.Err(), "sqlite: list prompts")
}

func (s *SQLiteStore) SetPromptActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prompts SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set prompt active %d", id)
	}
	return checkRowsAffected(res, "prompt", id)
}

func (s *SQLiteStore) EnsureTarget(ctx context.Context, domain, company string) (*model.Target, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO targets (domain, company, created_at) VALUES (?, ?, ?)`,
		domain, company, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert target")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, domain, company, active, created_at FROM targets WHERE domain = ?`,
		domain,
	)
	return scanTarget(row)
}

func (s *SQLiteStore) ListTargets(ctx context.Context, activeOnly bool) ([]model.Target, error) {
	query := `SELECT id, domain, company, active, created_at FROM targets WHERE 1=1`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list targets")
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, eris.Wrap(rows.Err(), "sqlite: list targets")
}

func (s *SQLiteStore) SetTargetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets SET active = ? WHERE id = ?`,
		boolInt(active), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set target active %d", id)
	}
	return checkRowsAffected(res, "target", id)
}

// RecordRun flattens one provider RunLog into run rows, creating prompt
// rows on first sight.
func (s *SQLiteStore) RecordRun(ctx context.Context, log model.RunLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, rec := range log.Results {
		var promptID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM prompts WHERE prompt = ?`, rec.Prompt).Scan(&promptID)
		if err == sql.ErrNoRows {
			res, insErr := tx.ExecContext(ctx,
				`INSERT INTO prompts (prompt, cluster_id, keywords, created_at, updated_at) VALUES (?, 'uncategorized', '[]', ?, ?)`,
				rec.Prompt, now, now,
			)
			if insErr != nil {
				return eris.Wrap(insErr, "sqlite: insert prompt")
			}
			promptID, insErr = res.LastInsertId()
			if insErr != nil {
				return eris.Wrap(insErr, "sqlite: prompt id")
			}
		} else if err != nil {
			return eris.Wrap(err, "sqlite: lookup prompt")
		}

		citedURLs, err := json.Marshal(rec.AllCitedURLs())
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal cited urls")
		}
		var parsedJSON []byte
		if rec.Parsed != nil {
			parsedJSON, err = json.Marshal(rec.Parsed)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal parsed response")
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO runs (timestamp, provider, model, prompt_id, prompt, cited, rank, cited_urls, raw_response, parsed_response, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			log.Timestamp, log.Provider, log.Model, promptID, rec.Prompt,
			boolInt(rec.Cited()), rec.BestRank(), string(citedURLs), rec.Raw, nullString(string(parsedJSON)), now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert run row")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) ListRunRows(ctx context.Context, filter RunFilter) ([]model.RunRow, error) {
	query := `SELECT id, timestamp, provider, model, prompt_id, prompt, cited, rank, cited_urls, raw_response, parsed_response, created_at
	          FROM runs WHERE 1=1`
	var args []any
	if filter.Timestamp != "" {
		query += ` AND timestamp = ?`
		args = append(args, filter.Timestamp)
	}
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if filter.Model != "" {
		query += ` AND model = ?`
		args = append(args, filter.Model)
	}
	if filter.PromptID != 0 {
		query += ` AND prompt_id = ?`
		args = append(args, filter.PromptID)
	}
	query += ` ORDER BY timestamp DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list run rows")
	}
	defer rows.Close()

	var out []model.RunRow
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list run rows")
}

func (s *SQLiteStore) Timestamps(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT timestamp FROM runs ORDER BY timestamp DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list timestamps")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan timestamp")
		}
		out = append(out, ts)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list timestamps")
}

func (s *SQLiteStore) CreateJob(ctx context.Context, prompts, targets, models []string) (*model.Job, error) {
	promptsJSON, targetsJSON, modelsJSON, err := marshalJobLists(prompts, targets, models)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (status, prompts, targets, models, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(model.JobPending), promptsJSON, targetsJSON, modelsJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create job")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: job id")
	}
	return s.GetJob(ctx, id)
}

func (s *SQLiteStore) StartJob(ctx context.Context, id int64, total int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, total = ?, started_at = ? WHERE id = ?`,
		string(model.JobRunning), total, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: start job %d", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) UpdateJobProgress(ctx context.Context, id int64, progress int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ? WHERE id = ?`,
		progress, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %d", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id int64, result string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, progress = total, completed_at = ? WHERE id = ?`,
		string(model.JobCompleted), result, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %d", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.JobFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %d", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, prompts, targets, models, progress, total, result, error, created_at, started_at, completed_at
		 FROM jobs WHERE id = ?`,
		id,
	)
	return scanJob(row)
}

// helpers

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

func marshalJobLists(prompts, targets, models []string) (string, string, string, error) {
	out := make([]string, 3)
	for i, list := range [][]string{prompts, targets, models} {
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return "", "", "", eris.Wrap(err, "store: marshal job lists")
		}
		out[i] = string(data)
	}
	return out[0], out[1], out[2], nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPrompt(row scannable) (*model.Prompt, error) {
	var p model.Prompt
	var keywordsJSON string
	var active int

	err := row.Scan(&p.ID, &p.Text, &p.ClusterID, &keywordsJSON, &active, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("prompt not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prompt")
	}
	p.Active = active != 0
	if err := json.Unmarshal([]byte(keywordsJSON), &p.Keywords); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal keywords")
	}
	return &p, nil
}

func scanTarget(row scannable) (*model.Target, error) {
	var t model.Target
	var company sql.NullString
	var active int

	err := row.Scan(&t.ID, &t.Domain, &company, &active, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("target not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan target")
	}
	t.Company = company.String
	t.Active = active != 0
	return &t, nil
}

func scanRunRow(row scannable) (*model.RunRow, error) {
	var r model.RunRow
	var cited int
	var rank sql.NullInt64
	var citedURLs string
	var raw, parsed sql.NullString

	err := row.Scan(&r.ID, &r.Timestamp, &r.Provider, &r.Model, &r.PromptID, &r.Prompt,
		&cited, &rank, &citedURLs, &raw, &parsed, &r.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run row")
	}
	r.Cited = cited != 0
	if rank.Valid {
		v := int(rank.Int64)
		r.Rank = &v
	}
	if err := json.Unmarshal([]byte(citedURLs), &r.CitedURLs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cited urls")
	}
	r.RawResponse = raw.String
	r.ParsedResponse = parsed.String
	return &r, nil
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var status, promptsJSON, targetsJSON, modelsJSON string
	var result, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&j.ID, &status, &promptsJSON, &targetsJSON, &modelsJSON,
		&j.Progress, &j.Total, &result, &errMsg, &j.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	j.Status = model.JobStatus(status)
	j.Result = result.String
	j.Error = errMsg.String
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	lists := []struct {
		raw  string
		dest *[]string
	}{
		{promptsJSON, &j.Prompts},
		{targetsJSON, &j.Targets},
		{modelsJSON, &j.Models},
	}
	for _, l := range lists {
		if err := json.Unmarshal([]byte(l.raw), l.dest); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job lists")
		}
	}
	return &j, nil
}
