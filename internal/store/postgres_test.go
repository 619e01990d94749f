package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citewatch/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func promptColumns() []string {
	return []string{"id", "prompt", "cluster_id", "keywords", "active", "created_at", "updated_at"}
}

func TestPostgresEnsurePrompt(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO prompts`).
		WithArgs("best crm software", "crm_sales", `["crm"]`).
		WillReturnRows(pgxmock.NewRows(promptColumns()).
			AddRow(int64(7), "best crm software", "crm_sales", []byte(`["crm"]`), true, now, now))

	p, err := s.EnsurePrompt(context.Background(), "best crm software", "crm_sales", []string{"crm"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, []string{"crm"}, p.Keywords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsurePromptDefaultsCluster(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO prompts`).
		WithArgs("odd prompt", "uncategorized", `[]`).
		WillReturnRows(pgxmock.NewRows(promptColumns()).
			AddRow(int64(1), "odd prompt", "uncategorized", []byte(`[]`), true, now, now))

	p, err := s.EnsurePrompt(context.Background(), "odd prompt", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "uncategorized", p.ClusterID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListPromptsFiltered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM prompts WHERE 1=1 AND cluster_id = \$1 AND active ORDER BY id`).
		WithArgs("hr_people").
		WillReturnRows(pgxmock.NewRows(promptColumns()).
			AddRow(int64(3), "best hr platform", "hr_people", []byte(`[]`), true, now, now))

	prompts, err := s.ListPrompts(context.Background(), "hr_people", true)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "best hr platform", prompts[0].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetPromptActiveMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE prompts SET active`).
		WithArgs(false, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetPromptActive(context.Background(), 42, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureTarget(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()
	company := "Asana"

	mock.ExpectQuery(`INSERT INTO targets`).
		WithArgs("asana.com", "Asana").
		WillReturnRows(pgxmock.NewRows([]string{"id", "domain", "company", "active", "created_at"}).
			AddRow(int64(1), "asana.com", &company, true, now))

	tgt, err := s.EnsureTarget(context.Background(), "asana.com", "Asana")
	require.NoError(t, err)
	assert.Equal(t, "Asana", tgt.Company)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportTargets(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_staging_targets"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_staging_targets"}, []string{"domain", "company"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "targets"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.ImportTargets(context.Background(), []model.Target{
		{Domain: "asana.com", Company: "Asana"},
		{Domain: "linear.app"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRunCopies(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO prompts`).
		WithArgs("best project management software", "uncategorized", `[]`).
		WillReturnRows(pgxmock.NewRows(promptColumns()).
			AddRow(int64(5), "best project management software", "uncategorized", []byte(`[]`), true, now, now))
	mock.ExpectCopyFrom(pgx.Identifier{"runs"},
		[]string{"timestamp", "provider", "model", "prompt_id", "prompt", "cited", "rank", "cited_urls", "raw_response", "parsed_response"}).
		WillReturnResult(1)

	log := model.RunLog{
		Timestamp: "20260115T120000Z",
		Provider:  "perplexity",
		Model:     "sonar",
		Results: []model.ResultRecord{
			{
				Prompt:    "best project management software",
				Raw:       `{"query":"q","results":[]}`,
				JSONValid: true,
				Matches:   []model.MatchRecord{{Domain: "asana.com", Ranks: []int{2}}},
			},
		},
	}
	require.NoError(t, s.RecordRun(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTimestamps(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT DISTINCT timestamp FROM runs ORDER BY timestamp DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"timestamp"}).
			AddRow("20260120T000000Z").
			AddRow("20260110T000000Z"))

	stamps, err := s.Timestamps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"20260120T000000Z", "20260110T000000Z"}, stamps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJobNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM jobs WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), 404)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStartJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs("running", 10, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.StartJob(context.Background(), 3, 10))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS prompts`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
