package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertEmptyRows(t *testing.T) {
	u := Upsert{Table: "targets", Columns: []string{"domain", "company"}, ConflictKey: "domain"}
	n, err := u.Run(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpsertMissingConfig(t *testing.T) {
	u := Upsert{Table: "targets"}
	_, err := u.Run(context.Background(), nil, [][]any{{"asana.com", "Asana"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict key")
}

func TestUpsertStagesAndMerges(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_staging_targets" \(LIKE "targets" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_staging_targets"}, []string{"domain", "company"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "targets" \("domain", "company"\) SELECT "domain", "company" FROM "_staging_targets" ON CONFLICT \("domain"\) DO UPDATE SET "company" = EXCLUDED\."company"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	u := Upsert{Table: "targets", Columns: []string{"domain", "company"}, ConflictKey: "domain"}
	n, err := u.Run(context.Background(), mock, [][]any{
		{"asana.com", "Asana"},
		{"linear.app", "Linear"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMergeSQLSingleColumn(t *testing.T) {
	u := Upsert{Table: "public.targets", Columns: []string{"domain"}, ConflictKey: "domain"}
	sql := u.mergeSQL("_staging_public_targets")
	assert.Contains(t, sql, `INSERT INTO "public"."targets"`)
	assert.Contains(t, sql, "DO NOTHING")
}
