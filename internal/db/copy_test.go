package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "runs", []string{"prompt", "cited"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"runs"}, []string{"prompt", "cited"}).WillReturnResult(3)

	rows := [][]any{{"p1", true}, {"p2", false}, {"p3", true}}
	n, err := CopyFrom(context.Background(), mock, "runs", []string{"prompt", "cited"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"runs"}, []string{"prompt", "cited"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"p1", true}}
	_, err = CopyFrom(context.Background(), mock, "runs", []string{"prompt", "cited"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
