package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "priority_snapshot", []string{"complex_id", "total"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{
		{"cx-1", 87.5},
		{"cx-2", 12.0},
	}
	mock.ExpectCopyFrom(pgx.Identifier{"priority_snapshot"}, []string{"complex_id", "total"}).
		WillReturnResult(2)

	n, err := CopyFrom(context.TODO(), mock, "priority_snapshot", []string{"complex_id", "total"}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"priority_snapshot"}, []string{"complex_id"}).
		WillReturnError(errors.New("copy failed"))

	_, err = CopyFrom(context.TODO(), mock, "priority_snapshot", []string{"complex_id"}, [][]any{{"cx-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO priority_snapshot")
}
