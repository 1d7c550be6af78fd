package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTable builds a table over a sqlmock connection for error paths a
// real SQLite file cannot produce.
func mockTable(t *testing.T, keyFields []string) (*Table, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := &Store{
		path:   ":memory:",
		db:     db,
		tables: map[string][]string{"users": keyFields},
	}
	return &Table{store: st, name: "users", keyFields: keyFields}, mock
}

func TestTable_GetQueryFailure(t *testing.T) {
	tbl, mock := mockTable(t, []string{"id"})
	mock.ExpectQuery(`SELECT doc FROM "users"`).WillReturnError(assert.AnError)

	_, err := tbl.Get(context.Background(), "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_GetCorruptDocument(t *testing.T) {
	tbl, mock := mockTable(t, []string{"id"})
	rows := sqlmock.NewRows([]string{"doc"}).AddRow("{not json")
	mock.ExpectQuery(`SELECT doc FROM "users"`).WillReturnRows(rows)

	_, err := tbl.Get(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestTable_BulkPutRollsBackOnFailure(t *testing.T) {
	tbl, mock := mockTable(t, []string{"id"})
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT OR REPLACE INTO "users"`)
	prep.ExpectExec().
		WithArgs("1", sqlmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := tbl.BulkPut(context.Background(), []map[string]any{{"id": "1"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
