package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_AlreadyProvisioned(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS.*pg_trigger").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	for i := 0; i < 7; i++ {
		mock.ExpectQuery("SELECT EXISTS.*information_schema.tables").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}

	err := s.Bootstrap(context.Background(), "transaction_channel", false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_CreatesMissingTrigger(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS.*pg_trigger").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE OR REPLACE FUNCTION notify_k_transaction").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TRIGGER transaction_notify_trigger").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT EXISTS.*information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	for i := 0; i < 6; i++ {
		mock.ExpectQuery("SELECT EXISTS.*information_schema.tables").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}

	err := s.Bootstrap(context.Background(), "transaction_channel", false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_RejectsInvalidChannelName(t *testing.T) {
	s, _ := newMockStore(t)
	err := s.Bootstrap(context.Background(), "not a channel; DROP TABLE x", false)
	require.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- a comment
CREATE TABLE foo (id int);
CREATE TABLE bar (
	id int
);
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	require.Contains(t, stmts[0], "CREATE TABLE foo")
	require.Contains(t, stmts[1], "CREATE TABLE bar")
}
