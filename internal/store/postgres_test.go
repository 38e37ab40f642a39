package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taxroll-cli/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

var runColumns = []string{"id", "username", "input_file", "status", "stats", "output_csv", "created_at", "finished_at"}

func TestPostgres_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "alice", "input.csv", "complete", pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := sampleRun("alice", model.RunStatusComplete, time.Now().UTC())
	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).AddRow(
			"run-1", "alice", "input.csv", model.RunStatusComplete,
			[]byte(`{"filter":{"total_records":10,"valid_records":4,"filtered_out":6,"valid_classes":null,"invalid_classes":null},"resolved":3,"unresolved":1,"duplicates_removed":0,"final_records":4}`),
			strPtr("csv-data"), now, now,
		))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)
	assert.Equal(t, 10, got.Stats.Filter.TotalRecords)
	assert.Equal(t, "csv-data", got.OutputCSV)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRunNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRunNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM runs WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("complete", 100).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "alice", "a.csv", model.RunStatusComplete, []byte(`{}`), nil, now, now).
			AddRow("run-2", "bob", "b.csv", model.RunStatusComplete, []byte(`{}`), nil, now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "bob", runs[1].User)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM runs`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, s.DeleteRun(context.Background(), "run-1"))

	mock.ExpectExec(`DELETE FROM runs`).
		WithArgs("run-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err := s.DeleteRun(context.Background(), "run-2")
	assert.True(t, eris.Is(err, ErrRunNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
