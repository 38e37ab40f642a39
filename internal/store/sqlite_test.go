package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taxroll-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(user string, status model.RunStatus, created time.Time) *model.Run {
	return &model.Run{
		User:      user,
		InputFile: "input.csv",
		Status:    status,
		Stats: model.PipelineStats{
			Filter:       model.FilterStats{TotalRecords: 10, ValidRecords: 4},
			Resolved:     3,
			Unresolved:   1,
			FinalRecords: 4,
		},
		OutputCSV: "Full Address,Address\n",
		CreatedAt: created,
	}
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run := sampleRun("alice", model.RunStatusComplete, time.Now().UTC())
	require.NoError(t, s.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID, "SaveRun assigns an id")

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 4, got.Stats.FinalRecords)
	assert.Equal(t, "Full Address,Address\n", got.OutputCSV)
}

func TestSQLite_GetRunNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRunNotFound))
}

func TestSQLite_ListRunsFilterAndOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, sampleRun("alice", model.RunStatusComplete, base)))
	require.NoError(t, s.SaveRun(ctx, sampleRun("bob", model.RunStatusEmpty, base.Add(time.Hour))))
	require.NoError(t, s.SaveRun(ctx, sampleRun("alice", model.RunStatusFailed, base.Add(2*time.Hour))))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.RunStatusFailed, all[0].Status, "newest first")

	alices, err := s.ListRuns(ctx, RunFilter{User: "alice"})
	require.NoError(t, err)
	assert.Len(t, alices, 2)

	empties, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusEmpty})
	require.NoError(t, err)
	require.Len(t, empties, 1)
	assert.Equal(t, "bob", empties[0].User)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, model.RunStatusEmpty, limited[0].Status)
}

func TestSQLite_DeleteRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run := sampleRun("alice", model.RunStatusComplete, time.Now().UTC())
	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.DeleteRun(ctx, run.ID))

	_, err := s.GetRun(ctx, run.ID)
	assert.True(t, eris.Is(err, ErrRunNotFound))

	err = s.DeleteRun(ctx, run.ID)
	assert.True(t, eris.Is(err, ErrRunNotFound))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	s, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)
}
