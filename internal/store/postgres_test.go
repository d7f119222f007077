package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchlog/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumns = []string{"id", "stages", "window_start", "window_end", "status", "error", "created_at", "updated_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	w := testWindow()

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), []byte(`["scrape","extract"]`), w.Start, w.End, "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), []string{"scrape", "extract"}, w)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("complete", "", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusComplete, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, stages, window_start, window_end, status, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_WithResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	w := testWindow()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", []byte(`["dedup"]`), w.Start, w.End, "complete", "", now, now))
	mock.ExpectQuery(`FROM run_stages WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "run_id", "name", "status", "result", "started_at"}).
			AddRow("st-1", "run-1", "dedup", "complete", []byte(`{"name":"dedup","status":"complete","duration_ms":5,"rows":7,"skipped":0}`), now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, []string{"dedup"}, run.Stages)
	require.Len(t, run.Results, 1)
	assert.Equal(t, 7, run.Results[0].Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	w := testWindow()
	now := time.Now().UTC()

	mock.ExpectQuery(`AND status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 10, 5).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-2", []byte(`["classify"]`), w.Start, w.End, "failed", "stage classify failed", now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed, Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "stage classify failed", runs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteStage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE run_stages SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "st-9").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteStage(context.Background(), "st-9", &model.StageResult{
		Name:   "enrich",
		Status: model.StageStatusFailed,
		Error:  "context canceled",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateStage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_stages`).
		WithArgs(pgxmock.AnyArg(), "run-1", "scrape", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	st, err := s.CreateStage(context.Background(), "run-1", "scrape")
	require.NoError(t, err)
	assert.Equal(t, "scrape", st.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
