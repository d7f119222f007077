package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyUpsert = UpsertConfig{
	Table:        "watch_history",
	Columns:      []string{"video_id", "title", "category"},
	ConflictKeys: []string{"video_id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, historyUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	rows := [][]any{{"abc", "t", "F1"}}

	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Columns: []string{"a"}, ConflictKeys: []string{"a"}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no table specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"id"}}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_tmp_upsert_watch_history" (LIKE "watch_history" INCLUDING DEFAULTS) ON COMMIT DROP`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_watch_history"}, historyUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "watch_history"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"abc", "one", "F1"}, {"def", "two", "News"}}
	n, err := BulkUpsert(context.Background(), mock, historyUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_watch_history"}, historyUpsert.Columns).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, historyUpsert, [][]any{{"abc", "one", "F1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into staging table for watch_history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	got := historyUpsert.UpsertSQL("stage")
	assert.Equal(t,
		`INSERT INTO "watch_history" ("video_id", "title", "category") SELECT "video_id", "title", "category" FROM "stage" ON CONFLICT ("video_id") DO UPDATE SET "title" = EXCLUDED."title", "category" = EXCLUDED."category"`,
		got)

	keysOnly := UpsertConfig{Table: "t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	assert.Contains(t, keysOnly.UpsertSQL("s"), "DO NOTHING")
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"simple"`, sanitizeTable("simple"))
	assert.Equal(t, `"public"."watch_history"`, sanitizeTable("public.watch_history"))
}
