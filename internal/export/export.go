// Package export publishes the categorized history to Postgres so it can be
// queried alongside the run ledger.
package export

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watchlog/internal/db"
	"github.com/sells-group/watchlog/internal/model"
)

// Table is the target table for exported history.
const Table = "watch_history"

const migration = `
CREATE TABLE IF NOT EXISTS watch_history (
	video_id         TEXT PRIMARY KEY,
	shape            TEXT NOT NULL,
	title            TEXT NOT NULL,
	first_seen       DATE NOT NULL,
	channel          TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	language         TEXT NOT NULL,
	tags             TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL,
	exported_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_watch_history_category ON watch_history(category);
CREATE INDEX IF NOT EXISTS idx_watch_history_channel ON watch_history(channel);
`

var columns = []string{
	"video_id", "shape", "title", "first_seen", "channel",
	"duration_seconds", "language", "tags", "category",
}

// Migrate creates the export table if needed.
func Migrate(ctx context.Context, pool db.Pool) error {
	_, err := pool.Exec(ctx, migration)
	return eris.Wrap(err, "export: migrate")
}

// Rows converts records to COPY rows in column order.
func Rows(records []model.CategorizedRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.Identity.ID,
			r.Identity.Shape.String(),
			r.BestTitle,
			r.FirstSeenDate,
			r.Channel,
			int32(r.DurationSeconds),
			r.OriginalLanguage,
			strings.Join(r.Tags, "|"),
			r.Category,
		})
	}
	return rows
}

// Postgres upserts records into watch_history keyed by video ID. Re-exporting
// the same artifact updates rows in place.
func Postgres(ctx context.Context, pool db.Pool, records []model.CategorizedRecord) (int64, error) {
	if err := Migrate(ctx, pool); err != nil {
		return 0, err
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        Table,
		Columns:      columns,
		ConflictKeys: []string{"video_id"},
	}, Rows(records))
	if err != nil {
		return 0, eris.Wrap(err, "export: upsert history")
	}

	zap.L().Info("export: history upserted",
		zap.String("table", Table),
		zap.Int("records", len(records)),
		zap.Int64("affected", n),
	)
	return n, nil
}
