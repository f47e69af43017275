package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"jobtick/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS run_history (
	id            TEXT PRIMARY KEY,
	task_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	summary       TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS run_history_task_idx ON run_history (task_id, started_at);
`

// SQLiteRecorder appends run records next to the SQLite job store.
type SQLiteRecorder struct {
	db *sql.DB
}

func NewSQLiteRecorder(ctx context.Context, db *sql.DB) (*SQLiteRecorder, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("migrate run_history table: %w", err)
	}
	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, rec models.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO run_history (id, task_id, status, started_at, finished_at, duration_ms, summary, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(), rec.TaskID, string(rec.Status),
		rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(), rec.DurationMS,
		rec.Summary, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert run record for %q: %w", rec.TaskID, err)
	}
	return nil
}
