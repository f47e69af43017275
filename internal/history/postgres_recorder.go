package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"jobtick/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS run_history (
	id            TEXT PRIMARY KEY,
	task_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL,
	summary       TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS run_history_task_idx ON run_history (task_id, started_at);
`

// PostgresRecorder appends run records to Postgres, sharing the job
// repository's connection pool.
type PostgresRecorder struct {
	db *sqlx.DB
}

func NewPostgresRecorder(ctx context.Context, db *sqlx.DB) (*PostgresRecorder, error) {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("migrate run_history table: %w", err)
	}
	return &PostgresRecorder{db: db}, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, rec models.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO run_history (id, task_id, status, started_at, finished_at, duration_ms, summary, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.NewString(), rec.TaskID, rec.Status,
		rec.StartedAt, rec.FinishedAt, rec.DurationMS,
		rec.Summary, rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert run record for %q: %w", rec.TaskID, err)
	}
	return nil
}
