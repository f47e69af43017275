package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"jobtick/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   BIGSERIAL PRIMARY KEY,
	task_id              TEXT NOT NULL UNIQUE,
	handler_id           TEXT NOT NULL,
	enabled              BOOLEAN NOT NULL DEFAULT TRUE,
	schedule_kind        TEXT NOT NULL,
	interval_sec         BIGINT NOT NULL DEFAULT 0,
	cron_expr            TEXT NOT NULL DEFAULT '',
	run_count            BIGINT NOT NULL DEFAULT 0,
	failure_count        BIGINT NOT NULL DEFAULT 0,
	next_run_after       TIMESTAMPTZ,
	lock_until           TIMESTAMPTZ,
	last_run_status      TEXT,
	last_run_started_at  TIMESTAMPTZ,
	last_run_finished_at TIMESTAMPTZ,
	config               JSONB NOT NULL DEFAULT '{}',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS jobs_due_idx ON jobs (enabled, next_run_after);
`

const jobColumns = `id, task_id, handler_id, enabled, schedule_kind, interval_sec, cron_expr,
	run_count, failure_count, next_run_after, lock_until,
	last_run_status, last_run_started_at, last_run_finished_at,
	config, created_at, updated_at`

// JobRepository is the Postgres implementation of repository.JobRepository.
type JobRepository struct {
	db *sqlx.DB
}

// Open connects to Postgres and creates the jobs table if missing.
func Open(ctx context.Context, dsn string) (*JobRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate jobs table: %w", err)
	}
	return &JobRepository{db: db}, nil
}

// DB exposes the underlying handle so collaborators (the run-history
// recorder) can share one connection pool.
func (r *JobRepository) DB() *sqlx.DB {
	return r.db
}

func (r *JobRepository) AddOrUpdate(ctx context.Context, job models.Job) (int64, error) {
	query := `
	INSERT INTO jobs (task_id, handler_id, enabled, schedule_kind, interval_sec, cron_expr, next_run_after, config)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'::jsonb))
	ON CONFLICT (task_id) DO UPDATE SET
		handler_id     = EXCLUDED.handler_id,
		enabled        = EXCLUDED.enabled,
		schedule_kind  = EXCLUDED.schedule_kind,
		interval_sec   = EXCLUDED.interval_sec,
		cron_expr      = EXCLUDED.cron_expr,
		next_run_after = EXCLUDED.next_run_after,
		config         = EXCLUDED.config,
		updated_at     = now()
	RETURNING id
	`
	var cfg any
	if len(job.Config) > 0 {
		cfg = []byte(job.Config)
	}
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		job.TaskID, job.HandlerID, job.Enabled, job.ScheduleKind,
		job.IntervalSec, job.CronExpr, job.NextRunAfter, cfg,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert job %q: %w", job.TaskID, err)
	}
	return id, nil
}

func (r *JobRepository) FindByTaskID(ctx context.Context, taskID string) (*models.Job, error) {
	var job models.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE task_id = $1`
	err := r.db.GetContext(ctx, &job, query, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job %q: %w", taskID, err)
	}
	return &job, nil
}

func (r *JobRepository) FetchDueJobs(ctx context.Context, now time.Time, page, pageSize int) (*models.PaginationResult[models.Job], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	where := `enabled AND (next_run_after IS NULL OR next_run_after <= $1)`

	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM jobs WHERE `+where, now)
	if err != nil {
		return nil, fmt.Errorf("count due jobs: %w", err)
	}

	var jobs []models.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + where +
		` ORDER BY next_run_after ASC NULLS FIRST LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &jobs, query, now, pageSize, offset); err != nil {
		return nil, fmt.Errorf("select due jobs: %w", err)
	}

	return models.NewPaginationResult(jobs, total, page, pageSize), nil
}

func (r *JobRepository) GetAll(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Job], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM jobs`); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	var jobs []models.Job
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY task_id LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &jobs, query, pageSize, offset); err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}

	return models.NewPaginationResult(jobs, total, page, pageSize), nil
}

// AcquireLease is the race arbiter: the WHERE clause re-checks the lease
// inside the UPDATE, so concurrent acquirers resolve to exactly one
// affected row.
func (r *JobRepository) AcquireLease(ctx context.Context, taskID string, now, until time.Time) (bool, error) {
	query := `
	UPDATE jobs
	SET lock_until = $2, updated_at = now()
	WHERE task_id = $1
	  AND enabled
	  AND (lock_until IS NULL OR lock_until <= $3)
	`
	res, err := r.db.ExecContext(ctx, query, taskID, until, now)
	if err != nil {
		return false, fmt.Errorf("acquire lease for %q: %w", taskID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *JobRepository) CommitRun(ctx context.Context, c models.RunCommit) error {
	query := `
	UPDATE jobs
	SET lock_until           = NULL,
	    enabled              = $2,
	    next_run_after       = $3,
	    last_run_status      = $4,
	    last_run_started_at  = $5,
	    last_run_finished_at = $6,
	    run_count            = run_count + $7,
	    failure_count        = failure_count + $8,
	    updated_at           = now()
	WHERE task_id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		c.TaskID, c.Enabled, c.NextRunAfter, c.Status,
		c.StartedAt, c.FinishedAt, c.RunCountDelta, c.FailureCountDelta,
	)
	if err != nil {
		return fmt.Errorf("commit run for %q: %w", c.TaskID, err)
	}
	return nil
}

func (r *JobRepository) Activate(ctx context.Context, taskID string) error {
	return r.setEnabled(ctx, taskID, true)
}

func (r *JobRepository) DeActivate(ctx context.Context, taskID string) error {
	return r.setEnabled(ctx, taskID, false)
}

func (r *JobRepository) setEnabled(ctx context.Context, taskID string, enabled bool) error {
	query := `UPDATE jobs SET enabled = $1, updated_at = now() WHERE task_id = $2`
	_, err := r.db.ExecContext(ctx, query, enabled, taskID)
	if err != nil {
		return fmt.Errorf("set enabled=%v for %q: %w", enabled, taskID, err)
	}
	return nil
}

func (r *JobRepository) Close() error {
	return r.db.Close()
}
