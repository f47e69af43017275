// Package sqlite backs the job store with an embedded database for
// single-node deployments and tests. Timestamps are stored as unix
// nanoseconds so due-scan and lease comparisons stay exact.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"jobtick/internal/models"
	"jobtick/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id              TEXT NOT NULL UNIQUE,
	handler_id           TEXT NOT NULL,
	enabled              INTEGER NOT NULL DEFAULT 1,
	schedule_kind        TEXT NOT NULL,
	interval_sec         INTEGER NOT NULL DEFAULT 0,
	cron_expr            TEXT NOT NULL DEFAULT '',
	run_count            INTEGER NOT NULL DEFAULT 0,
	failure_count        INTEGER NOT NULL DEFAULT 0,
	next_run_after       INTEGER,
	lock_until           INTEGER,
	last_run_status      TEXT,
	last_run_started_at  INTEGER,
	last_run_finished_at INTEGER,
	config               TEXT NOT NULL DEFAULT '{}',
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS jobs_due_idx ON jobs (enabled, next_run_after);
`

const jobColumns = `id, task_id, handler_id, enabled, schedule_kind, interval_sec, cron_expr,
	run_count, failure_count, next_run_after, lock_until,
	last_run_status, last_run_started_at, last_run_finished_at,
	config, created_at, updated_at`

// JobRepository is the SQLite implementation of repository.JobRepository.
type JobRepository struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path.
func Open(ctx context.Context, path string) (*JobRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate jobs table: %w", err)
	}
	return &JobRepository{db: db}, nil
}

// DB exposes the underlying handle so the run-history recorder can
// share it.
func (r *JobRepository) DB() *sql.DB {
	return r.db
}

func (r *JobRepository) AddOrUpdate(ctx context.Context, job models.Job) (int64, error) {
	cfg := "{}"
	if len(job.Config) > 0 {
		cfg = string(job.Config)
	}
	now := time.Now().UTC().UnixNano()
	query := `
	INSERT INTO jobs (task_id, handler_id, enabled, schedule_kind, interval_sec, cron_expr, next_run_after, config, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (task_id) DO UPDATE SET
		handler_id     = excluded.handler_id,
		enabled        = excluded.enabled,
		schedule_kind  = excluded.schedule_kind,
		interval_sec   = excluded.interval_sec,
		cron_expr      = excluded.cron_expr,
		next_run_after = excluded.next_run_after,
		config         = excluded.config,
		updated_at     = excluded.updated_at
	RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		job.TaskID, job.HandlerID, job.Enabled, string(job.ScheduleKind),
		job.IntervalSec, job.CronExpr, nanos(job.NextRunAfter), cfg, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert job %q: %w", job.TaskID, err)
	}
	return id, nil
}

func (r *JobRepository) FindByTaskID(ctx context.Context, taskID string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE task_id = ?`, taskID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job %q: %w", taskID, err)
	}
	return job, nil
}

func (r *JobRepository) FetchDueJobs(ctx context.Context, now time.Time, page, pageSize int) (*models.PaginationResult[models.Job], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	cutoff := now.UnixNano()

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE enabled = 1 AND (next_run_after IS NULL OR next_run_after <= ?)`,
		cutoff,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count due jobs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE enabled = 1 AND (next_run_after IS NULL OR next_run_after <= ?)
		 ORDER BY next_run_after ASC LIMIT ? OFFSET ?`,
		cutoff, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select due jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	return models.NewPaginationResult(jobs, total, page, pageSize), nil
}

func (r *JobRepository) GetAll(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Job], error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY task_id LIMIT ? OFFSET ?`,
		pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	return models.NewPaginationResult(jobs, total, page, pageSize), nil
}

// AcquireLease re-checks the lease inside the UPDATE itself; with
// RowsAffected as the verdict, concurrent acquirers resolve to exactly
// one winner.
func (r *JobRepository) AcquireLease(ctx context.Context, taskID string, now, until time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE jobs
	SET lock_until = ?, updated_at = ?
	WHERE task_id = ?
	  AND enabled = 1
	  AND (lock_until IS NULL OR lock_until <= ?)
	`, until.UnixNano(), time.Now().UTC().UnixNano(), taskID, now.UnixNano())
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
	_, err := r.db.ExecContext(ctx, `
	UPDATE jobs
	SET lock_until           = NULL,
	    enabled              = ?,
	    next_run_after       = ?,
	    last_run_status      = ?,
	    last_run_started_at  = ?,
	    last_run_finished_at = ?,
	    run_count            = run_count + ?,
	    failure_count        = failure_count + ?,
	    updated_at           = ?
	WHERE task_id = ?
	`,
		c.Enabled, nanos(c.NextRunAfter), string(c.Status),
		c.StartedAt.UnixNano(), c.FinishedAt.UnixNano(),
		c.RunCountDelta, c.FailureCountDelta,
		time.Now().UTC().UnixNano(), c.TaskID,
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
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET enabled = ?, updated_at = ? WHERE task_id = ?`,
		enabled, time.Now().UTC().UnixNano(), taskID,
	)
	if err != nil {
		return fmt.Errorf("set enabled=%v for %q: %w", enabled, taskID, err)
	}
	return nil
}

func (r *JobRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job      models.Job
		kind     string
		next     sql.NullInt64
		lock     sql.NullInt64
		status   sql.NullString
		started  sql.NullInt64
		finished sql.NullInt64
		config   string
		created  int64
		updated  int64
	)
	err := row.Scan(
		&job.ID, &job.TaskID, &job.HandlerID, &job.Enabled, &kind,
		&job.IntervalSec, &job.CronExpr, &job.RunCount, &job.FailureCount,
		&next, &lock, &status, &started, &finished,
		&config, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	job.ScheduleKind = models.ScheduleKind(kind)
	job.NextRunAfter = timePtr(next)
	job.LockUntil = timePtr(lock)
	if status.Valid {
		s := state.RunStatus(status.String)
		job.LastRunStatus = &s
	}
	job.LastRunStartedAt = timePtr(started)
	job.LastRunFinishedAt = timePtr(finished)
	job.Config = []byte(config)
	job.CreatedAt = time.Unix(0, created).UTC()
	job.UpdatedAt = time.Unix(0, updated).UTC()
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func nanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
