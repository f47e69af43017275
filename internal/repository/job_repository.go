package repository

import (
	"context"
	"time"

	"jobtick/internal/models"
)

// JobRepository defines the persistence contract for scheduled jobs.
// The scheduler issues exactly two mutating statements per job per
// tick: AcquireLease and CommitRun.
type JobRepository interface {
	// AddOrUpdate inserts a job definition, or updates its handler,
	// schedule and config if the task ID already exists. Returns the
	// row ID.
	AddOrUpdate(ctx context.Context, job models.Job) (int64, error)

	// FindByTaskID returns the job with the given task ID, or nil when
	// no such job exists.
	FindByTaskID(ctx context.Context, taskID string) (*models.Job, error)

	// FetchDueJobs fetches enabled jobs whose NextRunAfter is absent or
	// <= now, one page at a time.
	FetchDueJobs(ctx context.Context, now time.Time, page, pageSize int) (*models.PaginationResult[models.Job], error)

	// GetAll returns all jobs, paginated.
	GetAll(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Job], error)

	// AcquireLease sets LockUntil = until, but only while the job is
	// enabled and lease-free at 'now'. The check and the write execute
	// as one atomic statement; this is the only mutual-exclusion
	// primitive in the system. It reports whether exclusivity was
	// obtained.
	AcquireLease(ctx context.Context, taskID string, now, until time.Time) (bool, error)

	// CommitRun applies the post-run state in a single statement: it
	// clears the lease, records outcome and timestamps, sets the next
	// schedule, and moves the counters by relative increments
	// (run_count = run_count + delta), never read-then-write.
	CommitRun(ctx context.Context, commit models.RunCommit) error

	// Activate re-enables a job.
	Activate(ctx context.Context, taskID string) error

	// DeActivate disables a job.
	DeActivate(ctx context.Context, taskID string) error

	Close() error
}
