package models

import (
	"encoding/json"
	"time"

	"jobtick/internal/state"
)

// ScheduleKind is the stored discriminator for a job's schedule. Rows
// written by older versions may carry a kind neither constant matches;
// Job.Schedule reports those so callers can fail closed.
type ScheduleKind string

const (
	KindInterval ScheduleKind = "interval"
	KindCron     ScheduleKind = "cron"
)

// Job is one scheduled task definition plus its scheduling state. The
// row is the only shared mutable state between scheduler instances:
// LockUntil carries the lease, and the counters are only ever moved by
// relative increments.
type Job struct {
	ID                int64            `db:"id"`
	TaskID            string           `db:"task_id"`
	HandlerID         string           `db:"handler_id"`
	Enabled           bool             `db:"enabled"`
	ScheduleKind      ScheduleKind     `db:"schedule_kind"`
	IntervalSec       int64            `db:"interval_sec"`
	CronExpr          string           `db:"cron_expr"`
	RunCount          int64            `db:"run_count"`
	FailureCount      int64            `db:"failure_count"`
	NextRunAfter      *time.Time       `db:"next_run_after"`
	LockUntil         *time.Time       `db:"lock_until"`
	LastRunStatus     *state.RunStatus `db:"last_run_status"`
	LastRunStartedAt  *time.Time       `db:"last_run_started_at"`
	LastRunFinishedAt *time.Time       `db:"last_run_finished_at"`
	Config            json.RawMessage  `db:"config"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

// Phase reports the job's scheduling phase at the given instant.
func (j *Job) Phase(now time.Time) state.Phase {
	return state.PhaseOf(j.Enabled, j.LockUntil, now)
}
