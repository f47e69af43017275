package models

import (
	"time"

	"jobtick/internal/state"
)

// RunCommit is the single final write applied to a job after one
// processing attempt. Applying it clears the lease, so a commit always
// moves the job out of the leased phase in the same statement that
// records the outcome.
type RunCommit struct {
	TaskID            string
	Status            state.RunStatus
	StartedAt         time.Time
	FinishedAt        time.Time
	NextRunAfter      *time.Time
	Enabled           bool
	RunCountDelta     int64
	FailureCountDelta int64
}

// RunRecord is one line of the append-only run history. Recording it is
// best-effort: a failed insert is logged by the scheduler and discarded.
type RunRecord struct {
	TaskID       string
	Status       state.RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	DurationMS   int64
	Summary      string
	ErrorMessage string
}

// TickStats aggregates one scheduler tick. Executed counts handler
// invocations regardless of outcome; Failed is the subset that returned
// an error; Skipped covers contention, configuration problems and
// missing handlers.
type TickStats struct {
	Due      int
	Executed int
	Skipped  int
	Failed   int
}
