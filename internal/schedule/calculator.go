// Package schedule computes when a job runs next. Compute is pure:
// everything it needs arrives as an argument, so identical inputs always
// produce identical results.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"jobtick/internal/models"
	"jobtick/internal/state"
)

// Standard five-field expressions only, no descriptors.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Result is the post-run scheduling state for one job. A nil
// NextRunAfter means the job has no future occurrence; together with
// Enabled=false that takes the job out of every future due set.
type Result struct {
	NextRunAfter      *time.Time
	Enabled           bool
	RunCountDelta     int64
	FailureCountDelta int64
}

// Compute derives the next run time, enabled flag and counter deltas
// from the job, the outcome of the attempt and the current time.
//
// A disabled job passes through untouched. An interval of zero or less,
// an unparsable cron expression, a cron expression with no future
// occurrence, or an unknown schedule kind all force Enabled=false: a job
// that cannot be scheduled safely must not stay in the due set.
// Failures do not change cadence.
func Compute(job models.Job, outcome state.RunStatus, now time.Time) Result {
	if !job.Enabled {
		return Result{NextRunAfter: job.NextRunAfter, Enabled: false}
	}

	res := Result{Enabled: true}
	if outcome.Attempted() {
		res.RunCountDelta = 1
	}
	if outcome == state.StatusFailure {
		res.FailureCountDelta = 1
	}

	sch, ok := job.Schedule()
	if !ok {
		res.Enabled = false
		return res
	}

	switch s := sch.(type) {
	case models.IntervalSchedule:
		if s.Every <= 0 {
			res.Enabled = false
			return res
		}
		next := now.Add(s.Every)
		res.NextRunAfter = &next
	case models.CronSchedule:
		next, err := NextOccurrenceAfter(s.Expression, now)
		if err != nil || !next.After(now) {
			// A parse failure, or an expression with no future
			// occurrence (robfig reports the zero time). Storing that
			// would keep the job permanently due.
			res.Enabled = false
			return res
		}
		res.NextRunAfter = &next
	}
	return res
}

// Validate reports why a job's schedule cannot produce a next run time
// after the given instant. The scheduler loop uses it to classify
// configuration errors before invoking the handler.
func Validate(job models.Job, now time.Time) error {
	sch, ok := job.Schedule()
	if !ok {
		return fmt.Errorf("unknown schedule kind %q", job.ScheduleKind)
	}
	switch s := sch.(type) {
	case models.IntervalSchedule:
		if s.Every <= 0 {
			return fmt.Errorf("interval must be positive, got %ds", job.IntervalSec)
		}
	case models.CronSchedule:
		parsed, err := parser.Parse(s.Expression)
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Expression, err)
		}
		if !parsed.Next(now).After(now) {
			return fmt.Errorf("cron expression %q has no future occurrence", s.Expression)
		}
	}
	return nil
}

// NextOccurrenceAfter returns the first instant strictly after 'after'
// at which the cron expression matches.
func NextOccurrenceAfter(expr string, after time.Time) (time.Time, error) {
	sch, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sch.Next(after), nil
}
