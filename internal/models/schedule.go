package models

import "time"

// Schedule is the closed set of schedule shapes a job can carry. Only
// IntervalSchedule and CronSchedule implement it.
type Schedule interface {
	isSchedule()
}

// IntervalSchedule runs a fixed duration after each execution.
type IntervalSchedule struct {
	Every time.Duration
}

// CronSchedule runs at times matched by a five-field cron expression.
type CronSchedule struct {
	Expression string
}

func (IntervalSchedule) isSchedule() {}
func (CronSchedule) isSchedule()     {}

// Schedule maps the stored kind onto the closed union. ok is false when
// the stored kind is unknown, in which case the calculator disables the
// job rather than guessing.
func (j *Job) Schedule() (Schedule, bool) {
	switch j.ScheduleKind {
	case KindInterval:
		return IntervalSchedule{Every: time.Duration(j.IntervalSec) * time.Second}, true
	case KindCron:
		return CronSchedule{Expression: j.CronExpr}, true
	default:
		return nil, false
	}
}
