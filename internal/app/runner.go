package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Runner invokes scheduler ticks on a fixed interval until the context
// ends. Each tick is bounded; a slow tick delays the next one rather
// than overlapping with it.
type Runner struct {
	sched    *Scheduler
	interval time.Duration
	log      zerolog.Logger
}

func NewRunner(sched *Scheduler, interval time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		sched:    sched,
		interval: interval,
		log:      log,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("scheduler runner started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("scheduler runner stopped")
			return ctx.Err()
		case <-ticker.C:
			stats, err := r.sched.RunDueScheduledJobs(ctx, time.Now().UTC())
			if err != nil {
				r.log.Error().Err(err).Msg("tick failed")
				continue
			}
			if stats.Due > 0 {
				r.log.Info().
					Int("due", stats.Due).
					Int("executed", stats.Executed).
					Int("skipped", stats.Skipped).
					Int("failed", stats.Failed).
					Msg("tick completed")
			}
		}
	}
}
