// Package app contains the per-tick orchestrator. A tick is a bounded
// task: it scans the due set, processes each job under a lease, and
// terminates. Many instances may tick concurrently against one store;
// the lease's conditional update is the only arbiter between them.
// Recovery from a crashed holder is lazy — the lease expires and a later
// due-scan picks the job up again; there is no sweeper.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobtick/internal/history"
	"jobtick/internal/lock"
	"jobtick/internal/models"
	"jobtick/internal/registry"
	"jobtick/internal/repository"
	"jobtick/internal/schedule"
	"jobtick/internal/state"
)

const (
	DefaultLeaseDuration = 300 * time.Second
	DefaultBatchSize     = 100
)

// Options tune one scheduler instance.
type Options struct {
	LeaseDuration time.Duration
	BatchSize     int
}

// Scheduler composes the store, lease manager, handler registry and run
// recorder into the per-tick loop.
type Scheduler struct {
	repo     repository.JobRepository
	lease    lock.LeaseManager
	registry *registry.Registry
	recorder history.Recorder
	instance string
	opts     Options
	log      zerolog.Logger
}

func NewScheduler(repo repository.JobRepository, lease lock.LeaseManager, reg *registry.Registry, rec history.Recorder, log zerolog.Logger, opts Options) *Scheduler {
	if opts.LeaseDuration <= 0 {
		opts.LeaseDuration = DefaultLeaseDuration
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if rec == nil {
		rec = history.NopRecorder{}
	}
	instance := uuid.NewString()
	return &Scheduler{
		repo:     repo,
		lease:    lease,
		registry: reg,
		recorder: rec,
		instance: instance,
		opts:     opts,
		log:      log.With().Str("instance", instance).Logger(),
	}
}

// RunDueScheduledJobs executes one tick at the given instant and returns
// the aggregate statistics. Jobs are processed sequentially and in no
// guaranteed order; a failure in one job never aborts the rest of the
// tick. An empty due set performs no writes.
func (s *Scheduler) RunDueScheduledJobs(ctx context.Context, now time.Time) (models.TickStats, error) {
	var stats models.TickStats

	// Snapshot the whole due set before touching any job: committing a
	// job removes it from the due set, which would shift later pages
	// under an interleaved fetch and drop part of the scan.
	var due []models.Job
	page := 1
	for {
		result, err := s.repo.FetchDueJobs(ctx, now, page, s.opts.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("fetch due jobs: %w", err)
		}
		due = append(due, result.Items...)
		if !result.HasNextPage {
			break
		}
		page++
	}

	for _, job := range due {
		stats.Due++
		s.processJob(ctx, job, now, &stats)
	}

	return stats, nil
}

// processJob handles one due job: lease, lookup, execute, compute,
// commit, record. Every failure path is absorbed here.
func (s *Scheduler) processJob(ctx context.Context, job models.Job, now time.Time, stats *models.TickStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Skipped++
			s.log.Error().Str("task", job.TaskID).Interface("panic", r).Msg("job processing panicked")
		}
	}()

	acquired, err := s.lease.Acquire(ctx, job.TaskID, now, s.opts.LeaseDuration)
	if err != nil {
		stats.Skipped++
		s.log.Error().Err(err).Str("task", job.TaskID).Msg("lease acquire failed")
		return
	}
	if !acquired {
		// Another instance holds the lease, or the job was disabled
		// between the due-scan and now. Routine contention.
		stats.Skipped++
		s.log.Debug().Str("task", job.TaskID).Msg("lease held elsewhere, skipping")
		return
	}

	handler, ok := s.registry.Lookup(job.HandlerID)
	if !ok {
		stats.Skipped++
		s.disableJob(ctx, job, now, fmt.Sprintf("handler not found: %s", job.HandlerID))
		return
	}

	if err := schedule.Validate(job, now); err != nil {
		stats.Skipped++
		s.disableJob(ctx, job, now, err.Error())
		return
	}

	cfg := s.parseConfig(job)

	wallStart := time.Now()
	summary, runErr := s.runHandler(ctx, handler, registry.Run{
		TaskID: job.TaskID,
		Now:    now,
		Config: cfg,
	})
	duration := time.Since(wallStart)
	startedAt := now
	finishedAt := now.Add(duration)

	outcome := state.StatusSuccess
	errMsg := ""
	if runErr != nil {
		outcome = state.StatusFailure
		errMsg = runErr.Error()
	}

	stats.Executed++
	if outcome == state.StatusFailure {
		stats.Failed++
		s.log.Warn().Err(runErr).Str("task", job.TaskID).Dur("duration", duration).Msg("job failed")
	} else {
		s.log.Info().Str("task", job.TaskID).Dur("duration", duration).Msg("job succeeded")
	}

	res := schedule.Compute(job, outcome, now)
	commit := models.RunCommit{
		TaskID:            job.TaskID,
		Status:            outcome,
		StartedAt:         startedAt,
		FinishedAt:        finishedAt,
		NextRunAfter:      res.NextRunAfter,
		Enabled:           res.Enabled,
		RunCountDelta:     res.RunCountDelta,
		FailureCountDelta: res.FailureCountDelta,
	}
	if err := s.repo.CommitRun(ctx, commit); err != nil {
		// The lease stays on the row and expires on its own; the next
		// due-scan that observes it stale retries the job.
		s.log.Error().Err(err).Str("task", job.TaskID).Msg("run commit failed")
		return
	}

	s.record(ctx, models.RunRecord{
		TaskID:       job.TaskID,
		Status:       outcome,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		DurationMS:   duration.Milliseconds(),
		Summary:      summary,
		ErrorMessage: errMsg,
	})
}

// runHandler isolates a panicking handler, converting the panic into a
// failure outcome for this job only.
func (s *Scheduler) runHandler(ctx context.Context, handler registry.HandlerFunc, run registry.Run) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, run)
}

// parseConfig decodes the job's config document. A malformed document is
// tolerated: the handler gets an empty one.
func (s *Scheduler) parseConfig(job models.Job) map[string]any {
	cfg := map[string]any{}
	if len(job.Config) == 0 {
		return cfg
	}
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		s.log.Warn().Err(err).Str("task", job.TaskID).Msg("invalid job config, using empty document")
		return map[string]any{}
	}
	return cfg
}

// disableJob commits a disabled, schedule-cleared state for a job that
// cannot run: missing handler or invalid schedule configuration. The
// attempt is classified as a skip, so neither counter moves. Note that a
// missing handler disables the job exactly like a bad schedule does; an
// external re-enable is required once the handler is deployed.
func (s *Scheduler) disableJob(ctx context.Context, job models.Job, now time.Time, reason string) {
	s.log.Warn().Str("task", job.TaskID).Str("reason", reason).Msg("disabling job")

	commit := models.RunCommit{
		TaskID:     job.TaskID,
		Status:     state.StatusSkipped,
		StartedAt:  now,
		FinishedAt: now,
		Enabled:    false,
	}
	if err := s.repo.CommitRun(ctx, commit); err != nil {
		s.log.Error().Err(err).Str("task", job.TaskID).Msg("disable commit failed")
		return
	}

	s.record(ctx, models.RunRecord{
		TaskID:       job.TaskID,
		Status:       state.StatusSkipped,
		StartedAt:    now,
		FinishedAt:   now,
		ErrorMessage: reason,
	})
}

// record is the explicit best-effort channel for run history: errors are
// logged and dropped, never propagated to the committed job state.
func (s *Scheduler) record(ctx context.Context, rec models.RunRecord) {
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.log.Warn().Err(err).Str("task", rec.TaskID).Msg("run history record failed")
	}
}
