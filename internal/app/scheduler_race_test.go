package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtick/internal/history"
	"jobtick/internal/lock"
	"jobtick/internal/models"
	"jobtick/internal/registry"
)

// memoryJobRepository is a stateful in-memory store whose AcquireLease
// performs the check-and-set under one mutex hold, mirroring the atomic
// conditional update of the SQL stores.
type memoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	// raceBarrier, when set, holds every CommitRun until the expected
	// number of AcquireLease attempts have resolved. This forces the
	// acquire race instead of leaving it to goroutine timing: no lease
	// can be cleared while another acquirer is still in flight.
	raceBarrier *sync.WaitGroup
}

func newMemoryJobRepository(jobs ...models.Job) *memoryJobRepository {
	m := &memoryJobRepository{jobs: make(map[string]*models.Job)}
	for i := range jobs {
		job := jobs[i]
		m.jobs[job.TaskID] = &job
	}
	return m
}

func (m *memoryJobRepository) AddOrUpdate(ctx context.Context, job models.Job) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.TaskID] = &job
	return int64(len(m.jobs)), nil
}

func (m *memoryJobRepository) FindByTaskID(ctx context.Context, taskID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[taskID]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (m *memoryJobRepository) FetchDueJobs(ctx context.Context, now time.Time, page, pageSize int) (*models.PaginationResult[models.Job], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Job
	for _, job := range m.jobs {
		if job.Enabled && (job.NextRunAfter == nil || !job.NextRunAfter.After(now)) {
			due = append(due, *job)
		}
	}
	return models.NewPaginationResult(due, len(due), page, pageSize), nil
}

func (m *memoryJobRepository) GetAll(ctx context.Context, page, pageSize int) (*models.PaginationResult[models.Job], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Job
	for _, job := range m.jobs {
		all = append(all, *job)
	}
	return models.NewPaginationResult(all, len(all), page, pageSize), nil
}

func (m *memoryJobRepository) AcquireLease(ctx context.Context, taskID string, now, until time.Time) (bool, error) {
	m.mu.Lock()
	acquired := false
	if job, ok := m.jobs[taskID]; ok && job.Enabled {
		if job.LockUntil == nil || !job.LockUntil.After(now) {
			job.LockUntil = &until
			acquired = true
		}
	}
	m.mu.Unlock()

	if m.raceBarrier != nil {
		m.raceBarrier.Done()
	}
	return acquired, nil
}

func (m *memoryJobRepository) CommitRun(ctx context.Context, c models.RunCommit) error {
	if m.raceBarrier != nil {
		m.raceBarrier.Wait()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[c.TaskID]
	if !ok {
		return nil
	}
	job.LockUntil = nil
	job.Enabled = c.Enabled
	job.NextRunAfter = c.NextRunAfter
	status := c.Status
	job.LastRunStatus = &status
	started, finished := c.StartedAt, c.FinishedAt
	job.LastRunStartedAt = &started
	job.LastRunFinishedAt = &finished
	job.RunCount += c.RunCountDelta
	job.FailureCount += c.FailureCountDelta
	return nil
}

func (m *memoryJobRepository) Activate(ctx context.Context, taskID string) error {
	return m.setEnabled(taskID, true)
}

func (m *memoryJobRepository) DeActivate(ctx context.Context, taskID string) error {
	return m.setEnabled(taskID, false)
}

func (m *memoryJobRepository) setEnabled(taskID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[taskID]; ok {
		job.Enabled = enabled
	}
	return nil
}

func (m *memoryJobRepository) Close() error { return nil }

func TestConcurrentTicks_ExactlyOneExecutes(t *testing.T) {
	repo := newMemoryJobRepository(intervalJob("contested", 3600))

	var barrier sync.WaitGroup
	barrier.Add(2)
	repo.raceBarrier = &barrier

	reg := registry.NewRegistry()
	var runMu sync.Mutex
	runs := 0
	require.NoError(t, reg.Register("work", func(ctx context.Context, run registry.Run) (string, error) {
		runMu.Lock()
		runs++
		runMu.Unlock()
		return "ok", nil
	}))

	newInstance := func() *Scheduler {
		return NewScheduler(repo, lock.NewStoreLeaseManager(repo), reg, history.NopRecorder{}, zerolog.Nop(), Options{})
	}

	var wg sync.WaitGroup
	results := make([]models.TickStats, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats, err := newInstance().RunDueScheduledJobs(context.Background(), tickNow)
			assert.NoError(t, err)
			results[i] = stats
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, results[0].Executed+results[1].Executed)
	assert.Equal(t, 1, results[0].Skipped+results[1].Skipped)
	assert.Equal(t, 2, results[0].Due+results[1].Due)

	job, err := repo.FindByTaskID(context.Background(), "contested")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(1), job.RunCount)
	assert.Nil(t, job.LockUntil, "commit clears the lease")
	require.NotNil(t, job.NextRunAfter)
	assert.Equal(t, tickNow.Add(time.Hour), *job.NextRunAfter)
}

func TestTick_DisabledJobIsNeverMutated(t *testing.T) {
	job := intervalJob("dormant", 60)
	job.Enabled = false
	repo := newMemoryJobRepository(job)

	sched := NewScheduler(repo, lock.NewStoreLeaseManager(repo), registry.NewRegistry(), history.NopRecorder{}, zerolog.Nop(), Options{})
	stats, err := sched.RunDueScheduledJobs(context.Background(), tickNow)

	require.NoError(t, err)
	assert.Equal(t, models.TickStats{}, stats)

	after, err := repo.FindByTaskID(context.Background(), "dormant")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.False(t, after.Enabled)
	assert.Equal(t, int64(0), after.RunCount)
	assert.Nil(t, after.LastRunStatus)
}

func TestTick_ExpiredLeaseIsReacquired(t *testing.T) {
	job := intervalJob("stale", 3600)
	expired := tickNow.Add(-time.Minute)
	job.LockUntil = &expired
	repo := newMemoryJobRepository(job)

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("work", func(ctx context.Context, run registry.Run) (string, error) {
		return "recovered", nil
	}))

	sched := NewScheduler(repo, lock.NewStoreLeaseManager(repo), reg, history.NopRecorder{}, zerolog.Nop(), Options{})
	stats, err := sched.RunDueScheduledJobs(context.Background(), tickNow)

	require.NoError(t, err)
	assert.Equal(t, models.TickStats{Due: 1, Executed: 1}, stats)
}
