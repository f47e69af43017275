// Package lock implements mutual exclusion for job execution. There is
// no lock service: the lease lives on the job row itself, and the
// store's single conditional update arbitrates every race.
package lock

import (
	"context"
	"time"

	"jobtick/internal/repository"
)

// LeaseManager grants a time-bounded exclusive execution right for one
// task across independent scheduler instances.
type LeaseManager interface {
	// Acquire obtains the lease until now+leaseDuration, or reports
	// false when another holder has it or the job was concurrently
	// disabled. A false return is contention, not an error.
	Acquire(ctx context.Context, taskID string, now time.Time, leaseDuration time.Duration) (bool, error)
}

// StoreLeaseManager arbitrates leases through the job repository's
// atomic conditional update. Release is implicit: the scheduler's final
// commit clears the lease, and a crashed holder's lease simply expires.
type StoreLeaseManager struct {
	repo repository.JobRepository
}

func NewStoreLeaseManager(repo repository.JobRepository) *StoreLeaseManager {
	return &StoreLeaseManager{repo: repo}
}

func (m *StoreLeaseManager) Acquire(ctx context.Context, taskID string, now time.Time, leaseDuration time.Duration) (bool, error) {
	return m.repo.AcquireLease(ctx, taskID, now, now.Add(leaseDuration))
}
