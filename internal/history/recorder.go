// Package history keeps the append-only run log. Recording is
// best-effort by contract: the scheduler logs a recorder error and moves
// on, and a lost history row never rolls back the job's committed state.
package history

import (
	"context"

	"jobtick/internal/models"
)

// Recorder persists one execution outcome.
type Recorder interface {
	Record(ctx context.Context, rec models.RunRecord) error
}

// NopRecorder discards every record.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, models.RunRecord) error {
	return nil
}
