package state

import "time"

// RunStatus classifies the outcome of one execution attempt.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusFailure RunStatus = "failure"
	StatusSkipped RunStatus = "skipped"
)

func (s RunStatus) String() string {
	return string(s)
}

var AllStatuses = []RunStatus{
	StatusSuccess,
	StatusFailure,
	StatusSkipped,
}

// Attempted reports whether the outcome consumed a run attempt. Skips
// never count against a job's run counters.
func (s RunStatus) Attempted() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Phase is the scheduling state of a job as observed at a point in time.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLeased   Phase = "leased"
	PhaseDisabled Phase = "disabled"
)

// PhaseOf derives the phase from the persisted lease fields. An expired
// lease counts as idle: recovery from a crashed holder is lazy, so the
// row itself is the only record of the lease.
func PhaseOf(enabled bool, lockUntil *time.Time, now time.Time) Phase {
	if !enabled {
		return PhaseDisabled
	}
	if lockUntil != nil && lockUntil.After(now) {
		return PhaseLeased
	}
	return PhaseIdle
}

type Transition struct {
	From Phase
	To   Phase
}

var ValidTransitions = []Transition{
	{From: PhaseIdle, To: PhaseLeased},
	{From: PhaseLeased, To: PhaseIdle},
	{From: PhaseLeased, To: PhaseDisabled},
	{From: PhaseDisabled, To: PhaseIdle},
}

func IsValidTransition(from, to Phase) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
