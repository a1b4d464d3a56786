// Package run tracks the lifecycle of generation attempts.
//
// A Run records one attempt (streamed ingestion or rerun) against a
// project, independent of whether it produces an artifact. Statuses
// move one way only: pending → running → done|error. Once terminal, a
// run never changes again, so a concurrent reader always observes a
// monotonically non-decreasing status.
package run

import (
	"time"

	"github.com/google/uuid"
)

// Status is a run lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// rank orders statuses for monotonicity checks. done and error share a
// rank: both are terminal and unordered relative to each other.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusDone, StatusError:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Run is one generation attempt's lifecycle record.
type Run struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Status     Status
	ArtifactID *uuid.UUID // Set when the run produced an artifact version
	Error      string     // Upstream error message for error runs
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
