// Package artifact owns the append-only version history of reusable
// model outputs.
//
// An Artifact is a named, typed output; its versions are immutable
// snapshots numbered 1..N with no gaps (never deleted, never
// renumbered). Each version pins the model name and parameter bag that
// produced it, which is what makes a historical version
// deterministically re-runnable.
package artifact

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is a named, typed reusable output with version history.
type Artifact struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	Type      string
	CreatedAt time.Time
	Versions  []*Version // Ordered by version number ascending
}

// Version is one immutable snapshot of an artifact's content plus the
// model/params that produced it. No setters: a correction is always a
// new version.
type Version struct {
	ID         uuid.UUID
	ArtifactID uuid.UUID
	Number     int
	Content    string
	Model      string
	Params     map[string]any
	RunID      uuid.UUID // The run that produced this version
	CreatedAt  time.Time
}
