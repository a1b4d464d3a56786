package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/atelier-dev/atelier/internal/postgres"
)

// Querier defines the database operations the tracker needs.
// Interfaces are defined by the consumer, not the provider.
type Querier interface {
	CreateRun(ctx context.Context, arg postgres.CreateRunParams) (postgres.Run, error)
	GetRun(ctx context.Context, id pgtype.UUID) (postgres.Run, error)
	TransitionRun(ctx context.Context, arg postgres.TransitionRunParams) (int64, error)
}

// Tracker manages run lifecycle records.
//
// Tracker is safe for concurrent use; the monotonicity guarantee is
// enforced in the transition predicate, not by a process-wide lock.
type Tracker struct {
	querier Querier
	logger  *slog.Logger
}

// NewTracker creates a Tracker. A nil logger falls back to slog.Default().
func NewTracker(querier Querier, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{querier: querier, logger: logger}
}

// Open creates a new run for a project in the pending state.
func (t *Tracker) Open(ctx context.Context, projectID uuid.UUID) (*Run, error) {
	row, err := t.querier.CreateRun(ctx, postgres.CreateRunParams{
		ProjectID: uuidToPg(projectID),
		Status:    string(StatusPending),
	})
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	r := rowToRun(row)
	t.logger.Debug("opened run", "run_id", r.ID, "project_id", projectID)
	return r, nil
}

// Get retrieves a run by id. Returns ErrNotFound if absent.
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	row, err := t.querier.GetRun(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}
	return rowToRun(row), nil
}

// Transition moves a run to status. Returns ErrInvalidTransition when
// the change would regress the status or leave a terminal state, and
// ErrNotFound when the run does not exist.
func (t *Tracker) Transition(ctx context.Context, id uuid.UUID, status Status) error {
	return t.transition(ctx, id, status, nil, nil)
}

// Done marks a run done, optionally linking the artifact it produced.
func (t *Tracker) Done(ctx context.Context, id uuid.UUID, artifactID *uuid.UUID) error {
	return t.transition(ctx, id, StatusDone, artifactID, nil)
}

// Fail marks a run as errored with the upstream error message attached.
func (t *Tracker) Fail(ctx context.Context, id uuid.UUID, cause string) error {
	return t.transition(ctx, id, StatusError, nil, &cause)
}

func (t *Tracker) transition(ctx context.Context, id uuid.UUID, status Status, artifactID *uuid.UUID, errMsg *string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var pgArtifact pgtype.UUID
	if artifactID != nil {
		pgArtifact = uuidToPg(*artifactID)
	}

	affected, err := t.querier.TransitionRun(ctx, postgres.TransitionRunParams{
		ID:           uuidToPg(id),
		Status:       string(status),
		ArtifactID:   pgArtifact,
		ErrorMessage: errMsg,
	})
	if err != nil {
		return fmt.Errorf("transitioning run %s to %s: %w", id, status, err)
	}
	if affected > 0 {
		t.logger.Debug("run transitioned", "run_id", id, "status", status)
		return nil
	}

	// Zero rows: the run is missing, terminal, or the transition would
	// move it backwards. Distinguish for the caller.
	if _, err := t.querier.GetRun(ctx, uuidToPg(id)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("checking run %s after rejected transition: %w", id, err)
	}
	return fmt.Errorf("%w: run %s to %s", ErrInvalidTransition, id, status)
}

// rowToRun converts a postgres.Run row to the application type.
func rowToRun(row postgres.Run) *Run {
	r := &Run{
		ID:        pgToUUID(row.ID),
		ProjectID: pgToUUID(row.ProjectID),
		Status:    Status(row.Status),
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.ArtifactID.Valid {
		id := pgToUUID(row.ArtifactID)
		r.ArtifactID = &id
	}
	if row.ErrorMessage != nil {
		r.Error = *row.ErrorMessage
	}
	return r
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
