package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createRun = `
INSERT INTO runs (project_id, status)
VALUES ($1, $2)
RETURNING id, project_id, status, artifact_id, error_message, created_at, updated_at
`

// CreateRunParams opens a new run record.
type CreateRunParams struct {
	ProjectID pgtype.UUID
	Status    string
}

// CreateRun inserts a run and returns the stored row.
func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (Run, error) {
	row := q.db.QueryRow(ctx, createRun, arg.ProjectID, arg.Status)
	var r Run
	err := row.Scan(&r.ID, &r.ProjectID, &r.Status, &r.ArtifactID, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const getRun = `
SELECT id, project_id, status, artifact_id, error_message, created_at, updated_at
FROM runs
WHERE id = $1
`

// GetRun finds a run by id.
func (q *Queries) GetRun(ctx context.Context, id pgtype.UUID) (Run, error) {
	row := q.db.QueryRow(ctx, getRun, id)
	var r Run
	err := row.Scan(&r.ID, &r.ProjectID, &r.Status, &r.ArtifactID, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// transitionRun enforces status monotonicity in the predicate itself:
// terminal rows never match, and a matched row's rank never decreases.
// A concurrent reader therefore never observes a status regression.
const transitionRun = `
UPDATE runs
SET status = $2,
    artifact_id = COALESCE($3, artifact_id),
    error_message = COALESCE($4, error_message),
    updated_at = now()
WHERE id = $1
  AND status NOT IN ('done', 'error')
  AND (CASE status WHEN 'pending' THEN 0 WHEN 'running' THEN 1 ELSE 2 END)
      <= (CASE $2 WHEN 'pending' THEN 0 WHEN 'running' THEN 1 ELSE 2 END)
`

// TransitionRunParams moves a run to a new status. ArtifactID and
// ErrorMessage are applied only when valid/non-nil.
type TransitionRunParams struct {
	ID           pgtype.UUID
	Status       string
	ArtifactID   pgtype.UUID
	ErrorMessage *string
}

// TransitionRun applies a monotonic status transition and reports how
// many rows matched (0 = unknown run or illegal transition).
func (q *Queries) TransitionRun(ctx context.Context, arg TransitionRunParams) (int64, error) {
	tag, err := q.db.Exec(ctx, transitionRun, arg.ID, arg.Status, arg.ArtifactID, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
