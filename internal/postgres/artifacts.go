package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createArtifact = `
INSERT INTO artifacts (project_id, name, type)
VALUES ($1, $2, $3)
RETURNING id, project_id, name, type, created_at
`

// CreateArtifactParams creates a new artifact with no versions yet.
type CreateArtifactParams struct {
	ProjectID pgtype.UUID
	Name      string
	Type      string
}

// CreateArtifact inserts an artifact and returns the stored row.
func (q *Queries) CreateArtifact(ctx context.Context, arg CreateArtifactParams) (Artifact, error) {
	row := q.db.QueryRow(ctx, createArtifact, arg.ProjectID, arg.Name, arg.Type)
	var a Artifact
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Type, &a.CreatedAt)
	return a, err
}

const getArtifact = `
SELECT id, project_id, name, type, created_at
FROM artifacts
WHERE id = $1
`

// GetArtifact finds an artifact by id.
func (q *Queries) GetArtifact(ctx context.Context, id pgtype.UUID) (Artifact, error) {
	row := q.db.QueryRow(ctx, getArtifact, id)
	var a Artifact
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Type, &a.CreatedAt)
	return a, err
}

const lockArtifact = `
SELECT id FROM artifacts WHERE id = $1 FOR UPDATE
`

// LockArtifact takes a row lock on the artifact so concurrent version
// appends on the same artifact serialize. Call inside a transaction.
func (q *Queries) LockArtifact(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error) {
	row := q.db.QueryRow(ctx, lockArtifact, id)
	var locked pgtype.UUID
	err := row.Scan(&locked)
	return locked, err
}

const maxVersionNumber = `
SELECT COALESCE(MAX(version_number), 0)::int
FROM artifact_versions
WHERE artifact_id = $1
`

// MaxVersionNumber returns the highest version number for an artifact,
// or 0 when it has no versions.
func (q *Queries) MaxVersionNumber(ctx context.Context, artifactID pgtype.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, maxVersionNumber, artifactID)
	var n int32
	err := row.Scan(&n)
	return n, err
}

const insertVersion = `
INSERT INTO artifact_versions (artifact_id, version_number, content, model_name, params, run_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, artifact_id, version_number, content, model_name, params, run_id, created_at
`

// InsertVersionParams appends one immutable version snapshot.
type InsertVersionParams struct {
	ArtifactID    pgtype.UUID
	VersionNumber int32
	Content       string
	ModelName     string
	Params        []byte
	RunID         pgtype.UUID
}

// InsertVersion inserts a version row and returns it.
func (q *Queries) InsertVersion(ctx context.Context, arg InsertVersionParams) (ArtifactVersion, error) {
	row := q.db.QueryRow(ctx, insertVersion,
		arg.ArtifactID, arg.VersionNumber, arg.Content, arg.ModelName, arg.Params, arg.RunID)
	var v ArtifactVersion
	err := row.Scan(&v.ID, &v.ArtifactID, &v.VersionNumber, &v.Content, &v.ModelName, &v.Params, &v.RunID, &v.CreatedAt)
	return v, err
}

const listVersions = `
SELECT id, artifact_id, version_number, content, model_name, params, run_id, created_at
FROM artifact_versions
WHERE artifact_id = $1
ORDER BY version_number ASC
`

// ListVersions returns all versions of an artifact ordered by version
// number ascending.
func (q *Queries) ListVersions(ctx context.Context, artifactID pgtype.UUID) ([]ArtifactVersion, error) {
	rows, err := q.db.Query(ctx, listVersions, artifactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ArtifactVersion
	for rows.Next() {
		var v ArtifactVersion
		if err := rows.Scan(&v.ID, &v.ArtifactID, &v.VersionNumber, &v.Content, &v.ModelName, &v.Params, &v.RunID, &v.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const getVersion = `
SELECT id, artifact_id, version_number, content, model_name, params, run_id, created_at
FROM artifact_versions
WHERE id = $1
`

// GetVersion finds a version by id.
func (q *Queries) GetVersion(ctx context.Context, id pgtype.UUID) (ArtifactVersion, error) {
	row := q.db.QueryRow(ctx, getVersion, id)
	var v ArtifactVersion
	err := row.Scan(&v.ID, &v.ArtifactID, &v.VersionNumber, &v.Content, &v.ModelName, &v.Params, &v.RunID, &v.CreatedAt)
	return v, err
}
