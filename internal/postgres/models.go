package postgres

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Conversation is a chat thread row. ActiveStyleSlug is mutable,
// last-write-wins; everything else is set at creation.
type Conversation struct {
	ID              string
	ProjectID       pgtype.UUID
	ActiveStyleSlug *string
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// StylePreset is a named bundle of generation-tone parameters.
// Rows are read-only to the application; Params is a JSONB bag.
type StylePreset struct {
	Slug   string
	Name   string
	Tone   string
	Params []byte
}

// Run is one generation attempt's lifecycle record.
type Run struct {
	ID           pgtype.UUID
	ProjectID    pgtype.UUID
	Status       string
	ArtifactID   pgtype.UUID
	ErrorMessage *string
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// Artifact is a named, typed reusable output owning a version history.
type Artifact struct {
	ID        pgtype.UUID
	ProjectID pgtype.UUID
	Name      string
	Type      string
	CreatedAt pgtype.Timestamptz
}

// ArtifactVersion is one immutable snapshot of an artifact's content
// plus the model/params that produced it. Params is a JSONB bag.
type ArtifactVersion struct {
	ID            pgtype.UUID
	ArtifactID    pgtype.UUID
	VersionNumber int32
	Content       string
	ModelName     string
	Params        []byte
	RunID         pgtype.UUID
	CreatedAt     pgtype.Timestamptz
}
