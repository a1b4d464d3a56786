package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-dev/atelier/internal/postgres"
)

// Querier defines the database operations the store needs.
// Interfaces are defined by the consumer, not the provider.
type Querier interface {
	CreateArtifact(ctx context.Context, arg postgres.CreateArtifactParams) (postgres.Artifact, error)
	GetArtifact(ctx context.Context, id pgtype.UUID) (postgres.Artifact, error)
	ListVersions(ctx context.Context, artifactID pgtype.UUID) ([]postgres.ArtifactVersion, error)
	MaxVersionNumber(ctx context.Context, artifactID pgtype.UUID) (int32, error)
	InsertVersion(ctx context.Context, arg postgres.InsertVersionParams) (postgres.ArtifactVersion, error)
	GetVersion(ctx context.Context, id pgtype.UUID) (postgres.ArtifactVersion, error)
}

// Store manages artifact persistence with a PostgreSQL backend.
//
// The version sequence per artifact is append-only and gapless.
// Concurrent appends on different artifacts proceed freely; appends on
// the same artifact serialize on the artifact row lock taken inside
// AppendVersion's transaction.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // Transaction support; nil in unit tests
	logger  *slog.Logger
}

// New creates a Store. pool may be nil when testing with a mock
// querier; version appends then skip the transactional path.
func New(querier Querier, pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, pool: pool, logger: logger}
}

// Create makes a new artifact with an empty version history.
func (s *Store) Create(ctx context.Context, projectID uuid.UUID, name, artifactType string) (*Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	row, err := s.querier.CreateArtifact(ctx, postgres.CreateArtifactParams{
		ProjectID: uuidToPg(projectID),
		Name:      name,
		Type:      artifactType,
	})
	if err != nil {
		return nil, fmt.Errorf("creating artifact %q: %w", name, err)
	}

	a := rowToArtifact(row)
	s.logger.Debug("created artifact", "artifact_id", a.ID, "name", name, "type", artifactType)
	return a, nil
}

// Get retrieves an artifact with all its versions ordered by version
// number ascending. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Artifact, error) {
	row, err := s.querier.GetArtifact(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting artifact %s: %w", id, err)
	}

	versionRows, err := s.querier.ListVersions(ctx, uuidToPg(id))
	if err != nil {
		return nil, fmt.Errorf("listing versions for artifact %s: %w", id, err)
	}

	a := rowToArtifact(row)
	a.Versions = make([]*Version, 0, len(versionRows))
	for _, vr := range versionRows {
		v, err := rowToVersion(vr)
		if err != nil {
			return nil, err
		}
		a.Versions = append(a.Versions, v)
	}
	return a, nil
}

// GetVersion retrieves a single version by id. Returns ErrNotFound if
// absent.
func (s *Store) GetVersion(ctx context.Context, id uuid.UUID) (*Version, error) {
	row, err := s.querier.GetVersion(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting version %s: %w", id, err)
	}
	return rowToVersion(row)
}

// AppendVersion appends the next version to an artifact. The version
// number is assigned inside a transaction that locks the artifact row,
// so concurrent appends on the same artifact serialize and the
// sequence stays gapless. Returns ErrNotFound for an unknown artifact.
func (s *Store) AppendVersion(ctx context.Context, artifactID uuid.UUID, content, model string, params map[string]any, runID uuid.UUID) (*Version, error) {
	paramsJSON, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	// A nil pool means a mock querier test; skip the transaction.
	if s.pool == nil {
		return s.appendVersionNonTransactional(ctx, artifactID, content, model, paramsJSON, runID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	txQuerier := postgres.New(tx)

	// Serialization point: the row lock makes concurrent appends on this
	// artifact queue up, so max+1 below cannot be claimed twice.
	if _, err := txQuerier.LockArtifact(ctx, uuidToPg(artifactID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking artifact %s: %w", artifactID, err)
	}

	maxNumber, err := txQuerier.MaxVersionNumber(ctx, uuidToPg(artifactID))
	if err != nil {
		return nil, fmt.Errorf("reading max version for artifact %s: %w", artifactID, err)
	}

	row, err := txQuerier.InsertVersion(ctx, postgres.InsertVersionParams{
		ArtifactID:    uuidToPg(artifactID),
		VersionNumber: maxNumber + 1,
		Content:       content,
		ModelName:     model,
		Params:        paramsJSON,
		RunID:         uuidToPg(runID),
	})
	if err != nil {
		return nil, fmt.Errorf("inserting version for artifact %s: %w", artifactID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing version append: %w", err)
	}

	v, err := rowToVersion(row)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("appended version",
		"artifact_id", artifactID,
		"version", v.Number,
		"run_id", runID)
	return v, nil
}

// appendVersionNonTransactional is the mock-querier fallback. The mock
// is responsible for its own serialization.
func (s *Store) appendVersionNonTransactional(ctx context.Context, artifactID uuid.UUID, content, model string, paramsJSON []byte, runID uuid.UUID) (*Version, error) {
	if _, err := s.querier.GetArtifact(ctx, uuidToPg(artifactID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checking artifact %s: %w", artifactID, err)
	}

	maxNumber, err := s.querier.MaxVersionNumber(ctx, uuidToPg(artifactID))
	if err != nil {
		return nil, fmt.Errorf("reading max version for artifact %s: %w", artifactID, err)
	}

	row, err := s.querier.InsertVersion(ctx, postgres.InsertVersionParams{
		ArtifactID:    uuidToPg(artifactID),
		VersionNumber: maxNumber + 1,
		Content:       content,
		ModelName:     model,
		Params:        paramsJSON,
		RunID:         uuidToPg(runID),
	})
	if err != nil {
		return nil, fmt.Errorf("inserting version for artifact %s: %w", artifactID, err)
	}
	return rowToVersion(row)
}

func encodeParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	return data, nil
}

func rowToArtifact(row postgres.Artifact) *Artifact {
	return &Artifact{
		ID:        pgToUUID(row.ID),
		ProjectID: pgToUUID(row.ProjectID),
		Name:      row.Name,
		Type:      row.Type,
		CreatedAt: row.CreatedAt.Time,
	}
}

func rowToVersion(row postgres.ArtifactVersion) (*Version, error) {
	v := &Version{
		ID:         pgToUUID(row.ID),
		ArtifactID: pgToUUID(row.ArtifactID),
		Number:     int(row.VersionNumber),
		Content:    row.Content,
		Model:      row.ModelName,
		Params:     map[string]any{},
		RunID:      pgToUUID(row.RunID),
		CreatedAt:  row.CreatedAt.Time,
	}
	if len(row.Params) > 0 {
		if err := json.Unmarshal(row.Params, &v.Params); err != nil {
			return nil, fmt.Errorf("decoding params for version %s: %w", v.ID, err)
		}
	}
	return v, nil
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
