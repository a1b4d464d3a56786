package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/atelier-dev/atelier/internal/postgres"
)

// MemoryDB backs the querier interfaces the pipeline consumes with one
// in-memory state, so a test can observe cross-component effects (run
// status, stored versions) after an operation completes.
//
// The zero value is not usable; create with NewMemoryDB. The exported
// maps may be inspected directly once all goroutines are done.
type MemoryDB struct {
	mu sync.Mutex

	Conversations map[string]postgres.Conversation
	Presets       map[string]postgres.StylePreset
	Runs          map[uuid.UUID]postgres.Run
	Artifacts     map[uuid.UUID]postgres.Artifact
	Versions      map[uuid.UUID][]postgres.ArtifactVersion
}

// NewMemoryDB creates a MemoryDB seeded with the default style presets.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		Conversations: make(map[string]postgres.Conversation),
		Presets: map[string]postgres.StylePreset{
			"normal":  {Slug: "normal", Name: "Normal", Tone: "balanced", Params: []byte(`{}`)},
			"concise": {Slug: "concise", Name: "Concise", Tone: "short", Params: []byte(`{"temperature":0.3,"max_tokens":256}`)},
		},
		Runs:      make(map[uuid.UUID]postgres.Run),
		Artifacts: make(map[uuid.UUID]postgres.Artifact),
		Versions:  make(map[uuid.UUID][]postgres.ArtifactVersion),
	}
}

// PgUUID wraps a uuid.UUID in a valid pgtype.UUID.
func PgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func tsNow() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}

func (db *MemoryDB) EnsureConversation(ctx context.Context, arg postgres.EnsureConversationParams) (postgres.Conversation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.Conversations[arg.ID]; ok {
		return c, nil
	}
	c := postgres.Conversation{ID: arg.ID, ProjectID: arg.ProjectID, CreatedAt: tsNow(), UpdatedAt: tsNow()}
	db.Conversations[arg.ID] = c
	return c, nil
}

func (db *MemoryDB) GetConversation(ctx context.Context, id string) (postgres.Conversation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.Conversations[id]
	if !ok {
		return postgres.Conversation{}, pgx.ErrNoRows
	}
	return c, nil
}

func (db *MemoryDB) SetConversationStyle(ctx context.Context, arg postgres.SetConversationStyleParams) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.Conversations[arg.ID]
	if !ok {
		c = postgres.Conversation{ID: arg.ID, ProjectID: arg.ProjectID, CreatedAt: tsNow()}
	}
	slug := arg.StyleSlug
	c.ActiveStyleSlug = &slug
	c.UpdatedAt = tsNow()
	db.Conversations[arg.ID] = c
	return nil
}

func (db *MemoryDB) ListStylePresets(ctx context.Context) ([]postgres.StylePreset, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]postgres.StylePreset, 0, len(db.Presets))
	for _, p := range db.Presets {
		out = append(out, p)
	}
	// The real query orders by display name.
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (db *MemoryDB) GetStylePreset(ctx context.Context, slug string) (postgres.StylePreset, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.Presets[slug]
	if !ok {
		return postgres.StylePreset{}, pgx.ErrNoRows
	}
	return p, nil
}

func (db *MemoryDB) CreateRun(ctx context.Context, arg postgres.CreateRunParams) (postgres.Run, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	row := postgres.Run{ID: PgUUID(uuid.New()), ProjectID: arg.ProjectID, Status: arg.Status, CreatedAt: tsNow(), UpdatedAt: tsNow()}
	db.Runs[row.ID.Bytes] = row
	return row, nil
}

func (db *MemoryDB) GetRun(ctx context.Context, id pgtype.UUID) (postgres.Run, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	row, ok := db.Runs[id.Bytes]
	if !ok {
		return postgres.Run{}, pgx.ErrNoRows
	}
	return row, nil
}

func (db *MemoryDB) TransitionRun(ctx context.Context, arg postgres.TransitionRunParams) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	row, ok := db.Runs[arg.ID.Bytes]
	if !ok || row.Status == "done" || row.Status == "error" {
		return 0, nil
	}
	if statusRank(row.Status) > statusRank(arg.Status) {
		return 0, nil
	}
	row.Status = arg.Status
	if arg.ArtifactID.Valid {
		row.ArtifactID = arg.ArtifactID
	}
	if arg.ErrorMessage != nil {
		row.ErrorMessage = arg.ErrorMessage
	}
	row.UpdatedAt = tsNow()
	db.Runs[arg.ID.Bytes] = row
	return 1, nil
}

func statusRank(status string) int {
	switch status {
	case "pending":
		return 0
	case "running":
		return 1
	default:
		return 2
	}
}

func (db *MemoryDB) CreateArtifact(ctx context.Context, arg postgres.CreateArtifactParams) (postgres.Artifact, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	row := postgres.Artifact{ID: PgUUID(uuid.New()), ProjectID: arg.ProjectID, Name: arg.Name, Type: arg.Type, CreatedAt: tsNow()}
	db.Artifacts[row.ID.Bytes] = row
	return row, nil
}

func (db *MemoryDB) GetArtifact(ctx context.Context, id pgtype.UUID) (postgres.Artifact, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	row, ok := db.Artifacts[id.Bytes]
	if !ok {
		return postgres.Artifact{}, pgx.ErrNoRows
	}
	return row, nil
}

func (db *MemoryDB) ListVersions(ctx context.Context, artifactID pgtype.UUID) ([]postgres.ArtifactVersion, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]postgres.ArtifactVersion(nil), db.Versions[artifactID.Bytes]...), nil
}

func (db *MemoryDB) MaxVersionNumber(ctx context.Context, artifactID pgtype.UUID) (int32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var maxN int32
	for _, v := range db.Versions[artifactID.Bytes] {
		if v.VersionNumber > maxN {
			maxN = v.VersionNumber
		}
	}
	return maxN, nil
}

func (db *MemoryDB) InsertVersion(ctx context.Context, arg postgres.InsertVersionParams) (postgres.ArtifactVersion, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	row := postgres.ArtifactVersion{
		ID:            PgUUID(uuid.New()),
		ArtifactID:    arg.ArtifactID,
		VersionNumber: arg.VersionNumber,
		Content:       arg.Content,
		ModelName:     arg.ModelName,
		Params:        arg.Params,
		RunID:         arg.RunID,
		CreatedAt:     tsNow(),
	}
	db.Versions[arg.ArtifactID.Bytes] = append(db.Versions[arg.ArtifactID.Bytes], row)
	return row, nil
}

func (db *MemoryDB) GetVersion(ctx context.Context, id pgtype.UUID) (postgres.ArtifactVersion, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, versions := range db.Versions {
		for _, v := range versions {
			if v.ID.Bytes == id.Bytes {
				return v, nil
			}
		}
	}
	return postgres.ArtifactVersion{}, pgx.ErrNoRows
}
