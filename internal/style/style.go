// Package style resolves per-conversation behavioral presets.
//
// A preset is a named bundle of generation-tone parameters. Each
// conversation has at most one active slug at a time; setting it is
// last-write-wins and scoped strictly to that conversation. The
// resolver only hands the preset's param bag to the ingestion
// controller, which folds it into outgoing requests.
package style

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/atelier-dev/atelier/internal/postgres"
)

// DefaultSlug is the preset applied when a conversation has none set.
const DefaultSlug = "normal"

// Sentinel errors for style operations.
var (
	// ErrNotFound is returned when the requested preset slug is unknown.
	ErrNotFound = errors.New("style preset not found")
)

// Preset is an immutable-per-fetch named configuration.
type Preset struct {
	Slug   string         `json:"slug"`
	Name   string         `json:"name"`
	Tone   string         `json:"toneDescription"`
	Params map[string]any `json:"params"`
}

// Querier defines the database operations the resolver needs.
type Querier interface {
	ListStylePresets(ctx context.Context) ([]postgres.StylePreset, error)
	GetStylePreset(ctx context.Context, slug string) (postgres.StylePreset, error)
	GetConversation(ctx context.Context, id string) (postgres.Conversation, error)
	SetConversationStyle(ctx context.Context, arg postgres.SetConversationStyleParams) error
}

// Resolver reads presets and manages the per-conversation active slug.
// Safe for concurrent use.
type Resolver struct {
	querier Querier
	logger  *slog.Logger
}

// NewResolver creates a Resolver. A nil logger falls back to slog.Default().
func NewResolver(querier Querier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{querier: querier, logger: logger}
}

// List returns all presets ordered by name ascending.
func (r *Resolver) List(ctx context.Context) ([]*Preset, error) {
	rows, err := r.querier.ListStylePresets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing style presets: %w", err)
	}

	presets := make([]*Preset, 0, len(rows))
	for _, row := range rows {
		p, err := rowToPreset(row)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, nil
}

// Get retrieves one preset by slug. Returns ErrNotFound if absent.
func (r *Resolver) Get(ctx context.Context, slug string) (*Preset, error) {
	row, err := r.querier.GetStylePreset(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting style preset %q: %w", slug, err)
	}
	return rowToPreset(row)
}

// SetActive overwrites the conversation's active slug unconditionally.
// Idempotent; fails with ErrNotFound when the slug is unknown. The
// conversation row is created on first use so the slug has a durable,
// conversation-scoped home.
func (r *Resolver) SetActive(ctx context.Context, conversationID, slug string) error {
	if _, err := r.Get(ctx, slug); err != nil {
		return err
	}

	err := r.querier.SetConversationStyle(ctx, postgres.SetConversationStyleParams{
		ID:        conversationID,
		ProjectID: pgtype.UUID{Bytes: uuid.New(), Valid: true},
		StyleSlug: slug,
	})
	if err != nil {
		return fmt.Errorf("setting style for conversation %s: %w", conversationID, err)
	}

	r.logger.Debug("style activated", "conversation_id", conversationID, "slug", slug)
	return nil
}

// Active resolves the conversation's current preset, falling back to
// DefaultSlug when the conversation is unknown or has no slug set.
func (r *Resolver) Active(ctx context.Context, conversationID string) (*Preset, error) {
	conv, err := r.querier.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.Get(ctx, DefaultSlug)
		}
		return nil, fmt.Errorf("getting conversation %s: %w", conversationID, err)
	}

	slug := DefaultSlug
	if conv.ActiveStyleSlug != nil && *conv.ActiveStyleSlug != "" {
		slug = *conv.ActiveStyleSlug
	}
	return r.Get(ctx, slug)
}

func rowToPreset(row postgres.StylePreset) (*Preset, error) {
	p := &Preset{
		Slug:   row.Slug,
		Name:   row.Name,
		Tone:   row.Tone,
		Params: map[string]any{},
	}
	if len(row.Params) > 0 {
		if err := json.Unmarshal(row.Params, &p.Params); err != nil {
			return nil, fmt.Errorf("decoding params for preset %q: %w", row.Slug, err)
		}
	}
	return p, nil
}
