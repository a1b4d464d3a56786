package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const ensureConversation = `
INSERT INTO conversations (id, project_id)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET updated_at = now()
RETURNING id, project_id, active_style_slug, created_at, updated_at
`

// EnsureConversationParams identifies a conversation, creating it on first use.
type EnsureConversationParams struct {
	ID        string
	ProjectID pgtype.UUID
}

// EnsureConversation returns the conversation row, inserting it if absent.
func (q *Queries) EnsureConversation(ctx context.Context, arg EnsureConversationParams) (Conversation, error) {
	row := q.db.QueryRow(ctx, ensureConversation, arg.ID, arg.ProjectID)
	var c Conversation
	err := row.Scan(&c.ID, &c.ProjectID, &c.ActiveStyleSlug, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getConversation = `
SELECT id, project_id, active_style_slug, created_at, updated_at
FROM conversations
WHERE id = $1
`

// GetConversation finds a conversation by id.
func (q *Queries) GetConversation(ctx context.Context, id string) (Conversation, error) {
	row := q.db.QueryRow(ctx, getConversation, id)
	var c Conversation
	err := row.Scan(&c.ID, &c.ProjectID, &c.ActiveStyleSlug, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const setConversationStyle = `
INSERT INTO conversations (id, project_id, active_style_slug)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET active_style_slug = $3, updated_at = now()
`

// SetConversationStyleParams overwrites a conversation's active style slug.
type SetConversationStyleParams struct {
	ID        string
	ProjectID pgtype.UUID
	StyleSlug string
}

// SetConversationStyle records the active style for a conversation,
// creating the conversation row on first use. Last write wins.
func (q *Queries) SetConversationStyle(ctx context.Context, arg SetConversationStyleParams) error {
	_, err := q.db.Exec(ctx, setConversationStyle, arg.ID, arg.ProjectID, arg.StyleSlug)
	return err
}
