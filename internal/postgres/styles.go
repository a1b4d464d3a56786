package postgres

import (
	"context"
)

const listStylePresets = `
SELECT slug, name, tone, params
FROM style_presets
ORDER BY name ASC
`

// ListStylePresets returns all presets ordered by name ascending.
func (q *Queries) ListStylePresets(ctx context.Context) ([]StylePreset, error) {
	rows, err := q.db.Query(ctx, listStylePresets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StylePreset
	for rows.Next() {
		var p StylePreset
		if err := rows.Scan(&p.Slug, &p.Name, &p.Tone, &p.Params); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getStylePreset = `
SELECT slug, name, tone, params
FROM style_presets
WHERE slug = $1
`

// GetStylePreset finds a preset by slug.
func (q *Queries) GetStylePreset(ctx context.Context, slug string) (StylePreset, error) {
	row := q.db.QueryRow(ctx, getStylePreset, slug)
	var p StylePreset
	err := row.Scan(&p.Slug, &p.Name, &p.Tone, &p.Params)
	return p, err
}
