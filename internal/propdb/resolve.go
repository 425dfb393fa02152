package propdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentic-research/facet/api"
)

// directQuery joins the EAV edge table to attributes and values for one
// entity. LEFT JOIN on the value table so edges without a value row surface
// as explicit nulls instead of disappearing.
const directQuery = `
SELECT a.category, a.display_name, v.value
FROM objects_eav e
JOIN objects_attr a ON a.id = e.attribute_id
LEFT JOIN objects_val v ON v.id = e.value_id
WHERE e.entity_id = ?`

// DirectProperties returns the properties stored directly on one entity,
// including the reserved parent pointer edge when present. An unknown entity
// id yields an empty map.
func (d *DB) DirectProperties(ctx context.Context, dbID int64) (map[api.AttrKey]api.Value, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, directQuery, dbID)
	if err != nil {
		return nil, fmt.Errorf("query properties of %d: %w", dbID, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	props := make(map[api.AttrKey]api.Value)
	for rows.Next() {
		var (
			key api.AttrKey
			raw sql.NullString
		)
		if err := rows.Scan(&key.Category, &key.Name, &raw); err != nil {
			return nil, fmt.Errorf("scan property of %d: %w", dbID, err)
		}
		props[key] = inferValue(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read properties of %d: %w", dbID, err)
	}
	return props, nil
}

// MergedProperties resolves an entity's direct properties combined with all
// ancestor properties along the parent chain, the nearer descendant winning
// on every key. Shared ancestors are resolved once per call via memoization.
//
// The merged map for N ancestors costs O(total distinct keys) memory; for
// whole-model sweeps prefer the streaming scans.
func (d *DB) MergedProperties(ctx context.Context, dbID int64) (map[api.AttrKey]api.Value, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	memo := make(map[int64]map[api.AttrKey]api.Value)
	path := make(map[int64]bool)
	return d.merged(ctx, dbID, memo, path)
}

func (d *DB) merged(ctx context.Context, dbID int64, memo map[int64]map[api.AttrKey]api.Value, path map[int64]bool) (map[api.AttrKey]api.Value, error) {
	if m, ok := memo[dbID]; ok {
		return m, nil
	}
	if path[dbID] {
		return nil, fmt.Errorf("entity %d: %w", dbID, ErrParentCycle)
	}
	path[dbID] = true
	defer delete(path, dbID)

	props, err := d.DirectProperties(ctx, dbID)
	if err != nil {
		return nil, err
	}

	if pv, ok := props[api.ParentKey]; ok {
		parentID, numeric := pv.AsInt()
		if numeric {
			inherited, err := d.merged(ctx, parentID, memo, path)
			if err != nil {
				return nil, err
			}
			// Copy only keys the descendant does not already have.
			for k, v := range inherited {
				if _, exists := props[k]; !exists {
					props[k] = v
				}
			}
		}
	}

	memo[dbID] = props
	return props, nil
}
