package propdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agentic-research/facet/api"
)

// EntityValue is one (entity id, value) pair for a single attribute.
type EntityValue struct {
	DBID  int64
	Value api.Value
}

// Triple is one (entity id, attribute key, value) row from a full-store scan.
type Triple struct {
	DBID  int64
	Key   api.AttrKey
	Value api.Value
}

// attrQuery selects every edge of one attribute across the whole store.
// Scan order is the store's natural order, not guaranteed sorted.
const attrQuery = `
SELECT e.entity_id, v.value
FROM objects_eav e
JOIN objects_attr a ON a.id = e.attribute_id
LEFT JOIN objects_val v ON v.id = e.value_id
WHERE a.category = ? AND a.display_name = ?`

// allQuery selects every edge of every entity.
const allQuery = `
SELECT e.entity_id, a.category, a.display_name, v.value
FROM objects_eav e
JOIN objects_attr a ON a.id = e.attribute_id
LEFT JOIN objects_val v ON v.id = e.value_id`

// validateAttr rejects an empty category before any I/O. An empty display
// name is legal — the reserved parent edge has one.
func validateAttr(category string) error {
	if category == "" {
		return fmt.Errorf("empty attribute category: %w", ErrInvalidArgument)
	}
	return nil
}

// ScanAttribute materializes every (entity, value) pair for one attribute.
// Memory is proportional to the number of matching entities; use
// StreamAttribute for very large models.
func (d *DB) ScanAttribute(ctx context.Context, category, name string) (map[int64]api.Value, error) {
	out := make(map[int64]api.Value)
	err := d.scanAttr(ctx, category, name, func(ev EntityValue) {
		out[ev.DBID] = ev.Value
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanAttributePairs returns the same data as ScanAttribute as an ordered
// slice, for callers that want random access or functional transforms.
func (d *DB) ScanAttributePairs(ctx context.Context, category, name string) ([]EntityValue, error) {
	var out []EntityValue
	err := d.scanAttr(ctx, category, name, func(ev EntityValue) {
		out = append(out, ev)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScanAttributeInto writes the pairs into a caller-supplied sync.Map,
// allocating one when dest is nil. The scan is the exclusive writer; readers
// may consume concurrently but must not mutate.
func (d *DB) ScanAttributeInto(ctx context.Context, category, name string, dest *sync.Map) (*sync.Map, error) {
	if dest == nil {
		dest = &sync.Map{}
	}
	err := d.scanAttr(ctx, category, name, func(ev EntityValue) {
		dest.Store(ev.DBID, ev.Value)
	})
	if err != nil {
		return nil, err
	}
	return dest, nil
}

func (d *DB) scanAttr(ctx context.Context, category, name string, emit func(EntityValue)) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := validateAttr(category); err != nil {
		return err
	}
	rows, err := d.db.QueryContext(ctx, attrQuery, category, name)
	if err != nil {
		return fmt.Errorf("scan attribute %s/%s: %w", category, name, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var (
			id  int64
			raw sql.NullString
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan attribute row: %w", err)
		}
		emit(EntityValue{DBID: id, Value: inferValue(raw)})
	}
	return rows.Err()
}

// AttrCursor streams (entity, value) pairs one row at a time. Single pass,
// not restartable — re-issue the query for another pass.
type AttrCursor struct {
	rows *sql.Rows
	cur  EntityValue
	err  error
}

// StreamAttribute returns a lazy cursor over one attribute's pairs. The
// caller must Close it.
func (d *DB) StreamAttribute(ctx context.Context, category, name string) (*AttrCursor, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	if err := validateAttr(category); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, attrQuery, category, name)
	if err != nil {
		return nil, fmt.Errorf("stream attribute %s/%s: %w", category, name, err)
	}
	return &AttrCursor{rows: rows}, nil
}

// Next advances to the next pair. It returns false at the end of the scan or
// on error; check Err afterwards.
func (c *AttrCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		if c.err == nil {
			c.err = c.rows.Err()
		}
		return false
	}
	var raw sql.NullString
	if err := c.rows.Scan(&c.cur.DBID, &raw); err != nil {
		c.err = fmt.Errorf("scan attribute row: %w", err)
		return false
	}
	c.cur.Value = inferValue(raw)
	return true
}

// Pair returns the current pair. Valid only after a true Next.
func (c *AttrCursor) Pair() EntityValue { return c.cur }

// Err returns the first error hit during iteration.
func (c *AttrCursor) Err() error { return c.err }

// Close releases the underlying rows.
func (c *AttrCursor) Close() error { return c.rows.Close() }

// ScanAll materializes every property of every entity. This is the whole
// store in memory — prefer StreamAll for big models.
func (d *DB) ScanAll(ctx context.Context) (map[int64]map[api.AttrKey]api.Value, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, allQuery)
	if err != nil {
		return nil, fmt.Errorf("scan all properties: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	out := make(map[int64]map[api.AttrKey]api.Value)
	count := 0
	for rows.Next() {
		var (
			id  int64
			key api.AttrKey
			raw sql.NullString
		)
		if err := rows.Scan(&id, &key.Category, &key.Name, &raw); err != nil {
			return nil, fmt.Errorf("scan property row: %w", err)
		}
		props, ok := out[id]
		if !ok {
			props = make(map[api.AttrKey]api.Value)
			out[id] = props
		}
		props[key] = inferValue(raw)
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read all properties: %w", err)
	}
	d.log.Debug("full-store scan", zap.Int("rows", count), zap.Int("entities", len(out)))
	return out, nil
}

// PropCursor streams (entity, key, value) triples for the whole store, one
// row materialized at a time.
type PropCursor struct {
	rows *sql.Rows
	cur  Triple
	err  error
}

// StreamAll returns a lazy cursor over every property edge in the store.
// The recommended form for arbitrarily large models.
func (d *DB) StreamAll(ctx context.Context) (*PropCursor, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, allQuery)
	if err != nil {
		return nil, fmt.Errorf("stream all properties: %w", err)
	}
	return &PropCursor{rows: rows}, nil
}

// Next advances to the next triple.
func (c *PropCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		if c.err == nil {
			c.err = c.rows.Err()
		}
		return false
	}
	var raw sql.NullString
	if err := c.rows.Scan(&c.cur.DBID, &c.cur.Key.Category, &c.cur.Key.Name, &raw); err != nil {
		c.err = fmt.Errorf("scan property row: %w", err)
		return false
	}
	c.cur.Value = inferValue(raw)
	return true
}

// Triple returns the current triple. Valid only after a true Next.
func (c *PropCursor) Triple() Triple { return c.cur }

// Err returns the first error hit during iteration.
func (c *PropCursor) Err() error { return c.err }

// Close releases the underlying rows.
func (c *PropCursor) Close() error { return c.rows.Close() }

// Categories returns the distinct attribute categories, lexicographically
// ordered. Cost depends on the attribute table only, not entity counts.
func (d *DB) Categories(ctx context.Context) ([]string, error) {
	return d.stringColumn(ctx,
		"SELECT DISTINCT category FROM objects_attr ORDER BY category")
}

// AttributeNames returns the distinct display names, lexicographically
// ordered.
func (d *DB) AttributeNames(ctx context.Context) ([]string, error) {
	return d.stringColumn(ctx,
		"SELECT DISTINCT display_name FROM objects_attr ORDER BY display_name")
}

// CategoryIndex returns every category mapped to its sorted display names.
func (d *DB) CategoryIndex(ctx context.Context) (map[string][]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT DISTINCT category, display_name FROM objects_attr ORDER BY category, display_name")
	if err != nil {
		return nil, fmt.Errorf("query category index: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	out := make(map[string][]string)
	for rows.Next() {
		var category, name string
		if err := rows.Scan(&category, &name); err != nil {
			return nil, fmt.Errorf("scan category index row: %w", err)
		}
		out[category] = append(out[category], name)
	}
	return out, rows.Err()
}

func (d *DB) stringColumn(ctx context.Context, query string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
