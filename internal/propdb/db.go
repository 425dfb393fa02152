// Package propdb reads element metadata out of a normalized EAV property
// database: per-entity resolution with parent inheritance, whole-store bulk
// and streaming scans, schema discovery, and a bound-parameter passthrough
// for ad-hoc queries.
//
// The database is opened read-only. A single DB is not safe for overlapping
// concurrent queries on the lazy cursors — callers that need concurrency
// open one handle per worker.
package propdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/facet/api"
)

// DB is a read-only handle onto one property database.
type DB struct {
	db     *sql.DB
	path   string
	log    *zap.Logger
	closed atomic.Bool
}

// Option configures a DB at open time.
type Option func(*DB)

// WithLogger attaches a logger. Default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *DB) {
		if l != nil {
			d.log = l
		}
	}
}

// Open opens the property database read-only. The file is never written
// through this handle; embedding locations uses its own read-write handle.
func Open(path string, opts ...Option) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open property db: %w", ErrInvalidArgument)
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open property db %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)

	d := &DB{db: db, path: path, log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Path returns the backing file path.
func (d *DB) Path() string { return d.path }

// Close releases the handle. Further operations return ErrClosed.
func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

// guard fails fast on a released handle, before any I/O.
func (d *DB) guard() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

// EntityIDs returns every entity id in the store in ascending order.
func (d *DB) EntityIDs(ctx context.Context) ([]int64, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, "SELECT id FROM objects_id ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query entity ids: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExternalID returns the upstream external identifier for an entity, or ""
// when the entity is unknown.
func (d *DB) ExternalID(ctx context.Context, dbID int64) (string, error) {
	if err := d.guard(); err != nil {
		return "", err
	}
	var ext sql.NullString
	err := d.db.QueryRowContext(ctx,
		"SELECT external_id FROM objects_id WHERE id = ?", dbID).Scan(&ext)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query external id %d: %w", dbID, err)
	}
	return ext.String, nil
}

// inferValue types a raw value column at the read boundary. A NULL column
// (missing value row) becomes the explicit null marker.
func inferValue(raw sql.NullString) api.Value {
	if !raw.Valid {
		return api.Null
	}
	return api.Parse(raw.String)
}
