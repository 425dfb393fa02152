// Package locations persists decoded fragment locations as a side table in
// the property database file and serves point and streaming lookups straight
// from disk — no fragment re-parsing and no in-memory copy at query time.
package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/facet/api"
)

var (
	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = errors.New("location store is closed")

	// ErrNotEmbedded is returned when a spatial query runs against a store
	// whose side table was never embedded. Distinct from an empty result:
	// callers can branch on "never embedded" vs "no matches".
	ErrNotEmbedded = errors.New("fragment locations not embedded")
)

const tableName = "fragment_locations"

const createTable = `
CREATE TABLE IF NOT EXISTS fragment_locations (
	db_id INTEGER PRIMARY KEY,
	x REAL, y REAL, z REAL,
	min_x REAL, min_y REAL, min_z REAL,
	max_x REAL, max_y REAL, max_z REAL
)`

const upsertLocation = `
INSERT OR REPLACE INTO fragment_locations
	(db_id, x, y, z, min_x, min_y, min_z, max_x, max_y, max_z)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = "db_id, x, y, z, min_x, min_y, min_z, max_x, max_y, max_z"

// Store reads the location side table through a read-only handle. Embedding
// opens a dedicated read-write handle per call, so an in-progress embed never
// blocks or corrupts concurrent reads on this handle.
type Store struct {
	db     *sql.DB
	path   string
	log    *zap.Logger
	closed atomic.Bool
}

// Option configures a Store at open time.
type Option func(*Store)

// WithLogger attaches a logger. Default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open opens a read-only handle on the property database file. The side
// table may or may not exist yet; its presence is detected per query.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("open location store: empty path")
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open location store %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)

	s := &Store{db: db, path: path, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the read handle. Further operations return ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) guard() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Embed writes every location into the side table, creating it when absent,
// all inside one transaction on a dedicated read-write handle. Existing rows
// are replaced (insert-or-replace by entity id). On any failure — including
// cancellation — the whole transaction rolls back; partial embedding is
// never observable.
func (s *Store) Embed(ctx context.Context, locs map[int64]api.Location) error {
	if err := s.guard(); err != nil {
		return err
	}

	// Write path gets its own handle so read queries never share a
	// connection with the open transaction.
	wdb, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open write handle %s: %w", s.path, err)
	}
	defer func() { _ = wdb.Close() }() // safe to ignore
	wdb.SetMaxOpenConns(1)

	if _, err := wdb.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create %s: %w", tableName, err)
	}

	tx, err := wdb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embed: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore

	stmt, err := tx.PrepareContext(ctx, upsertLocation)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	for id, loc := range locs {
		_, err := stmt.ExecContext(ctx, id,
			loc.X, loc.Y, loc.Z,
			loc.MinX, loc.MinY, loc.MinZ,
			loc.MaxX, loc.MaxY, loc.MaxZ)
		if err != nil {
			return fmt.Errorf("upsert location %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embed: %w", err)
	}
	s.log.Info("embedded fragment locations", zap.Int("count", len(locs)))
	return nil
}

// HasLocations reports whether the side table exists. No in-memory state is
// assumed — the probe goes to the store every time.
func (s *Store) HasLocations(ctx context.Context) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		tableName).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", tableName, err)
	}
	return true, nil
}

// Count returns the number of embedded locations, 0 when the side table is
// absent. Never an error for a missing table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	ok, err := s.HasLocations(ctx)
	if err != nil || !ok {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fragment_locations").Scan(&n); err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return n, nil
}

// Get returns one entity's location by primary key, or nil when the entity
// has none. A store that was never embedded returns ErrNotEmbedded.
func (s *Store) Get(ctx context.Context, dbID int64) (*api.Location, error) {
	ok, err := s.HasLocations(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotEmbedded
	}
	var (
		id  int64
		loc api.Location
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM fragment_locations WHERE db_id = ?",
		dbID).Scan(&id,
		&loc.X, &loc.Y, &loc.Z,
		&loc.MinX, &loc.MinY, &loc.MinZ,
		&loc.MaxX, &loc.MaxY, &loc.MaxZ)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", dbID, err)
	}
	return &loc, nil
}

// Cursor streams (entity id, location) rows one at a time.
type Cursor struct {
	rows *sql.Rows
	id   int64
	loc  api.Location
	err  error
}

// Stream returns a lazy cursor over the whole side table, in the store's
// natural scan order. The caller must Close it.
func (s *Store) Stream(ctx context.Context) (*Cursor, error) {
	ok, err := s.HasLocations(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotEmbedded
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM fragment_locations")
	if err != nil {
		return nil, fmt.Errorf("stream locations: %w", err)
	}
	return &Cursor{rows: rows}, nil
}

// Next advances to the next row.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		if c.err == nil {
			c.err = c.rows.Err()
		}
		return false
	}
	if err := c.rows.Scan(&c.id,
		&c.loc.X, &c.loc.Y, &c.loc.Z,
		&c.loc.MinX, &c.loc.MinY, &c.loc.MinZ,
		&c.loc.MaxX, &c.loc.MaxY, &c.loc.MaxZ); err != nil {
		c.err = fmt.Errorf("scan location row: %w", err)
		return false
	}
	return true
}

// Entry returns the current row. Valid only after a true Next.
func (c *Cursor) Entry() (int64, api.Location) { return c.id, c.loc }

// Err returns the first error hit during iteration.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying rows.
func (c *Cursor) Close() error { return c.rows.Close() }
