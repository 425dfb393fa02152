package locations

import (
	"context"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/facet/api"
	"github.com/agentic-research/facet/internal/propdb"
)

// Placement joins an entity's resolved properties with its embedded
// location.
type Placement struct {
	DBID       int64
	Properties map[api.AttrKey]api.Value
	Location   api.Location
}

// PlacementFor returns merged properties plus location for one entity, or
// nil when the entity has no embedded location. ErrNotEmbedded when the side
// table does not exist.
func (s *Store) PlacementFor(ctx context.Context, db *propdb.DB, dbID int64) (*Placement, error) {
	if err := s.requireEmbedded(ctx); err != nil {
		return nil, err
	}
	loc, err := s.Get(ctx, dbID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, nil
	}
	props, err := db.MergedProperties(ctx, dbID)
	if err != nil {
		return nil, err
	}
	return &Placement{DBID: dbID, Properties: props, Location: *loc}, nil
}

// Placements resolves a batch of ids, dropping those without an embedded
// location. The result keeps the caller's id order.
func (s *Store) Placements(ctx context.Context, db *propdb.DB, ids []int64) ([]Placement, error) {
	if err := s.requireEmbedded(ctx); err != nil {
		return nil, err
	}
	var out []Placement
	for _, id := range ids {
		p, err := s.PlacementFor(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// FindByProperty returns the placement of every entity whose attribute
// (category, name) has the given textual value and that also has an embedded
// location — a set intersection of the property match set and the side
// table. Zero matches is an empty result, not an error.
func (s *Store) FindByProperty(ctx context.Context, db *propdb.DB, category, name, value string) ([]Placement, error) {
	if err := s.requireEmbedded(ctx); err != nil {
		return nil, err
	}
	pairs, err := db.ScanAttributePairs(ctx, category, name)
	if err != nil {
		return nil, err
	}

	// Dedupe matched ids through a bitmap so a batch lookup sees each
	// entity once, in ascending id order.
	matched := roaring.New()
	for _, pair := range pairs {
		if pair.Value.String() == value {
			matched.Add(uint32(pair.DBID))
		}
	}

	var out []Placement
	it := matched.Iterator()
	for it.HasNext() {
		p, err := s.PlacementFor(ctx, db, int64(it.Next()))
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// requireEmbedded turns a missing side table into ErrNotEmbedded so callers
// never mistake "locations were never embedded" for "no matches".
func (s *Store) requireEmbedded(ctx context.Context) error {
	ok, err := s.HasLocations(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEmbedded
	}
	return nil
}
