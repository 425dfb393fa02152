package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/facet/api"
	"github.com/agentic-research/facet/internal/fragments"
	"github.com/agentic-research/facet/internal/locations"
	"github.com/agentic-research/facet/internal/propdb"
)

// testFixture bundles the shared state for integration tests: a property
// database on disk, plus a pack buffer whose fragments reference its
// entities.
type testFixture struct {
	dbPath string
	pack   []byte
}

// setup builds a two-level model (wall 100 inheriting from family 300) and a
// fragment pack holding version-4 records for both entities plus one record
// for an entity the attribute store does not know.
func setup(t *testing.T) *testFixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "model.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	_, err = db.Exec(`
		CREATE TABLE objects_id (id INTEGER PRIMARY KEY, external_id TEXT, viewable_id TEXT);
		CREATE TABLE objects_attr (id INTEGER PRIMARY KEY, category TEXT, display_name TEXT, data_type INTEGER);
		CREATE TABLE objects_val (id INTEGER PRIMARY KEY, value TEXT);
		CREATE TABLE objects_eav (entity_id INTEGER, attribute_id INTEGER, value_id INTEGER);

		INSERT INTO objects_id (id, external_id, viewable_id) VALUES
			(100, 'wall-100', 'v1'), (300, 'family-300', 'v1');
		INSERT INTO objects_attr (id, category, display_name, data_type) VALUES
			(1, 'Dimensions', 'Width', 3),
			(2, 'Item', 'Name', 20),
			(3, 'Materials and Finishes', 'Material', 20),
			(4, '__parent__', '', 11);
		INSERT INTO objects_val (id, value) VALUES
			(1, '10.5'), (2, 'Basic Wall'), (3, 'Default Material'), (4, '300');
		INSERT INTO objects_eav (entity_id, attribute_id, value_id) VALUES
			(100, 1, 1), (100, 2, 2), (100, 4, 4),
			(300, 3, 3);
	`)
	require.NoError(t, err)

	pack := buildPack(t, []packFragment{
		{dbID: 100, translation: [3]float64{5, 5, 5}},
		{dbID: 300, translation: [3]float64{-1, -2, -3}},
		{dbID: 9999, translation: [3]float64{7, 7, 7}},
	})

	return &testFixture{dbPath: dbPath, pack: pack}
}

// --- minimal pack encoder ---------------------------------------------------

type packFragment struct {
	dbID        uint64
	translation [3]float64
}

// buildPack writes version-4 fragment records with a plain translation
// transform and a unit bounding box at the origin.
func buildPack(t *testing.T, frags []packFragment) []byte {
	t.Helper()
	var buf bytes.Buffer

	varint := func(v uint64) {
		var tmp [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(tmp[:], v)
		buf.Write(tmp[:n])
	}
	u32 := func(v uint32) {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf.Write(tmp[:])
	}
	f32 := func(v float32) { u32(math.Float32bits(v)) }
	f64 := func(v float64) {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
		buf.Write(tmp[:])
	}

	const packType = "Autodesk.CloudPlatform.FragmentList"
	varint(uint64(len(packType)))
	buf.WriteString(packType)
	u32(1) // container version

	entries := make([]uint32, 0, len(frags))
	for _, f := range frags {
		entries = append(entries, uint32(buf.Len()))
		u32(0)            // type index
		buf.WriteByte(1)  // flags
		varint(11)        // material id
		varint(22)        // geometry id
		buf.WriteByte(0)  // translation transform
		for _, c := range f.translation {
			f64(c)
		}
		for _, c := range [6]float32{0, 0, 0, 1, 1, 1} {
			f32(c)
		}
		varint(f.dbID)
	}

	entriesOff := uint32(buf.Len())
	varint(uint64(len(entries)))
	for _, off := range entries {
		u32(off)
	}
	typesOff := uint32(buf.Len())
	varint(1)
	varint(uint64(len("Autodesk.CloudPlatform.DesignDescription")))
	buf.WriteString("Autodesk.CloudPlatform.DesignDescription")
	varint(uint64(len("Autodesk.CloudPlatform.Fragment")))
	buf.WriteString("Autodesk.CloudPlatform.Fragment")
	varint(4) // record format version

	u32(entriesOff)
	u32(typesOff)
	return buf.Bytes()
}

// --- end-to-end -------------------------------------------------------------

func TestResolveDecodeEmbedQuery(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	db, err := propdb.Open(fx.dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	// Inheritance across the parent edge.
	merged, err := db.MergedProperties(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, api.RealValue(10.5), merged[api.AttrKey{Category: "Dimensions", Name: "Width"}])
	assert.Equal(t, api.StringValue("Default Material"),
		merged[api.AttrKey{Category: "Materials and Finishes", Name: "Material"}])

	// Spatial queries are unavailable until locations are embedded.
	store, err := locations.Open(fx.dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.PlacementFor(ctx, db, 100)
	require.ErrorIs(t, err, locations.ErrNotEmbedded)

	// Decode the pack and embed.
	decoded, err := fragments.Decode(fx.pack)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	require.NoError(t, store.Embed(ctx, decoded))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// Version-4 records carry world-space boxes.
	p, err := store.PlacementFor(ctx, db, 100)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, api.Location{
		X: 5, Y: 5, Z: 5,
		MinX: 5, MinY: 5, MinZ: 5,
		MaxX: 6, MaxY: 6, MaxZ: 6,
	}, p.Location)
	assert.Equal(t, api.StringValue("Default Material"),
		p.Properties[api.AttrKey{Category: "Materials and Finishes", Name: "Material"}])

	// Property+location join intersects both sets: 9999 has a location but
	// no properties, 300 has no Name match.
	found, err := store.FindByProperty(ctx, db, "Item", "Name", "Basic Wall")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(100), found[0].DBID)

	// The stream sees exactly what Count reports.
	cur, err := store.Stream(ctx)
	require.NoError(t, err)
	defer func() { _ = cur.Close() }()
	streamed := 0
	for cur.Next() {
		streamed++
	}
	require.NoError(t, cur.Err())
	assert.EqualValues(t, n, streamed)
}

func TestConcurrentReaders(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	// One handle per concurrent caller, per the shared-resource contract.
	done := make(chan error, 4)
	for w := 0; w < 4; w++ {
		go func() {
			db, err := propdb.Open(fx.dbPath)
			if err != nil {
				done <- err
				return
			}
			defer func() { _ = db.Close() }()
			for i := 0; i < 10; i++ {
				if _, err := db.MergedProperties(ctx, 100); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}
	for w := 0; w < 4; w++ {
		require.NoError(t, <-done)
	}
}
