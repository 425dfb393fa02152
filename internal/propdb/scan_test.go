package propdb

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/facet/api"
)

func TestScanAttribute(t *testing.T) {
	d := openFixture(t)

	values, err := d.ScanAttribute(context.Background(), "Dimensions", "Width")
	require.NoError(t, err)

	assert.Equal(t, map[int64]api.Value{
		100: api.RealValue(10.5),
		200: api.IntValue(99),
	}, values)
}

func TestScanAttributeEmptyResult(t *testing.T) {
	d := openFixture(t)

	values, err := d.ScanAttribute(context.Background(), "Dimensions", "Depth")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestScanAttributeValidation(t *testing.T) {
	d := openFixture(t)
	ctx := context.Background()

	_, err := d.ScanAttribute(ctx, "", "Width")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = d.ScanAttributePairs(ctx, "", "Width")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = d.StreamAttribute(ctx, "", "Width")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestScanAttributeParentEdges(t *testing.T) {
	d := openFixture(t)

	// The reserved parent category has an empty display name; scanning it
	// is legal and returns the pointer edges.
	values, err := d.ScanAttribute(context.Background(), api.ParentCategory, "")
	require.NoError(t, err)
	assert.Equal(t, api.IntValue(300), values[100])
	assert.Equal(t, api.IntValue(100), values[200])
}

func TestScanAttributePairs(t *testing.T) {
	d := openFixture(t)

	pairs, err := d.ScanAttributePairs(context.Background(), "Dimensions", "Width")
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	byID := make(map[int64]api.Value, len(pairs))
	for _, p := range pairs {
		byID[p.DBID] = p.Value
	}
	assert.Equal(t, api.RealValue(10.5), byID[100])
	assert.Equal(t, api.IntValue(99), byID[200])
}

func TestStreamAttribute(t *testing.T) {
	d := openFixture(t)

	cur, err := d.StreamAttribute(context.Background(), "Dimensions", "Width")
	require.NoError(t, err)
	defer func() { _ = cur.Close() }()

	streamed := make(map[int64]api.Value)
	for cur.Next() {
		pair := cur.Pair()
		streamed[pair.DBID] = pair.Value
	}
	require.NoError(t, cur.Err())

	batch, err := d.ScanAttribute(context.Background(), "Dimensions", "Width")
	require.NoError(t, err)
	assert.Equal(t, batch, streamed)
}

func TestScanAttributeInto(t *testing.T) {
	d := openFixture(t)

	dest, err := d.ScanAttributeInto(context.Background(), "Dimensions", "Width", nil)
	require.NoError(t, err)
	require.NotNil(t, dest)

	v, ok := dest.Load(int64(100))
	require.True(t, ok)
	assert.Equal(t, api.RealValue(10.5), v)

	// Caller-supplied map is used in place.
	own := &sync.Map{}
	got, err := d.ScanAttributeInto(context.Background(), "Dimensions", "Width", own)
	require.NoError(t, err)
	assert.Same(t, own, got)
}

func TestScanAll(t *testing.T) {
	d := openFixture(t)

	all, err := d.ScanAll(context.Background())
	require.NoError(t, err)

	require.Contains(t, all, int64(100))
	assert.Equal(t, api.RealValue(10.5), all[100][api.AttrKey{Category: "Dimensions", Name: "Width"}])
	assert.Equal(t, api.StringValue("Default Material"),
		all[300][api.AttrKey{Category: "Materials and Finishes", Name: "Material"}])
	// Full-store scan is direct edges only, no inheritance applied.
	assert.NotContains(t, all[100], api.AttrKey{Category: "Materials and Finishes", Name: "Material"})
}

func TestStreamAllMatchesScanAll(t *testing.T) {
	d := openFixture(t)
	ctx := context.Background()

	cur, err := d.StreamAll(ctx)
	require.NoError(t, err)
	defer func() { _ = cur.Close() }()

	streamed := make(map[int64]map[api.AttrKey]api.Value)
	rows := 0
	for cur.Next() {
		tr := cur.Triple()
		if streamed[tr.DBID] == nil {
			streamed[tr.DBID] = make(map[api.AttrKey]api.Value)
		}
		streamed[tr.DBID][tr.Key] = tr.Value
		rows++
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, 11, rows) // one per EAV edge in the fixture

	batch, err := d.ScanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch, streamed)
}

func TestCategories(t *testing.T) {
	d := openFixture(t)

	categories, err := d.Categories(context.Background())
	require.NoError(t, err)
	// Binary collation: '_' sorts after the uppercase letters.
	assert.Equal(t, []string{
		"Dimensions",
		"Item",
		"Materials and Finishes",
		"Misc",
		api.ParentCategory,
	}, categories)
	assert.IsIncreasing(t, categories)
}

func TestAttributeNames(t *testing.T) {
	d := openFixture(t)

	names, err := d.AttributeNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Category", "Comments", "Height", "Material", "Name", "Width"}, names)
}

func TestCategoryIndex(t *testing.T) {
	d := openFixture(t)

	index, err := d.CategoryIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Height", "Width"}, index["Dimensions"])
	assert.Equal(t, []string{"Category", "Name"}, index["Item"])
	assert.Equal(t, []string{""}, index[api.ParentCategory])
}

func TestAdhocQuery(t *testing.T) {
	d := openFixture(t)

	rows, err := d.Query(context.Background(),
		"SELECT id, external_id FROM objects_id WHERE id > ? ORDER BY id", 250)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"id", "external_id"}, rows[0].Columns)
	assert.Equal(t, api.IntValue(300), rows[0].Get("id"))
	assert.Equal(t, api.StringValue("ext-family-300"), rows[0].Get("external_id"))
	assert.Equal(t, api.Null, rows[0].Get("no_such_column"))
}

func TestAdhocQueryEmptyText(t *testing.T) {
	d := openFixture(t)

	_, err := d.Query(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAdhocQueryNullColumn(t *testing.T) {
	d := openFixture(t)

	rows, err := d.Query(context.Background(),
		"SELECT value_id FROM objects_eav WHERE entity_id = ? AND attribute_id = ?", 100, 6)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Get("value_id").IsNull())
}
