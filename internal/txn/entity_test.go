package txn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

func openTestCatalog(t *testing.T) (*catalog.Catalog, *catalog.CatalogTx) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	tx, err := cat.Begin(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return cat, tx
}

func testEntity(t *testing.T, tx *catalog.CatalogTx) types.Name {
	t.Helper()
	require.NoError(t, tx.CreateSchema("app"))
	meta, err := tx.CreateEntity("app", "items", []catalog.ColumnDef{
		{Name: "label", Type: types.String},
		{Name: "score", Type: types.Double, Nullable: true},
	})
	require.NoError(t, err)
	return meta.Name()
}

func TestInsertReadRoundTrip(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	rec, err := et.Insert(map[string]types.Value{
		"label": types.NewString("first"),
		"score": types.NewDouble(0.5),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.TupleID)

	got, err := et.Read(rec.TupleID, []string{"label", "score"})
	require.NoError(t, err)
	label, _ := got.Get("label")
	assert.Equal(t, "first", label.Str)
	score, _ := got.Get("score")
	assert.Equal(t, 0.5, score.Float64)

	// Per-column read agrees with the record read.
	em, err := tx.GetEntity(name)
	require.NoError(t, err)
	def, ok := em.Column("label")
	require.True(t, ok)
	col, err := OpenColumn(tx, name, def)
	require.NoError(t, err)
	v, found, err := col.Get(rec.TupleID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", v.Str)
}

func TestMissingColumnsInsertAsNull(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	rec, err := et.Insert(map[string]types.Value{"label": types.NewString("no score")})
	require.NoError(t, err)

	got, err := et.Read(rec.TupleID, []string{"score"})
	require.NoError(t, err)
	score, _ := got.Get("score")
	assert.True(t, score.Null)
}

func TestInsertNullIntoNonNullableFails(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	_, err = et.Insert(map[string]types.Value{"score": types.NewDouble(1.0)})
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindReservedValue))
}

func TestDeleteRemovesTupleAndDecrementsCount(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	a, err := et.Insert(map[string]types.Value{"label": types.NewString("a")})
	require.NoError(t, err)
	_, err = et.Insert(map[string]types.Value{"label": types.NewString("b")})
	require.NoError(t, err)
	require.Equal(t, 2, et.Count())

	require.NoError(t, et.Delete(a.TupleID))
	assert.Equal(t, 1, et.Count())

	_, err = et.Read(a.TupleID, nil)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindTupleMissing))
}

func TestTupleIDsAreNeverReused(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	a, err := et.Insert(map[string]types.Value{"label": types.NewString("a")})
	require.NoError(t, err)
	require.NoError(t, et.Delete(a.TupleID))

	b, err := et.Insert(map[string]types.Value{"label": types.NewString("b")})
	require.NoError(t, err)
	assert.Greater(t, b.TupleID, a.TupleID)
}

func TestUpdateRewritesRequestedColumnsOnly(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	rec, err := et.Insert(map[string]types.Value{
		"label": types.NewString("old"),
		"score": types.NewDouble(1),
	})
	require.NoError(t, err)

	require.NoError(t, et.Update(rec.TupleID, map[string]types.Value{"label": types.NewString("new")}))

	got, err := et.Read(rec.TupleID, nil)
	require.NoError(t, err)
	label, _ := got.Get("label")
	assert.Equal(t, "new", label.Str)
	score, _ := got.Get("score")
	assert.Equal(t, 1.0, score.Float64)
}

func TestOptimizeRehydratesStatistics(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	for _, s := range []float64{3, 1, 4, 1, 5} {
		_, err := et.Insert(map[string]types.Value{
			"label": types.NewString("x"),
			"score": types.NewDouble(s),
		})
		require.NoError(t, err)
	}
	// Deleting marks statistics stale.
	require.NoError(t, et.Delete(1))

	before, err := tx.GetStatistics(name, "score")
	require.NoError(t, err)
	require.False(t, before.Fresh)

	require.NoError(t, et.Optimize())

	after, err := tx.GetStatistics(name, "score")
	require.NoError(t, err)
	assert.True(t, after.Fresh)
	assert.Equal(t, int64(4), after.Count)
}

func TestPartitionedCursorsCoverAllTuplesOnce(t *testing.T) {
	cat, tx := openTestCatalog(t)
	name := testEntity(t, tx)

	et, err := OpenEntity(tx, cat.Broker(), name)
	require.NoError(t, err)

	const total = 37
	for i := 0; i < total; i++ {
		_, err := et.Insert(map[string]types.Value{"label": types.NewString("x")})
		require.NoError(t, err)
	}

	const partitions = 4
	seen := make(map[int64]int)
	for p := 0; p < partitions; p++ {
		cur := et.Cursor(nil, p, partitions)
		var last int64
		for {
			rec, ok, err := cur.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			require.Greater(t, rec.TupleID, last, "cursor must ascend")
			last = rec.TupleID
			seen[rec.TupleID]++
		}
		cur.Close()
	}

	require.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "tuple %d visited more than once", id)
	}
}
