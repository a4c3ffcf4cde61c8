package catalog

import (
	"path/filepath"
	"testing"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func idColumn() ColumnDef { return ColumnDef{Name: "id", Type: types.Long, Primary: true} }
func vecColumn(dim int) ColumnDef {
	return ColumnDef{Name: "embedding", Type: types.FloatVector, Dim: dim}
}

func TestCreateEntityRequiresSchema(t *testing.T) {
	cat := openTestCatalog(t)
	tx, err := cat.Begin(true)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.CreateEntity("shop", "products", []ColumnDef{idColumn()})
	require.Error(t, err)
	assert.Equal(t, dberr.KindSchemaMissing, mustKind(t, err))
}

func TestCreateEntityInitializesColumnsAndSequence(t *testing.T) {
	cat := openTestCatalog(t)
	tx, err := cat.Begin(true)
	require.NoError(t, err)

	require.NoError(t, tx.CreateSchema("shop"))
	meta, err := tx.CreateEntity("shop", "products", []ColumnDef{idColumn(), vecColumn(4)})
	require.NoError(t, err)
	assert.Len(t, meta.Columns, 2)

	stats, err := tx.GetStatistics(meta.Name(), "id")
	require.NoError(t, err)
	assert.True(t, stats.Fresh)
	assert.Zero(t, stats.Count)

	seq, err := tx.Store().Sequences()
	require.NoError(t, err)
	cur, err := seq.Current(entitySequenceName(meta.Name()))
	require.NoError(t, err)
	assert.Zero(t, cur)

	require.NoError(t, tx.Commit())
}

func TestCreateEntityRejectsDuplicateColumns(t *testing.T) {
	cat := openTestCatalog(t)
	tx, err := cat.Begin(true)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.CreateSchema("shop"))
	_, err = tx.CreateEntity("shop", "products", []ColumnDef{idColumn(), idColumn()})
	require.Error(t, err)
	assert.Equal(t, dberr.KindDuplicateColumn, mustKind(t, err))
}

func TestCreateEntityTwiceFailsWithEntityExists(t *testing.T) {
	cat := openTestCatalog(t)
	tx, err := cat.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.CreateSchema("shop"))
	_, err = tx.CreateEntity("shop", "products", []ColumnDef{idColumn()})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = cat.Begin(true)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.CreateEntity("shop", "products", []ColumnDef{idColumn()})
	require.Error(t, err)
	assert.Equal(t, dberr.KindEntityExists, mustKind(t, err))
}

func TestDropEntityCascadesIndexesAndColumns(t *testing.T) {
	cat := openTestCatalog(t)
	tx, err := cat.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.CreateSchema("shop"))
	meta, err := tx.CreateEntity("shop", "products", []ColumnDef{idColumn(), vecColumn(4)})
	require.NoError(t, err)
	_, err = tx.CreateIndex(meta.Name(), "by_embedding", "vaf", []string{"embedding"}, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = cat.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.DropEntity(meta.Name()))
	require.NoError(t, tx.Commit())

	tx, err = cat.Begin(false)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.GetEntity(meta.Name())
	require.Error(t, err)
	assert.Equal(t, dberr.KindEntityMissing, mustKind(t, err))

	_, err = tx.GetIndex(types.NewIndexName("shop", "products", "by_embedding"))
	require.Error(t, err)
	assert.Equal(t, dberr.KindIndexMissing, mustKind(t, err))
}

func TestCreateIndexTwiceFailsWithIndexExists(t *testing.T) {
	cat := openTestCatalog(t)
	tx, err := cat.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.CreateSchema("shop"))
	meta, err := tx.CreateEntity("shop", "products", []ColumnDef{idColumn()})
	require.NoError(t, err)
	_, err = tx.CreateIndex(meta.Name(), "by_id", "hash", []string{"id"}, nil)
	require.NoError(t, err)

	_, err = tx.CreateIndex(meta.Name(), "by_id", "hash", []string{"id"}, nil)
	require.Error(t, err)
	assert.Equal(t, dberr.KindIndexExists, mustKind(t, err))
	require.NoError(t, tx.Rollback())
}

func TestBeginAfterCloseFails(t *testing.T) {
	cat := openTestCatalog(t)
	require.NoError(t, cat.Close())
	_, err := cat.Begin(false)
	require.Error(t, err)
	assert.Equal(t, dberr.KindClosedDBO, mustKind(t, err))
}

func mustKind(t *testing.T, err error) dberr.Kind {
	t.Helper()
	k, ok := dberr.KindOf(err)
	require.True(t, ok, "expected a *dberr.Error, got %v", err)
	return k
}
