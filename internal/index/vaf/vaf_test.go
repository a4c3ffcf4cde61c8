package vaf

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/events"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

func openTestEntity(t *testing.T, dim int, rows [][]float64) (*catalog.CatalogTx, types.Name, catalog.ColumnDef) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := catalog.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	tx, err := cat.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.CreateSchema("shop"))

	vecCol := catalog.ColumnDef{Name: "embedding", Type: types.DoubleVector, Dim: dim}
	meta, err := tx.CreateEntity("shop", "products", []catalog.ColumnDef{vecCol})
	require.NoError(t, err)

	col, err := txn.OpenColumn(tx, meta.Name(), vecCol)
	require.NoError(t, err)
	for _, row := range rows {
		tid, err := tx.NextTupleID(meta.Name())
		require.NoError(t, err)
		require.NoError(t, col.Put(tid, types.NewDoubleVector(row)))
	}
	require.NoError(t, tx.Commit())

	tx, err = cat.Begin(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx, meta.Name(), vecCol
}

func bruteForceTopK(rows [][]float64, query []float64, k int, kind distance.Kind) []index.Result {
	fn := distance.Scalar(kind)
	topk := index.NewTopKHeap(k)
	for i, row := range rows {
		topk.Offer(int64(i+1), fn(query, row))
	}
	return topk.Results()
}

func sampleRows(n, dim int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, dim)
		for d := range row {
			row[d] = float64((i*7+d*13)%97) / 10.0
		}
		rows[i] = row
	}
	return rows
}

func TestVAFMatchesBruteForce(t *testing.T) {
	dim := 6
	rows := sampleRows(40, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)

	meta, err := catTx.CreateIndex(entity, "by_embedding", "vaf", []string{"embedding"}, nil)
	require.NoError(t, err)

	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col, MarksPerDim: 8})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())

	for _, kind := range []distance.Kind{distance.L1, distance.L2, distance.L2Squared} {
		query := rows[3]
		pred := predicate.NewProximity("embedding", 5, kind, types.NewDoubleVector(query))
		cur, err := ix.Filter(pred)
		require.NoError(t, err)
		var got []index.Result
		for {
			r, ok, err := cur.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, r)
		}
		want := bruteForceTopK(rows, query, 5, kind)
		require.Equal(t, len(want), len(got), "kind=%v", kind)
		for i := range want {
			require.Equal(t, want[i].TupleID, got[i].TupleID, "kind=%v i=%d", kind, i)
			require.InDelta(t, want[i].Distance, got[i].Distance, 1e-9, "kind=%v i=%d", kind, i)
		}
	}
}

func TestVAFMarksRoundTrip(t *testing.T) {
	dim := 4
	rows := sampleRows(30, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)

	meta, err := catTx.CreateIndex(entity, "by_embedding", "vaf", []string{"embedding"}, nil)
	require.NoError(t, err)
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col, MarksPerDim: 10})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())

	marks := ix.Marks()
	require.Len(t, marks, dim)
	for _, row := range rows {
		cells := cellsFor(row, marks, ix.marksPerDim)
		for d, cell := range cells {
			bounds := marks[d]
			require.True(t, bounds[cell] <= row[d]+1e-9, "dim=%d v=%v lower=%v", d, row[d], bounds[cell])
			require.True(t, row[d] <= bounds[cell+1]+1e-9, "dim=%d v=%v upper=%v", d, row[d], bounds[cell+1])
		}
	}
}

func TestVAFPartitionMergeEquivalence(t *testing.T) {
	dim := 5
	rows := sampleRows(60, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)

	meta, err := catTx.CreateIndex(entity, "by_embedding", "vaf", []string{"embedding"}, nil)
	require.NoError(t, err)
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col, MarksPerDim: 12})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())

	query := rows[10]
	pred := predicate.NewProximity("embedding", 8, distance.L2, types.NewDoubleVector(query))

	const partitions = 3
	merged := index.NewTopKHeap(8)
	for p := 0; p < partitions; p++ {
		cur, err := ix.FilterPartition(pred, p, partitions)
		require.NoError(t, err)
		for {
			r, ok, err := cur.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			merged.Offer(r.TupleID, r.Distance)
		}
	}
	gotMerged := merged.Results()

	single, err := ix.Filter(pred)
	require.NoError(t, err)
	var want []index.Result
	for {
		r, ok, err := single.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		want = append(want, r)
	}

	require.Equal(t, len(want), len(gotMerged))
	sort.Slice(gotMerged, func(i, j int) bool {
		if gotMerged[i].Distance != gotMerged[j].Distance {
			return gotMerged[i].Distance < gotMerged[j].Distance
		}
		return gotMerged[i].TupleID < gotMerged[j].TupleID
	})
	for i := range want {
		require.Equal(t, want[i].TupleID, gotMerged[i].TupleID)
		require.InDelta(t, want[i].Distance, gotMerged[i].Distance, 1e-9)
	}
}

func TestVAFCanProcessRejectsOtherDistance(t *testing.T) {
	dim := 3
	rows := sampleRows(5, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)
	meta, err := catTx.CreateIndex(entity, "by_embedding", "vaf", []string{"embedding"}, nil)
	require.NoError(t, err)
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())

	cosinePred := predicate.NewProximity("embedding", 3, distance.Cosine, types.NewDoubleVector(rows[0]))
	require.False(t, ix.CanProcess(cosinePred))

	wrongColPred := predicate.NewProximity("other", 3, distance.L1, types.NewDoubleVector(rows[0]))
	require.False(t, ix.CanProcess(wrongColPred))
}

func TestVAFUpdateMarksDirty(t *testing.T) {
	dim := 3
	rows := sampleRows(5, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)
	meta, err := catTx.CreateIndex(entity, "by_embedding", "vaf", []string{"embedding"}, nil)
	require.NoError(t, err)
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())
	require.Equal(t, catalog.StateClean, ix.State())

	ev := events.Event{Kind: events.Insert, Entity: entity, Column: "embedding", TupleID: 99}
	require.NoError(t, ix.Update(ev))
	require.Equal(t, catalog.StateDirty, ix.State())
}
