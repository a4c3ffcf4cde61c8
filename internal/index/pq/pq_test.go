package pq

import (
	"path/filepath"
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
	for i, row := range rows {
		require.NoError(t, col.Put(int64(i+1), types.NewDoubleVector(row)))
	}
	require.NoError(t, tx.Commit())

	tx, err = cat.Begin(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx, meta.Name(), vecCol
}

func clusteredRows(n, dim int) [][]float64 {
	centers := [][]float64{
		make([]float64, dim),
		make([]float64, dim),
		make([]float64, dim),
	}
	for d := 0; d < dim; d++ {
		centers[1][d] = 10
		centers[2][d] = -10
	}
	rows := make([][]float64, n)
	for i := range rows {
		c := centers[i%len(centers)]
		row := make([]float64, dim)
		for d := range row {
			jitter := float64((i*31+d*17)%11) / 10.0
			row[d] = c[d] + jitter
		}
		rows[i] = row
	}
	return rows
}

func drainResults(t *testing.T, cur index.Cursor) []index.Result {
	t.Helper()
	var out []index.Result
	for {
		r, ok, err := cur.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out
}

func bruteForceTopK(rows [][]float64, query []float64, k int, kind distance.Kind) []index.Result {
	fn := distance.Scalar(kind)
	topk := index.NewTopKHeap(k)
	for i, row := range rows {
		topk.Offer(int64(i+1), fn(query, row))
	}
	return topk.Results()
}

func TestPQTrainAndRecall(t *testing.T) {
	dim := 16
	rows := clusteredRows(120, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)

	meta, err := catTx.CreateIndex(entity, "by_embedding", "pq", []string{"embedding"}, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.NumCentroids = 8
	cfg.SampleSize = 120
	cfg.MaxIterations = 10
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())
	require.NotNil(t, ix.Codebook())

	query := rows[0]
	k := 10
	pred := predicate.NewProximity("embedding", k, distance.L2Squared, types.NewDoubleVector(query))
	cur, err := ix.Filter(pred)
	require.NoError(t, err)
	got := drainResults(t, cur)
	require.LessOrEqual(t, len(got), k)

	want := bruteForceTopK(rows, query, k, distance.L2Squared)
	wantSet := make(map[int64]bool, len(want))
	for _, r := range want {
		wantSet[r.TupleID] = true
	}
	hits := 0
	for _, r := range got {
		if wantSet[r.TupleID] {
			hits++
		}
	}
	recall := float64(hits) / float64(len(want))
	require.GreaterOrEqual(t, recall, 0.5, "recall too low for well-separated clusters: got %v want %v", got, want)
}

func TestPQCodebookRoundTrip(t *testing.T) {
	dim := 8
	rows := clusteredRows(60, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)
	meta, err := catTx.CreateIndex(entity, "by_embedding", "pq", []string{"embedding"}, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.NumCentroids = 4
	cfg.NumSubspaces = 2
	cfg.SampleSize = 60
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())

	encoded := encodeCodebook(ix.Codebook())
	decoded := decodeCodebook(encoded, dim)
	require.Equal(t, ix.Codebook().M, decoded.M)
	require.Equal(t, ix.Codebook().SubDim, decoded.SubDim)
	for m := range ix.Codebook().Centroids {
		for c := range ix.Codebook().Centroids[m] {
			for d := range ix.Codebook().Centroids[m][c] {
				require.InDelta(t, ix.Codebook().Centroids[m][c][d], decoded.Centroids[m][c][d], 1e-9)
			}
		}
	}
}

func TestChooseSubspaces(t *testing.T) {
	require.Equal(t, 16, chooseSubspaces(128, 0))
	require.Equal(t, 4, chooseSubspaces(12, 0))
	require.Equal(t, 1, chooseSubspaces(7, 0))
	require.Equal(t, 3, chooseSubspaces(12, 3))
}

func TestPQUpdateMarksDirty(t *testing.T) {
	dim := 4
	rows := clusteredRows(20, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)
	meta, err := catTx.CreateIndex(entity, "by_embedding", "pq", []string{"embedding"}, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.NumCentroids = 2
	cfg.SampleSize = 20
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())
	require.Equal(t, catalog.StateClean, ix.State())

	ev := events.Event{Kind: events.Insert, Entity: entity, Column: "embedding", TupleID: 99}
	require.NoError(t, ix.Update(ev))
	require.Equal(t, catalog.StateDirty, ix.State())
}

func TestPQCanProcessRejectsWrongColumn(t *testing.T) {
	dim := 4
	rows := clusteredRows(10, dim)
	catTx, entity, col := openTestEntity(t, dim, rows)
	meta, err := catTx.CreateIndex(entity, "by_embedding", "pq", []string{"embedding"}, nil)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.NumCentroids = 2
	cfg.SampleSize = 10
	ix, err := Open(Args{CatTx: catTx, Entity: entity, Meta: meta, Column: col, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, ix.Rebuild())

	pred := predicate.NewProximity("other", 3, distance.L2Squared, types.NewDoubleVector(rows[0]))
	require.False(t, ix.CanProcess(pred))
}
