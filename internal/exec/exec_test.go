package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// sliceOp feeds a fixed record slice through the Operator contract.
type sliceOp struct {
	records []txn.Record
	pos     int
	closed  bool
}

func (o *sliceOp) Next(ctx context.Context) (*txn.Record, error) {
	if o.pos >= len(o.records) {
		return nil, nil
	}
	rec := o.records[o.pos]
	o.pos++
	return &rec, nil
}

func (o *sliceOp) Close() { o.closed = true }

func scoreRecord(id int64, score float64) txn.Record {
	return txn.Record{
		TupleID: id,
		Columns: []string{"score"},
		Values:  []types.Value{types.NewDouble(score)},
	}
}

func drainAll(t *testing.T, op Operator) []txn.Record {
	t.Helper()
	var out []txn.Record
	for {
		rec, err := op.Next(context.Background())
		require.NoError(t, err)
		if rec == nil {
			return out
		}
		out = append(out, *rec)
	}
}

func TestHeapSortOrdersAscendingWithTieBreakOnTupleID(t *testing.T) {
	in := &sliceOp{records: []txn.Record{
		scoreRecord(3, 2.0),
		scoreRecord(1, 5.0),
		scoreRecord(4, 2.0),
		scoreRecord(2, 1.0),
	}}
	op := NewHeapSortOperator(in, []plan.SortKey{{Column: "score"}}, 0)
	out := drainAll(t, op)

	ids := make([]int64, len(out))
	for i, r := range out {
		ids[i] = r.TupleID
	}
	assert.Equal(t, []int64{2, 3, 4, 1}, ids)
}

func TestHeapSortBoundedKeepsBestK(t *testing.T) {
	in := &sliceOp{records: []txn.Record{
		scoreRecord(1, 9.0),
		scoreRecord(2, 1.0),
		scoreRecord(3, 5.0),
		scoreRecord(4, 3.0),
	}}
	op := NewHeapSortOperator(in, []plan.SortKey{{Column: "score"}}, 2)
	out := drainAll(t, op)

	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].TupleID)
	assert.Equal(t, int64(4), out[1].TupleID)
}

func TestHeapSortDescendingAndNullsLast(t *testing.T) {
	nullRec := txn.Record{
		TupleID: 9,
		Columns: []string{"score"},
		Values:  []types.Value{types.NullValue(types.Scalar(types.Double))},
	}
	in := &sliceOp{records: []txn.Record{
		nullRec,
		scoreRecord(1, 1.0),
		scoreRecord(2, 7.0),
	}}
	op := NewHeapSortOperator(in, []plan.SortKey{{Column: "score", Descending: true}}, 0)
	out := drainAll(t, op)

	require.Len(t, out, 3)
	assert.Equal(t, int64(2), out[0].TupleID)
	assert.Equal(t, int64(1), out[1].TupleID)
	assert.Equal(t, int64(9), out[2].TupleID, "null value orders last even descending")
}

func TestMergeLimitingHeapSortMergesPartitions(t *testing.T) {
	left := &sliceOp{records: []txn.Record{scoreRecord(1, 1.0), scoreRecord(3, 3.0)}}
	right := &sliceOp{records: []txn.Record{scoreRecord(2, 2.0), scoreRecord(4, 4.0)}}
	op := NewMergeLimitingHeapSortOperator([]Operator{left, right}, []plan.SortKey{{Column: "score"}}, 3)
	out := drainAll(t, op)

	require.Len(t, out, 3)
	assert.Equal(t, int64(1), out[0].TupleID)
	assert.Equal(t, int64(2), out[1].TupleID)
	assert.Equal(t, int64(3), out[2].TupleID)

	op.Close()
	assert.True(t, left.closed)
	assert.True(t, right.closed)
}

func TestLimitAndSkip(t *testing.T) {
	recs := []txn.Record{scoreRecord(1, 1), scoreRecord(2, 2), scoreRecord(3, 3), scoreRecord(4, 4)}

	limited := drainAll(t, NewLimitOperator(&sliceOp{records: recs}, 2))
	require.Len(t, limited, 2)
	assert.Equal(t, int64(1), limited[0].TupleID)

	skipped := drainAll(t, NewSkipOperator(&sliceOp{records: recs}, 3))
	require.Len(t, skipped, 1)
	assert.Equal(t, int64(4), skipped[0].TupleID)
}

func TestFilterOperatorDropsNonMatching(t *testing.T) {
	in := &sliceOp{records: []txn.Record{scoreRecord(1, 1.0), scoreRecord(2, 5.0), scoreRecord(3, 9.0)}}
	pred := predicate.NewCompare("score", predicate.Gt, types.NewDouble(2.0))
	out := drainAll(t, NewFilterOperator(in, pred))

	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].TupleID)
	assert.Equal(t, int64(3), out[1].TupleID)
}

func TestFunctionProjectionComputesDistance(t *testing.T) {
	rec := txn.Record{
		TupleID: 1,
		Columns: []string{"vec"},
		Values:  []types.Value{types.NewDoubleVector([]float64{3, 4})},
	}
	prox := predicate.NewProximity("vec", 1, distance.L2, types.NewDoubleVector([]float64{0, 0}))
	op, err := NewFunctionProjectionOperator(&sliceOp{records: []txn.Record{rec}}, prox, distance.NewRegistry(), false)
	require.NoError(t, err)

	out := drainAll(t, op)
	require.Len(t, out, 1)
	d, ok := out[0].Get("vec#distance")
	require.True(t, ok)
	assert.InDelta(t, 5.0, d.Float64, 1e-12)
}

func TestFunctionProjectionRejectsDimensionMismatch(t *testing.T) {
	rec := txn.Record{
		TupleID: 1,
		Columns: []string{"vec"},
		Values:  []types.Value{types.NewDoubleVector([]float64{1, 2, 3})},
	}
	prox := predicate.NewProximity("vec", 1, distance.L2, types.NewDoubleVector([]float64{0, 0}))
	op, err := NewFunctionProjectionOperator(&sliceOp{records: []txn.Record{rec}}, prox, distance.NewRegistry(), false)
	require.NoError(t, err)

	_, err = op.Next(context.Background())
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindTypeMismatch))
}

func TestSelectProjectionReordersColumns(t *testing.T) {
	rec := txn.Record{
		TupleID: 1,
		Columns: []string{"a", "b"},
		Values:  []types.Value{types.NewLong(1), types.NewString("x")},
	}
	out := drainAll(t, NewSelectProjectionOperator(&sliceOp{records: []txn.Record{rec}}, []string{"b", "a"}))

	require.Len(t, out, 1)
	assert.Equal(t, []string{"b", "a"}, out[0].Columns)
}

func TestSelectDistinctSuppressesDuplicates(t *testing.T) {
	mk := func(id int64, s string) txn.Record {
		return txn.Record{TupleID: id, Columns: []string{"s"}, Values: []types.Value{types.NewString(s)}}
	}
	in := &sliceOp{records: []txn.Record{mk(1, "a"), mk(2, "b"), mk(3, "a"), mk(4, "b"), mk(5, "c")}}
	out := drainAll(t, NewSelectDistinctProjectionOperator(in, []string{"s"}))

	require.Len(t, out, 3)
}

func TestCountProjectionCountsStream(t *testing.T) {
	in := &sliceOp{records: []txn.Record{scoreRecord(1, 1), scoreRecord(2, 2), scoreRecord(3, 3)}}
	out := drainAll(t, NewCountProjectionOperator(in))

	require.Len(t, out, 1)
	v, ok := out[0].Get("count")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.Int64)
}

func TestOperatorsSurfaceCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := &sliceOp{records: []txn.Record{scoreRecord(1, 1)}}
	op := NewHeapSortOperator(in, []plan.SortKey{{Column: "score"}}, 0)
	_, err := op.Next(ctx)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindCancelled))
}
