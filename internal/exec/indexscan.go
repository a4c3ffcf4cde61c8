package exec

import (
	"context"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// IndexScanOperator delegates to a secondary index's Filter/
// FilterPartition, dereferencing each produced TupleId
// back into a full record via the entity transaction and, for a
// proximity predicate, attaching the index's exact distance as a
// synthetic "<column>#distance" value. It preserves whatever order the
// index guarantees: ascending TupleId for a boolean predicate,
// ascending distance for a proximity one.
type IndexScanOperator struct {
	entityTx *txn.EntityTx
	cols     []string
	pred     index.Predicate
	cursor   index.Cursor
}

// NewIndexScanOperator opens idx's cursor over pred, single-partition.
func NewIndexScanOperator(idx index.Index, entityTx *txn.EntityTx, cols []string, pred index.Predicate) (*IndexScanOperator, error) {
	cur, err := idx.Filter(pred)
	if err != nil {
		return nil, err
	}
	return &IndexScanOperator{entityTx: entityTx, cols: cols, pred: pred, cursor: cur}, nil
}

// NewRangedIndexScanOperator opens idx's cursor restricted to one
// partition, for indexes whose SupportsPartitioning() is true.
func NewRangedIndexScanOperator(idx index.Index, entityTx *txn.EntityTx, cols []string, pred index.Predicate, partitionIndex, partitions int) (*IndexScanOperator, error) {
	cur, err := idx.FilterPartition(pred, partitionIndex, partitions)
	if err != nil {
		return nil, err
	}
	return &IndexScanOperator{entityTx: entityTx, cols: cols, pred: pred, cursor: cur}, nil
}

func (o *IndexScanOperator) Next(ctx context.Context) (*txn.Record, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		result, ok, err := o.cursor.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		rec, err := o.entityTx.Read(result.TupleID, o.cols)
		if err != nil {
			if dberr.Is(err, dberr.KindTupleMissing) {
				// Deleted after the index produced it but before
				// dereference; skip rather than fail the whole scan.
				continue
			}
			return nil, err
		}
		if result.HasDistance {
			if pp, ok := index.AsProximity(o.pred); ok {
				rec = rec.With(pp.Column+"#distance", types.NewDouble(result.Distance))
			}
		}
		return &rec, nil
	}
}

func (o *IndexScanOperator) Close() { o.cursor.Close() }
