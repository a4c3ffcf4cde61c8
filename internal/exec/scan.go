package exec

import (
	"context"

	"github.com/hyperplane-db/hyperplane/internal/metrics"
	"github.com/hyperplane-db/hyperplane/internal/txn"
)

// EntityScanOperator is the full-scan source operator: it produces
// every live tuple of an entity with the requested columns, ordered by
// ascending TupleId via the entity's composite cursor.
type EntityScanOperator struct {
	entity string
	cursor *txn.EntityCursor
}

// NewEntityScanOperator wraps a single-partition composite cursor over
// entityTx restricted to cols (all declared columns if cols is empty).
func NewEntityScanOperator(entityName string, entityTx *txn.EntityTx, cols []string) *EntityScanOperator {
	return &EntityScanOperator{entity: entityName, cursor: entityTx.Cursor(cols, 0, 1)}
}

func (o *EntityScanOperator) Next(ctx context.Context) (*txn.Record, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	rec, ok, err := o.cursor.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	metrics.TuplesScanned.WithLabelValues(o.entity).Inc()
	return &rec, nil
}

func (o *EntityScanOperator) Close() { o.cursor.Close() }

// RangedEntityScanOperator is the partitioned counterpart of
// EntityScanOperator: it only produces the TupleId range owned by
// partitionIndex out of partitions,
// used as the leaf of a fanned-out parallel scan.
type RangedEntityScanOperator struct {
	entity string
	cursor *txn.EntityCursor
}

// NewRangedEntityScanOperator wraps entityTx's cursor over one
// partition's TupleId range.
func NewRangedEntityScanOperator(entityName string, entityTx *txn.EntityTx, cols []string, partitionIndex, partitions int) *RangedEntityScanOperator {
	return &RangedEntityScanOperator{entity: entityName, cursor: entityTx.Cursor(cols, partitionIndex, partitions)}
}

func (o *RangedEntityScanOperator) Next(ctx context.Context) (*txn.Record, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	rec, ok, err := o.cursor.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	metrics.TuplesScanned.WithLabelValues(o.entity).Inc()
	return &rec, nil
}

func (o *RangedEntityScanOperator) Close() { o.cursor.Close() }
