// Package exec implements the operator executor: a pull-based iterator
// protocol over a physical plan.Node tree, with cooperative
// cancellation and partitioned-scan fan-out merged by
// MergeLimitingHeapSortOperator.
package exec

import (
	"context"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// Operator is the pull-based streaming stage contract every physical
// node compiles to. Next returns (nil, nil) once the stream is
// exhausted; the first non-nil error aborts the whole pipeline and the
// caller must still call Close on every operator it opened. Close is
// idempotent.
type Operator interface {
	Next(ctx context.Context) (*txn.Record, error)
	Close()
}

// checkCancelled surfaces dberr.KindCancelled the moment ctx is done,
// so an operator never blocks past a caller-initiated cancellation or
// timeout; timeouts surface as cancellation.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return dberr.Wrap(dberr.KindCancelled, "", ctx.Err())
	default:
		return nil
	}
}

// StatusRecord builds the single status record a DDL/DML operator
// yields on success, carrying the operation's wall-clock duration and
// affected row count.
func StatusRecord(op string, durationSeconds float64, rowsAffected int64) *txn.Record {
	return &txn.Record{
		Columns: []string{"operation", "duration_seconds", "rows_affected"},
		Values: []types.Value{
			types.NewString(op),
			types.NewDouble(durationSeconds),
			types.NewLong(rowsAffected),
		},
	}
}
