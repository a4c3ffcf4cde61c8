package exec

import (
	"context"
	"time"

	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// InsertOperator writes a batch of rows into an entity and yields a
// single status record with the operation's duration and row count.
type InsertOperator struct {
	entityTx *txn.EntityTx
	rows     []map[string]types.Value
	done     bool
}

// NewInsertOperator inserts rows into entityTx.
func NewInsertOperator(entityTx *txn.EntityTx, rows []map[string]types.Value) *InsertOperator {
	return &InsertOperator{entityTx: entityTx, rows: rows}
}

func (o *InsertOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.done {
		return nil, nil
	}
	start := time.Now()
	var n int64
	for _, row := range o.rows {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if _, err := o.entityTx.Insert(row); err != nil {
			return nil, err
		}
		n++
	}
	o.done = true
	return StatusRecord("insert", time.Since(start).Seconds(), n), nil
}

func (o *InsertOperator) Close() {}

// UpdateOperator applies a column-value assignment to every record its
// input produces, yielding a single status record.
type UpdateOperator struct {
	input    Operator
	entityTx *txn.EntityTx
	values   map[string]types.Value
	done     bool
}

// NewUpdateOperator updates each tuple streamed by input with values.
func NewUpdateOperator(input Operator, entityTx *txn.EntityTx, values map[string]types.Value) *UpdateOperator {
	return &UpdateOperator{input: input, entityTx: entityTx, values: values}
}

func (o *UpdateOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.done {
		return nil, nil
	}
	start := time.Now()
	var n int64
	for {
		rec, err := o.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if err := o.entityTx.Update(rec.TupleID, o.values); err != nil {
			return nil, err
		}
		n++
	}
	o.done = true
	return StatusRecord("update", time.Since(start).Seconds(), n), nil
}

func (o *UpdateOperator) Close() { o.input.Close() }

// DeleteOperator deletes every tuple its input produces, yielding a
// single status record.
type DeleteOperator struct {
	input    Operator
	entityTx *txn.EntityTx
	done     bool
}

// NewDeleteOperator deletes each tuple streamed by input.
func NewDeleteOperator(input Operator, entityTx *txn.EntityTx) *DeleteOperator {
	return &DeleteOperator{input: input, entityTx: entityTx}
}

func (o *DeleteOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.done {
		return nil, nil
	}
	start := time.Now()
	var n int64
	for {
		rec, err := o.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if err := o.entityTx.Delete(rec.TupleID); err != nil {
			return nil, err
		}
		n++
	}
	o.done = true
	return StatusRecord("delete", time.Since(start).Seconds(), n), nil
}

func (o *DeleteOperator) Close() { o.input.Close() }

// TruncateEntityOperator deletes every live tuple of an entity,
// yielding a single status record. Statistics follow the per-value
// delete path, so they end up reflecting the emptied entity.
type TruncateEntityOperator struct {
	entityTx *txn.EntityTx
	done     bool
}

// NewTruncateEntityOperator truncates entityTx's entity.
func NewTruncateEntityOperator(entityTx *txn.EntityTx) *TruncateEntityOperator {
	return &TruncateEntityOperator{entityTx: entityTx}
}

func (o *TruncateEntityOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.done {
		return nil, nil
	}
	start := time.Now()

	// Collect ids first: deleting under an open cursor would mutate the
	// store the cursor iterates.
	cur := o.entityTx.Cursor(nil, 0, 1)
	var ids []int64
	for {
		rec, ok, err := cur.Next()
		if err != nil {
			cur.Close()
			return nil, err
		}
		if !ok {
			break
		}
		ids = append(ids, rec.TupleID)
	}
	cur.Close()

	var n int64
	for _, id := range ids {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if err := o.entityTx.Delete(id); err != nil {
			return nil, err
		}
		n++
	}
	o.done = true
	return StatusRecord("truncate", time.Since(start).Seconds(), n), nil
}

func (o *TruncateEntityOperator) Close() {}

// CreateIndexOperator registers a new index and runs its initial
// rebuild, yielding a single status record with the indexed row count.
// The catalogue-side registration and type-specific open are supplied
// as a closure so this operator stays agnostic of per-type Args shapes.
type CreateIndexOperator struct {
	create func() (index.Index, error)
	done   bool
}

// NewCreateIndexOperator wraps create, which must register the index in
// the catalogue and return an opened instance ready for Rebuild.
func NewCreateIndexOperator(create func() (index.Index, error)) *CreateIndexOperator {
	return &CreateIndexOperator{create: create}
}

func (o *CreateIndexOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.done {
		return nil, nil
	}
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	idx, err := o.create()
	if err != nil {
		return nil, err
	}
	if err := idx.Rebuild(); err != nil {
		return nil, err
	}
	o.done = true
	return StatusRecord("create_index", time.Since(start).Seconds(), int64(idx.Count())), nil
}

func (o *CreateIndexOperator) Close() {}
