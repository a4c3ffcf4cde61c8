package exec

import (
	"context"
	"math/rand"

	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// EntitySampleOperator streams a Bernoulli sample of an entity: each
// tuple passes with probability p, decided by a deterministic
// seed-driven RNG so a repeated sample over unchanged data returns the
// same tuples.
type EntitySampleOperator struct {
	cursor *txn.EntityCursor
	p      float64
	rng    *rand.Rand
}

// NewEntitySampleOperator samples entityTx's tuples with probability p
// using seed.
func NewEntitySampleOperator(entityTx *txn.EntityTx, cols []string, p float64, seed int64) *EntitySampleOperator {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &EntitySampleOperator{
		cursor: entityTx.Cursor(cols, 0, 1),
		p:      p,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (o *EntitySampleOperator) Next(ctx context.Context) (*txn.Record, error) {
	for {
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
		if o.rng.Float64() < o.p {
			return &rec, nil
		}
	}
}

func (o *EntitySampleOperator) Close() { o.cursor.Close() }

// EntityCountOperator emits a single record holding the entity's live
// tuple count, read from the entity's data store rather than by scanning.
type EntityCountOperator struct {
	entityTx *txn.EntityTx
	done     bool
}

// NewEntityCountOperator counts entityTx's live tuples.
func NewEntityCountOperator(entityTx *txn.EntityTx) *EntityCountOperator {
	return &EntityCountOperator{entityTx: entityTx}
}

func (o *EntityCountOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.done {
		return nil, nil
	}
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	o.done = true
	return &txn.Record{Columns: []string{"count"}, Values: []types.Value{types.NewLong(int64(o.entityTx.Count()))}}, nil
}

func (o *EntityCountOperator) Close() {}
