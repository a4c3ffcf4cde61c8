package exec

import (
	"context"

	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/txn"
)

// FilterOperator evaluates a boolean predicate against each incoming
// record, passing matches through and dropping the rest.
type FilterOperator struct {
	input Operator
	pred  *predicate.BooleanPredicate
}

// NewFilterOperator wraps input, testing every record against pred.
func NewFilterOperator(input Operator, pred *predicate.BooleanPredicate) *FilterOperator {
	return &FilterOperator{input: input, pred: pred}
}

func (o *FilterOperator) Next(ctx context.Context) (*txn.Record, error) {
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		rec, err := o.input.Next(ctx)
		if err != nil || rec == nil {
			return rec, err
		}
		ok, err := o.pred.Eval(recordLookup(rec))
		if err != nil {
			return nil, err
		}
		if ok {
			return rec, nil
		}
	}
}

func (o *FilterOperator) Close() { o.input.Close() }
