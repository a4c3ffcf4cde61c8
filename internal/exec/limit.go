package exec

import (
	"context"

	"github.com/hyperplane-db/hyperplane/internal/txn"
)

// LimitOperator passes through at most n records, then reports exhaustion.
type LimitOperator struct {
	input Operator
	n     int
	seen  int
}

// NewLimitOperator caps input's stream at n records.
func NewLimitOperator(input Operator, n int) *LimitOperator {
	return &LimitOperator{input: input, n: n}
}

func (o *LimitOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.seen >= o.n {
		return nil, nil
	}
	rec, err := o.input.Next(ctx)
	if err != nil || rec == nil {
		return rec, err
	}
	o.seen++
	return rec, nil
}

func (o *LimitOperator) Close() { o.input.Close() }

// SkipOperator drops the first n records, passing the rest through.
type SkipOperator struct {
	input   Operator
	n       int
	skipped bool
}

// NewSkipOperator drops input's first n records.
func NewSkipOperator(input Operator, n int) *SkipOperator {
	return &SkipOperator{input: input, n: n}
}

func (o *SkipOperator) Next(ctx context.Context) (*txn.Record, error) {
	if !o.skipped {
		for i := 0; i < o.n; i++ {
			rec, err := o.input.Next(ctx)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				break
			}
		}
		o.skipped = true
	}
	return o.input.Next(ctx)
}

func (o *SkipOperator) Close() { o.input.Close() }
