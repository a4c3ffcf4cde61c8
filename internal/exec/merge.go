package exec

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/txn"
)

// MergeLimitingHeapSortOperator merges the k-limited sorted streams of
// partitioned sub-plans back into one globally ordered, k-limited
// stream. Each input is drained by its own worker goroutine into a
// bounded channel; the first worker error cancels the rest and
// surfaces to the caller. Since every input is already limited to at
// most k records, the merge materializes at most partitions*k records.
type MergeLimitingHeapSortOperator struct {
	inputs []Operator
	keys   []plan.SortKey
	limit  int
	merged []*txn.Record
	pos    int
	primed bool
}

// NewMergeLimitingHeapSortOperator merges inputs ordered by keys,
// emitting at most limit records (all of them when limit <= 0).
func NewMergeLimitingHeapSortOperator(inputs []Operator, keys []plan.SortKey, limit int) *MergeLimitingHeapSortOperator {
	return &MergeLimitingHeapSortOperator{inputs: inputs, keys: keys, limit: limit}
}

func (o *MergeLimitingHeapSortOperator) prime(ctx context.Context) error {
	type tagged struct {
		rec *txn.Record
	}
	out := make(chan tagged, 64)
	g, gctx := errgroup.WithContext(ctx)
	for _, in := range o.inputs {
		in := in
		g.Go(func() error {
			for {
				rec, err := in.Next(gctx)
				if err != nil {
					return err
				}
				if rec == nil {
					return nil
				}
				select {
				case out <- tagged{rec: rec}:
				case <-gctx.Done():
					return checkCancelled(gctx)
				}
			}
		})
	}

	var collectErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for t := range out {
			o.merged = append(o.merged, t.rec)
		}
	}()
	collectErr = g.Wait()
	close(out)
	wg.Wait()
	if collectErr != nil {
		return collectErr
	}

	sort.Slice(o.merged, func(i, j int) bool { return orderBefore(o.merged[i], o.merged[j], o.keys) })
	if o.limit > 0 && len(o.merged) > o.limit {
		o.merged = o.merged[:o.limit]
	}
	o.primed = true
	return nil
}

func (o *MergeLimitingHeapSortOperator) Next(ctx context.Context) (*txn.Record, error) {
	if !o.primed {
		if err := o.prime(ctx); err != nil {
			return nil, err
		}
	}
	if o.pos >= len(o.merged) {
		return nil, nil
	}
	rec := o.merged[o.pos]
	o.pos++
	return rec, nil
}

// Close closes every input in reverse acquisition order.
func (o *MergeLimitingHeapSortOperator) Close() {
	for i := len(o.inputs) - 1; i >= 0; i-- {
		o.inputs[i].Close()
	}
}
