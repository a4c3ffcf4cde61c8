package exec

import (
	"container/heap"
	"context"
	"sort"

	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/txn"
)

// orderBefore reports whether a orders strictly before b under keys.
// Null values order last regardless of direction; ties break by
// ascending TupleId so output order is deterministic.
func orderBefore(a, b *txn.Record, keys []plan.SortKey) bool {
	for _, key := range keys {
		av, aok := a.Get(key.Column)
		bv, bok := b.Get(key.Column)
		aNull := !aok || av.Null
		bNull := !bok || bv.Null
		if aNull || bNull {
			if aNull == bNull {
				continue
			}
			return bNull
		}
		c, err := av.Compare(bv)
		if err != nil || c == 0 {
			continue
		}
		if key.Descending {
			return c > 0
		}
		return c < 0
	}
	return a.TupleID < b.TupleID
}

// recordHeap is a max-heap under orderBefore: the root is the worst
// record currently held, so a bounded top-k sort can evict it when a
// better record arrives.
type recordHeap struct {
	records []*txn.Record
	keys    []plan.SortKey
}

func (h recordHeap) Len() int { return len(h.records) }
func (h recordHeap) Less(i, j int) bool {
	return orderBefore(h.records[j], h.records[i], h.keys)
}
func (h recordHeap) Swap(i, j int) { h.records[i], h.records[j] = h.records[j], h.records[i] }
func (h *recordHeap) Push(x interface{}) {
	h.records = append(h.records, x.(*txn.Record))
}
func (h *recordHeap) Pop() interface{} {
	old := h.records
	n := len(old)
	r := old[n-1]
	h.records = old[:n-1]
	return r
}

// HeapSortOperator is the bounded top-k sort: it drains its input on
// the first Next, keeping at most limit records in a heap (all of them
// when limit <= 0), then emits them in key order.
type HeapSortOperator struct {
	input  Operator
	keys   []plan.SortKey
	limit  int
	sorted []*txn.Record
	pos    int
	primed bool
}

// NewHeapSortOperator sorts input by keys, keeping only the best limit
// records when limit > 0.
func NewHeapSortOperator(input Operator, keys []plan.SortKey, limit int) *HeapSortOperator {
	return &HeapSortOperator{input: input, keys: keys, limit: limit}
}

func (o *HeapSortOperator) prime(ctx context.Context) error {
	h := &recordHeap{keys: o.keys}
	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		rec, err := o.input.Next(ctx)
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		if o.limit > 0 && h.Len() >= o.limit {
			worst := h.records[0]
			if !orderBefore(rec, worst, o.keys) {
				continue
			}
			heap.Pop(h)
		}
		heap.Push(h, rec)
	}
	o.sorted = h.records
	sort.Slice(o.sorted, func(i, j int) bool { return orderBefore(o.sorted[i], o.sorted[j], o.keys) })
	o.primed = true
	return nil
}

func (o *HeapSortOperator) Next(ctx context.Context) (*txn.Record, error) {
	if !o.primed {
		if err := o.prime(ctx); err != nil {
			return nil, err
		}
	}
	if o.pos >= len(o.sorted) {
		return nil, nil
	}
	rec := o.sorted[o.pos]
	o.pos++
	return rec, nil
}

func (o *HeapSortOperator) Close() { o.input.Close() }
