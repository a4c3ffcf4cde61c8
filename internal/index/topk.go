package index

import (
	"container/heap"
	"sort"
)

// candidate is one entry of a bounded top-k max-heap: kept so the
// worst-so-far element can be evicted in O(log k) as better candidates
// arrive. Ties break by ascending TupleID (a larger TupleID is "worse"
// and evicted first).
type candidate struct {
	TupleID  int64
	Distance float64
}

type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance // max-heap: worst on top
	}
	return h[i].TupleID > h[j].TupleID
}
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// TopKHeap is a bounded min-distance top-k accumulator shared by the
// VAF and PQ indexes' exact (and approximate) candidate phases.
type TopKHeap struct {
	k int
	h candidateHeap
}

// NewTopKHeap constructs an accumulator bounded to k results.
func NewTopKHeap(k int) *TopKHeap {
	return &TopKHeap{k: k, h: make(candidateHeap, 0, k)}
}

// Len returns the number of candidates currently held.
func (t *TopKHeap) Len() int { return len(t.h) }

// Full reports whether the heap holds k candidates already.
func (t *TopKHeap) Full() bool { return len(t.h) >= t.k }

// Worst returns the current k-th best (i.e. largest-distance) exact
// distance held, used by VAF/PQ to prune candidates whose lower bound
// already exceeds it. ok is false if fewer than k candidates are held.
func (t *TopKHeap) Worst() (distance float64, ok bool) {
	if len(t.h) < t.k {
		return 0, false
	}
	return t.h[0].Distance, true
}

// Offer proposes a candidate; it is kept if the heap has room or beats
// the current worst, evicting the worst in the latter case.
func (t *TopKHeap) Offer(tupleID int64, dist float64) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, candidate{TupleID: tupleID, Distance: dist})
		return
	}
	if dist < t.h[0].Distance || (dist == t.h[0].Distance && tupleID < t.h[0].TupleID) {
		t.h[0] = candidate{TupleID: tupleID, Distance: dist}
		heap.Fix(&t.h, 0)
	}
}

// Results drains the heap into ascending-distance order (ties
// ascending TupleID), the order every proximity result stream
// preserves.
func (t *TopKHeap) Results() []Result {
	out := make([]Result, len(t.h))
	for i, c := range t.h {
		out[i] = Result{TupleID: c.TupleID, Distance: c.Distance, HasDistance: true}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].TupleID < out[j].TupleID
	})
	return out
}
