// Package index defines the abstract index contract: the Index
// interface every secondary index type (hash, VAF, PQ, and — as an
// external collaborator — fulltext) satisfies, a type registry indexes
// are looked up through by kind name, and the shared lock manager
// serializing concurrent rebuild/iteration access.
package index

import (
	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/events"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
)

// Predicate is satisfied by *predicate.BooleanPredicate and
// *predicate.ProximityPredicate, the two variants an index's
// CanProcess/Cost/Filter may be asked to handle.
type Predicate interface{}

// Result is one row an index's Filter produces: a TupleId plus,
// for proximity predicates, the exact distance used to order it.
type Result struct {
	TupleID     int64
	Distance    float64
	HasDistance bool
}

// Cursor is a lazy, single-pass sequence of Results. Concurrent
// iteration of the same index requires a read lock; callers must Close
// on every exit path.
type Cursor interface {
	Next() (Result, bool, error)
	Close()
}

// SliceCursor adapts a pre-computed []Result (e.g. a VAF/PQ query's
// fully-materialized top-k) into a Cursor.
type SliceCursor struct {
	results []Result
	pos     int
}

// NewSliceCursor wraps results as a Cursor.
func NewSliceCursor(results []Result) *SliceCursor { return &SliceCursor{results: results} }

func (c *SliceCursor) Next() (Result, bool, error) {
	if c.pos >= len(c.results) {
		return Result{}, false, nil
	}
	r := c.results[c.pos]
	c.pos++
	return r, true, nil
}

func (c *SliceCursor) Close() {}

// Index is the abstract contract every secondary index type implements.
type Index interface {
	Type() string
	Columns() []string
	State() catalog.IndexState
	Count() int
	SupportsIncrementalUpdate() bool
	SupportsPartitioning() bool
	CanProcess(pred Predicate) bool
	Cost(pred Predicate) cost.Cost
	Filter(pred Predicate) (Cursor, error)
	FilterPartition(pred Predicate, partitionIndex, partitions int) (Cursor, error)
	Rebuild() error
	Update(ev events.Event) error
	Clear() error
}

// AsBoolean narrows pred to a *predicate.BooleanPredicate, ok=false otherwise.
func AsBoolean(pred Predicate) (*predicate.BooleanPredicate, bool) {
	p, ok := pred.(*predicate.BooleanPredicate)
	return p, ok
}

// AsProximity narrows pred to a *predicate.ProximityPredicate, ok=false otherwise.
func AsProximity(pred Predicate) (*predicate.ProximityPredicate, bool) {
	p, ok := pred.(*predicate.ProximityPredicate)
	return p, ok
}
