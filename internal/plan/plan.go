// Package plan implements the query plan tree: logical and physical
// operator nodes, structural cloning, and the 4-tuple cost model
// aggregated bottom-up.
package plan

import (
	"github.com/mitchellh/hashstructure"

	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// Predicate is satisfied by *predicate.BooleanPredicate and
// *predicate.ProximityPredicate (internal/predicate), kept as interface{}
// here so this package needn't import internal/predicate merely to hold
// a node's filter payload opaquely.
type Predicate interface{}

var errOutputSlotOccupied = dberr.New(dberr.KindSyntax, "", "copyWithOutput: parent already has an input in this slot")

// Arity is a node's input cardinality.
type Arity int

const (
	Arity0 Arity = 0  // source: EntityScan, RangedEntityScan, IndexScan
	Arity1 Arity = 1  // single-input stage: Filter, Projection, HeapSort, Limit...
	Arity2 Arity = 2  // reserved for a future join node
	ArityN Arity = -1 // MergeLimitingHeapSort over N partitioned sub-plans
)

// Kind names every logical/physical operator node.
type Kind string

const (
	KindEntityScan            Kind = "EntityScan"
	KindRangedEntityScan      Kind = "RangedEntityScan"
	KindIndexScan             Kind = "IndexScan"
	KindFilter                Kind = "Filter"
	KindFunctionProjection    Kind = "FunctionProjection"
	KindHeapSort              Kind = "HeapSort"
	KindMergeLimitingHeapSort Kind = "MergeLimitingHeapSort"
	KindLimit                 Kind = "Limit"
	KindSkip                  Kind = "Skip"
	KindCountProjection       Kind = "CountProjection"
	KindSelectProjection      Kind = "SelectProjection"
	KindSelectDistinctProject Kind = "SelectDistinctProjection"
	KindEntitySample          Kind = "EntitySample"
	KindEntityCount           Kind = "EntityCount"
	KindInsert                Kind = "Insert"
	KindUpdate                Kind = "Update"
	KindDelete                Kind = "Delete"
	KindCreateIndex           Kind = "CreateIndex"
	KindTruncateEntity        Kind = "TruncateEntity"
)

// SortKey is one (column, descending) ordering term for HeapSort/MergeLimitingHeapSort.
type SortKey struct {
	Column     string
	Descending bool
}

// Node is one operator in the plan tree. Logical nodes leave the
// Physical-only fields zero; Physicalize populates them. A single
// struct (rather than one Go type per Kind) keeps copy/copyWithInputs
// structural cloning uniform across all ~18 operator kinds.
type Node struct {
	GroupID  int
	Depth    int
	Arity    Arity
	Kind     Kind
	Columns  []string // logical -> physical mapping, ordered
	Requires []string // columns this node's own evaluation needs

	Inputs []*Node
	Output *Node // parent; nil at the tree root

	// Node-kind-specific payload, interpreted per Kind.
	Entity     types.Name
	IndexName  string
	Predicate  Predicate
	SortKeys   []SortKey
	Limit      int
	Skip       int
	Distinct   bool
	Partition  int
	Partitions int
	Params     map[string]string // CreateIndex kind/params, e.g.

	// Physical-only.
	OutputSize       int
	Cost             cost.Cost
	CanBePartitioned bool
	SortOn           []SortKey
	Statistics       map[string]int // column -> distinct-value estimate, propagated from inputs
}

// digestPayload excludes Inputs/Output (structural identity is folded
// in separately by walking children) and excludes Cost/Statistics
// (derived, not part of a plan's logical identity).
type digestPayload struct {
	GroupID   int
	Depth     int
	Arity     Arity
	Kind      Kind
	Columns   []string
	Requires  []string
	Entity    types.Name
	IndexName string
	SortKeys  []SortKey
	Limit     int
	Skip      int
	Distinct  bool
	Partition int
	Partitions int
	Params    map[string]string
}

// Digest returns a stable structural hash combining this node's own
// identity with every input's digest, used as the planner's plan-cache key.
func (n *Node) Digest() (uint64, error) {
	payload := digestPayload{
		GroupID: n.GroupID, Depth: n.Depth, Arity: n.Arity, Kind: n.Kind,
		Columns: n.Columns, Requires: n.Requires, Entity: n.Entity,
		IndexName: n.IndexName, SortKeys: n.SortKeys, Limit: n.Limit,
		Skip: n.Skip, Distinct: n.Distinct, Partition: n.Partition,
		Partitions: n.Partitions, Params: n.Params,
	}
	own, err := hashstructure.Hash(payload, nil)
	if err != nil {
		return 0, err
	}
	h := own
	for _, in := range n.Inputs {
		childDigest, err := in.Digest()
		if err != nil {
			return 0, err
		}
		h = combine(h, childDigest)
	}
	return h, nil
}

func combine(a, b uint64) uint64 {
	// hash_combine-style fold (golden-ratio constant plus shifts),
	// order-sensitive so operand order is part of identity.
	h := a
	h ^= b + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	return h
}

// Copy returns a shallow structural clone of n: same payload fields,
// fresh Inputs slice of cloned children, Output left nil (the caller
// wires it via copyWithOutput).
func (n *Node) Copy() *Node {
	clone := *n
	clone.Inputs = make([]*Node, len(n.Inputs))
	for i, in := range n.Inputs {
		clone.Inputs[i] = in.Copy()
	}
	clone.Output = nil
	clone.Columns = append([]string(nil), n.Columns...)
	clone.Requires = append([]string(nil), n.Requires...)
	return &clone
}

// CopyWithInputs clones n replacing its Inputs, wiring each new input's
// Output back to the clone.
func (n *Node) CopyWithInputs(inputs ...*Node) *Node {
	clone := *n
	clone.Inputs = inputs
	clone.Output = nil
	for _, in := range inputs {
		in.Output = &clone
	}
	return &clone
}

// CopyWithGroupInputs clones n, replacing only the inputs belonging to
// groupID (leaving others untouched) — used when a sub-query's group is
// rewritten independently of its siblings.
func (n *Node) CopyWithGroupInputs(groupID int, inputs ...*Node) *Node {
	clone := *n
	clone.Inputs = make([]*Node, len(n.Inputs))
	copy(clone.Inputs, n.Inputs)
	for _, in := range inputs {
		if in.GroupID == groupID {
			for i, existing := range clone.Inputs {
				if existing.GroupID == groupID {
					clone.Inputs[i] = in
					in.Output = &clone
				}
			}
		}
	}
	return &clone
}

// CopyWithOutput clones n and wires clone.Output to parent, which must
// not already have an input occupying n's former slot.
func (n *Node) CopyWithOutput(parent *Node) (*Node, error) {
	clone := *n
	for _, existing := range parent.Inputs {
		if existing == n {
			return nil, errOutputSlotOccupied
		}
	}
	clone.Output = parent
	return &clone, nil
}

// TotalCost aggregates this node's own Cost plus every input's
// TotalCost, folding costs bottom-up.
func (n *Node) TotalCost() cost.Cost {
	total := n.Cost
	for _, in := range n.Inputs {
		total = total.Add(in.TotalCost())
	}
	return total
}

// ParallelismHint derives a worker-count hint from this node's
// aggregated total cost.
func (n *Node) ParallelismHint() int {
	return cost.ParallelismHint(n.TotalCost())
}
