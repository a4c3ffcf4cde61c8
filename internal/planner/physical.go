package planner

import (
	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// rowCPUCost is the assumed per-row CPU unit cost of an in-memory
// operator pass, used to turn a child's estimated OutputSize into a
// parent operator's own Cost contribution.
const rowCPUCost = 0.01

// enumeratePhysical is the entry point of the physical enumeration
// phase: for every entity scan it considers the available
// index alternatives and, for a filter directly over a scan, picks the
// minimum-score option under policy.
func enumeratePhysical(logical *plan.Node, cat Catalog, policy cost.Policy) (*plan.Node, error) {
	return physicalize(logical, cat, policy)
}

func physicalize(n *plan.Node, cat Catalog, policy cost.Policy) (*plan.Node, error) {
	if n == nil {
		return nil, nil
	}
	childPhys := make([]*plan.Node, len(n.Inputs))
	for i, in := range n.Inputs {
		p, err := physicalize(in, cat, policy)
		if err != nil {
			return nil, err
		}
		childPhys[i] = p
	}

	switch n.Kind {
	case plan.KindEntityScan, plan.KindRangedEntityScan:
		return physicalizeScan(n, cat)
	case plan.KindFilter:
		return physicalizeFilter(n, childPhys[0], cat, policy)
	case plan.KindFunctionProjection:
		return physicalizeFunctionProjection(n, childPhys[0])
	default:
		return physicalizeGeneric(n, childPhys)
	}
}

func isScanKind(k plan.Kind) bool {
	return k == plan.KindEntityScan || k == plan.KindRangedEntityScan
}

func estimateSelectivity(rows int) int {
	out := rows / 2
	if out < 1 {
		out = 1
	}
	return out
}

// physicalizeScan computes a scan's baseline cost from the catalogue's
// row-count estimate, falling back to a conservative default when no
// statistics are available (e.g. an empty entity).
func physicalizeScan(n *plan.Node, cat Catalog) (*plan.Node, error) {
	clone := shallowCopy(n)
	rows := 1000
	if cat != nil {
		if r, err := cat.RowCount(n.Entity); err == nil && r > 0 {
			rows = r
		}
	}
	clone.Cost = cost.Cost{IO: float64(rows), CPU: float64(rows) * rowCPUCost}
	clone.OutputSize = rows
	clone.CanBePartitioned = true
	return clone, nil
}

// indexScanColumns augments the underlying scan's requested columns
// with a synthetic distance column when the predicate is a proximity
// request, so downstream HeapSort/projection stages can reference it.
func indexScanColumns(filterPred plan.Predicate, scan *plan.Node) []string {
	cols := append([]string(nil), scan.Columns...)
	if pp, ok := filterPred.(*predicate.ProximityPredicate); ok {
		dcol := pp.Column + "#distance"
		for _, c := range cols {
			if c == dcol {
				return cols
			}
		}
		cols = append(cols, dcol)
	}
	return cols
}

// physicalizeFilter weighs index alternatives against a plain scan:
// the baseline Filter(Scan) plan competes against one IndexScan
// candidate per index that can process the predicate, and the
// minimum-score option under policy wins.
func physicalizeFilter(n *plan.Node, childPhys *plan.Node, cat Catalog, policy cost.Policy) (*plan.Node, error) {
	base := shallowCopy(n)
	base.Inputs = []*plan.Node{childPhys}
	rewireOutputs(base)
	base.Cost = cost.Cost{CPU: float64(childPhys.OutputSize) * rowCPUCost}
	base.OutputSize = estimateSelectivity(childPhys.OutputSize)
	base.CanBePartitioned = childPhys.CanBePartitioned
	base.Statistics = childPhys.Statistics

	best := base
	bestScore := policy.Score(best.TotalCost())

	if isScanKind(childPhys.Kind) && cat != nil {
		candidates, err := cat.Indexes(childPhys.Entity)
		if err == nil {
			for _, cand := range candidates {
				if cand.CanProcess == nil || cand.Cost == nil || !cand.CanProcess(n.Predicate) {
					continue
				}
				idxNode := &plan.Node{
					Kind:             plan.KindIndexScan,
					Arity:            plan.Arity0,
					Depth:            childPhys.Depth,
					Entity:           childPhys.Entity,
					IndexName:        cand.Name,
					Columns:          indexScanColumns(n.Predicate, childPhys),
					Predicate:        n.Predicate,
					Cost:             cand.Cost(n.Predicate),
					CanBePartitioned: cand.SupportsPartition,
				}
				idxNode.OutputSize = estimateSelectivity(childPhys.OutputSize)
				score := policy.Score(idxNode.TotalCost())
				if score < bestScore {
					best = idxNode
					bestScore = score
				}
			}
		}
	}
	return best, nil
}

// physicalizeFunctionProjection applies the vectorization rewrite:
// when the payload is a proximity predicate and the query vector's
// logical size crosses the break-even threshold for its element width,
// the node is tagged to use the vectorized kernel (consumed by
// internal/exec's FunctionProjectionOperator via Params["vectorize"]).
func physicalizeFunctionProjection(n *plan.Node, child *plan.Node) (*plan.Node, error) {
	clone := shallowCopy(n)
	clone.Inputs = []*plan.Node{child}
	rewireOutputs(clone)
	clone.Cost = cost.Cost{CPU: float64(child.OutputSize) * rowCPUCost}
	clone.OutputSize = child.OutputSize
	clone.CanBePartitioned = child.CanBePartitioned

	if pp, ok := n.Predicate.(*predicate.ProximityPredicate); ok && pp.Query.Typ.Kind.IsVector() {
		width := distance.Width64
		if pp.Query.Typ.Kind == types.FloatVector || pp.Query.Typ.Kind == types.IntVector {
			width = distance.Width32
		}
		if distance.ShouldVectorize(pp.Query.Typ.Dim, width) {
			params := make(map[string]string, len(n.Params)+1)
			for k, v := range n.Params {
				params[k] = v
			}
			params["vectorize"] = "true"
			clone.Params = params
		}
	}
	return clone, nil
}

func canNodeBePartitioned(k plan.Kind) bool {
	switch k {
	case plan.KindMergeLimitingHeapSort, plan.KindInsert, plan.KindUpdate, plan.KindDelete,
		plan.KindCreateIndex, plan.KindTruncateEntity:
		return false
	}
	return true
}

func applyLimitSkip(n *plan.Node, size int) int {
	switch n.Kind {
	case plan.KindLimit, plan.KindHeapSort, plan.KindMergeLimitingHeapSort:
		if n.Limit > 0 && n.Limit < size {
			return n.Limit
		}
	case plan.KindSkip:
		out := size - n.Skip
		if out < 0 {
			out = 0
		}
		return out
	}
	return size
}

// physicalizeGeneric handles every remaining node kind uniformly:
// propagate the largest child OutputSize, accumulate a per-row CPU
// cost, and inherit partitionability unless the kind is itself a
// synchronization barrier or a DDL/DML sink.
func physicalizeGeneric(n *plan.Node, childPhys []*plan.Node) (*plan.Node, error) {
	clone := shallowCopy(n)
	clone.Inputs = childPhys
	rewireOutputs(clone)

	var total cost.Cost
	outputSize := 0
	partitioned := len(childPhys) > 0
	for _, c := range childPhys {
		if c == nil {
			continue
		}
		total = total.Add(cost.Cost{CPU: float64(c.OutputSize) * rowCPUCost})
		if c.OutputSize > outputSize {
			outputSize = c.OutputSize
		}
		partitioned = partitioned && c.CanBePartitioned
	}
	clone.Cost = total
	clone.OutputSize = applyLimitSkip(n, outputSize)
	clone.CanBePartitioned = partitioned && canNodeBePartitioned(n.Kind)

	if n.Kind == plan.KindHeapSort || n.Kind == plan.KindMergeLimitingHeapSort {
		clone.SortOn = n.SortKeys
	}
	return clone, nil
}
