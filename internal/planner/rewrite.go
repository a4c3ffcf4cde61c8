package planner

import (
	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
)

// rewriteLogical applies the logical rewrite rules in
// sequence: decompose conjunctions into cascaded filters, push filters
// under projections, then defer column fetches until first needed.
func rewriteLogical(root *plan.Node) *plan.Node {
	root = decomposeConjunctions(root)
	root = pushFiltersUnderProjections(root)
	root = deferFetches(root)
	return root
}

// shallowCopy clones n's own fields without recursively cloning
// Inputs (the caller supplies already-rewritten children), clearing
// Output so the caller wires it.
func shallowCopy(n *plan.Node) *plan.Node {
	c := *n
	c.Columns = append([]string(nil), n.Columns...)
	c.Requires = append([]string(nil), n.Requires...)
	c.Output = nil
	return &c
}

func rewireOutputs(n *plan.Node) {
	for _, in := range n.Inputs {
		in.Output = n
	}
}

// decomposeConjunctions replaces a Filter over an AND BooleanPredicate
// with a chain of single-conjunct Filter nodes, the conjunct closest to
// the original input evaluated first — so that a later physical
// enumeration pass can match an index against any individual conjunct
// rather than only the whole AND expression.
func decomposeConjunctions(n *plan.Node) *plan.Node {
	if n == nil {
		return nil
	}
	newInputs := make([]*plan.Node, len(n.Inputs))
	for i, in := range n.Inputs {
		newInputs[i] = decomposeConjunctions(in)
	}
	clone := shallowCopy(n)
	clone.Inputs = newInputs
	rewireOutputs(clone)

	if clone.Kind != plan.KindFilter {
		return clone
	}
	bp, ok := clone.Predicate.(*predicate.BooleanPredicate)
	if !ok || bp.Kind != predicate.And || len(clone.Inputs) != 1 {
		return clone
	}

	cur := clone.Inputs[0]
	for _, conjunct := range bp.Children {
		f := &plan.Node{
			Kind:      plan.KindFilter,
			Arity:     plan.Arity1,
			Depth:     cur.Depth + 1,
			Predicate: conjunct,
			Requires:  conjunct.Columns(),
			Inputs:    []*plan.Node{cur},
		}
		cur.Output = f
		cur = f
	}
	return cur
}

// isProjectionKind reports whether k narrows the column set, i.e. a
// Filter sitting above it may need a column the projection already
// dropped.
func isProjectionKind(k plan.Kind) bool {
	switch k {
	case plan.KindSelectProjection, plan.KindSelectDistinctProject, plan.KindCountProjection:
		return true
	}
	return false
}

// pushFiltersUnderProjections rewrites Filter(Projection(x)) into
// Projection(Filter(x)) wherever it finds that shape, so the filter
// evaluates against x's full column set rather than the projection's
// narrowed one.
func pushFiltersUnderProjections(n *plan.Node) *plan.Node {
	if n == nil {
		return nil
	}
	newInputs := make([]*plan.Node, len(n.Inputs))
	for i, in := range n.Inputs {
		newInputs[i] = pushFiltersUnderProjections(in)
	}
	clone := shallowCopy(n)
	clone.Inputs = newInputs
	rewireOutputs(clone)

	if clone.Kind != plan.KindFilter || len(clone.Inputs) != 1 {
		return clone
	}
	proj := clone.Inputs[0]
	if !isProjectionKind(proj.Kind) || len(proj.Inputs) != 1 {
		return clone
	}

	pushedFilter := shallowCopy(clone)
	pushedFilter.Inputs = []*plan.Node{proj.Inputs[0]}
	rewireOutputs(pushedFilter)

	newProj := shallowCopy(proj)
	newProj.Inputs = []*plan.Node{pushedFilter}
	rewireOutputs(newProj)
	return newProj
}

// deferFetches narrows every source node's (EntityScan/RangedEntityScan/
// IndexScan) Columns to the subset actually required by some ancestor,
// computed top-down from the root's own Columns/Requires, so column
// fetches are deferred until first needed.
func deferFetches(root *plan.Node) *plan.Node {
	needed := map[string]bool{}
	for _, c := range root.Columns {
		needed[c] = true
	}
	for _, c := range root.Requires {
		needed[c] = true
	}
	return pushNeeded(root, needed)
}

func pushNeeded(n *plan.Node, needed map[string]bool) *plan.Node {
	if n == nil {
		return nil
	}
	clone := shallowCopy(n)

	childNeeded := make(map[string]bool, len(needed)+len(n.Requires))
	for c := range needed {
		childNeeded[c] = true
	}
	for _, c := range n.Requires {
		childNeeded[c] = true
	}

	switch n.Kind {
	case plan.KindEntityScan, plan.KindRangedEntityScan, plan.KindIndexScan:
		var narrowed []string
		for _, c := range n.Columns {
			if childNeeded[c] {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) > 0 {
			clone.Columns = narrowed
		}
		return clone
	}

	newInputs := make([]*plan.Node, len(n.Inputs))
	for i, in := range n.Inputs {
		newInputs[i] = pushNeeded(in, childNeeded)
	}
	clone.Inputs = newInputs
	rewireOutputs(clone)
	return clone
}
