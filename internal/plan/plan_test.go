package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

func scanNode() *Node {
	return &Node{
		Kind:    KindEntityScan,
		Arity:   Arity0,
		Columns: []string{"id", "embedding"},
		Entity:  types.NewEntityName("shop", "products"),
		Cost:    cost.Cost{IO: 100, CPU: 10},
	}
}

func TestDigestStableAcrossEquivalentTrees(t *testing.T) {
	a := scanNode()
	b := scanNode()
	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	require.Equal(t, da, db)
}

func TestDigestChangesWithStructure(t *testing.T) {
	scan := scanNode()
	filter := &Node{Kind: KindFilter, Arity: Arity1, Inputs: []*Node{scan}, Requires: []string{"id"}}
	d1, err := filter.Digest()
	require.NoError(t, err)

	filter2 := &Node{Kind: KindFilter, Arity: Arity1, Inputs: []*Node{scan}, Requires: []string{"embedding"}}
	d2, err := filter2.Digest()
	require.NoError(t, err)

	require.NotEqual(t, d1, d2)
}

func TestCopyProducesIndependentTree(t *testing.T) {
	scan := scanNode()
	filter := &Node{Kind: KindFilter, Arity: Arity1, Inputs: []*Node{scan}, Columns: []string{"id"}}
	clone := filter.Copy()

	require.NotSame(t, filter, clone)
	require.NotSame(t, filter.Inputs[0], clone.Inputs[0])
	clone.Columns[0] = "mutated"
	require.Equal(t, "id", filter.Columns[0])
}

func TestCopyWithInputsWiresOutput(t *testing.T) {
	scan := scanNode()
	filter := &Node{Kind: KindFilter, Arity: Arity1}
	wired := filter.CopyWithInputs(scan)
	require.Len(t, wired.Inputs, 1)
	require.Same(t, wired, wired.Inputs[0].Output)
}

func TestCopyWithOutputRejectsOccupiedSlot(t *testing.T) {
	scan := scanNode()
	parent := &Node{Kind: KindFilter, Arity: Arity1, Inputs: []*Node{scan}}
	_, err := scan.CopyWithOutput(parent)
	require.Error(t, err)
}

func TestCopyWithOutputAcceptsFreeSlot(t *testing.T) {
	scan := scanNode()
	parent := &Node{Kind: KindFilter, Arity: Arity1}
	clone, err := scan.CopyWithOutput(parent)
	require.NoError(t, err)
	require.Same(t, parent, clone.Output)
}

func TestTotalCostAggregatesBottomUp(t *testing.T) {
	scan := scanNode()
	filter := &Node{Kind: KindFilter, Arity: Arity1, Inputs: []*Node{scan}, Cost: cost.Cost{IO: 5, CPU: 50}}
	total := filter.TotalCost()
	require.Equal(t, 105.0, total.IO)
	require.Equal(t, 60.0, total.CPU)
}

func TestParallelismHintFollowsCost(t *testing.T) {
	cheap := &Node{Cost: cost.Cost{IO: 1}}
	require.Equal(t, 1, cheap.ParallelismHint())

	expensive := &Node{Cost: cost.Cost{IO: 100000}}
	require.Greater(t, expensive.ParallelismHint(), 1)
}

func TestCopyWithGroupInputsReplacesOnlyMatchingGroup(t *testing.T) {
	a := &Node{Kind: KindEntityScan, GroupID: 1}
	b := &Node{Kind: KindEntityScan, GroupID: 2}
	parent := &Node{Kind: KindFilter, Inputs: []*Node{a, b}}

	replacement := &Node{Kind: KindIndexScan, GroupID: 1}
	clone := parent.CopyWithGroupInputs(1, replacement)

	require.Same(t, replacement, clone.Inputs[0])
	require.Same(t, b, clone.Inputs[1])
	require.Same(t, clone, replacement.Output)
}
