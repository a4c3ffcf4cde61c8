package engine

import (
	"context"
	"time"

	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/exec"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/metrics"
	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/planner"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// sessionCatalog adapts a session's catalogue view to the planner's
// Catalog contract: live row counts and per-index candidate handles.
type sessionCatalog struct {
	s *Session
}

func (c sessionCatalog) RowCount(entity types.Name) (int, error) {
	h, err := c.s.entity(entity)
	if err != nil {
		return 0, err
	}
	return h.tx.Count(), nil
}

func (c sessionCatalog) Indexes(entity types.Name) ([]planner.IndexCandidate, error) {
	h, err := c.s.entity(entity)
	if err != nil {
		return nil, err
	}
	out := make([]planner.IndexCandidate, 0, len(h.indexes))
	for _, en := range h.indexes {
		idx := en.idx
		if idx.State() != catalog.StateClean && !idx.SupportsIncrementalUpdate() {
			continue
		}
		if len(idx.Columns()) == 0 {
			continue
		}
		out = append(out, planner.IndexCandidate{
			Name:              en.name.Leaf(),
			Column:            idx.Columns()[0],
			CanProcess:        func(pred interface{}) bool { return idx.CanProcess(pred) },
			Cost:              func(pred interface{}) cost.Cost { return idx.Cost(pred) },
			SupportsPartition: idx.SupportsPartitioning(),
		})
	}
	return out, nil
}

// execEnv builds the operator builder's resolver set for this session.
func (s *Session) execEnv() exec.Env {
	return exec.Env{
		Entity: func(name types.Name) (*txn.EntityTx, error) {
			h, err := s.entity(name)
			if err != nil {
				return nil, err
			}
			return h.tx, nil
		},
		Index: func(entity types.Name, indexName string) (index.Index, error) {
			name := types.NewIndexName(entity.Schema(), entity.Entity(), indexName)
			h, err := s.entity(entity)
			if err != nil {
				return nil, err
			}
			// Iteration takes a shared read lock on the index, held for
			// the transaction's lifetime and released with ReleaseAll.
			if err := s.engine.locks.Acquire(s.lockID, name.String(), index.Shared); err != nil {
				return nil, err
			}
			for _, en := range h.indexes {
				if en.name.Equal(name) {
					return en.idx, nil
				}
			}
			meta, err := s.catTx.GetIndex(name)
			if err != nil {
				return nil, err
			}
			return s.openIndex(entity, meta)
		},
		Distance: distance.NewRegistry(),
	}
}

// Query plans and executes a logical plan tree, draining the operator
// tree into a materialized result. On any error the session is rolled
// back and every cursor closed.
func (s *Session) Query(ctx context.Context, logical *plan.Node) ([]txn.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	phys, err := s.engine.planner.Plan(logical, sessionCatalog{s: s})
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("plan_error").Inc()
		s.Rollback()
		return nil, err
	}
	phys = parallelize(phys)

	op, err := exec.Build(phys, s.execEnv())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("build_error").Inc()
		s.Rollback()
		return nil, err
	}
	defer op.Close()

	var out []txn.Record
	for {
		rec, err := op.Next(ctx)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			op.Close()
			s.Rollback()
			return nil, err
		}
		if rec == nil {
			break
		}
		out = append(out, *rec)
	}
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	metrics.QueryDuration.WithLabelValues(entityOf(logical)).Observe(time.Since(start).Seconds())
	return out, nil
}

func entityOf(n *plan.Node) string {
	if n == nil {
		return ""
	}
	if n.Entity.String() != "" && len(n.Inputs) == 0 {
		return n.Entity.String()
	}
	for _, in := range n.Inputs {
		if e := entityOf(in); e != "" {
			return e
		}
	}
	return n.Entity.String()
}

// parallelize rewrites a partitionable top-k plan into per-partition
// sub-plans merged by MergeLimitingHeapSort, when the cost-derived
// parallelism hint asks for more than one worker. The planner's cached
// node is never mutated; everything below works on copies.
func parallelize(phys *plan.Node) *plan.Node {
	if phys == nil || phys.Kind != plan.KindHeapSort || len(phys.Inputs) != 1 {
		return phys
	}
	child := phys.Inputs[0]
	if !child.CanBePartitioned {
		return phys
	}
	hint := phys.ParallelismHint()
	if hint <= 1 {
		return phys
	}

	parts := make([]*plan.Node, hint)
	for i := 0; i < hint; i++ {
		sub := child.Copy()
		setPartition(sub, i, hint)
		sorted := &plan.Node{
			Kind:     plan.KindHeapSort,
			Arity:    plan.Arity1,
			Depth:    phys.Depth,
			Columns:  append([]string(nil), phys.Columns...),
			SortKeys: append([]plan.SortKey(nil), phys.SortKeys...),
			Limit:    phys.Limit,
			Inputs:   []*plan.Node{sub},
		}
		sub.Output = sorted
		parts[i] = sorted
	}
	return &plan.Node{
		Kind:     plan.KindMergeLimitingHeapSort,
		Arity:    plan.ArityN,
		Depth:    phys.Depth,
		Columns:  append([]string(nil), phys.Columns...),
		SortKeys: append([]plan.SortKey(nil), phys.SortKeys...),
		Limit:    phys.Limit,
		Inputs:   parts,
		SortOn:   append([]plan.SortKey(nil), phys.SortKeys...),
	}
}

// setPartition rewrites every partitionable leaf of a copied sub-plan
// to own one partition of the TupleId range.
func setPartition(n *plan.Node, partition, partitions int) {
	switch n.Kind {
	case plan.KindEntityScan:
		n.Kind = plan.KindRangedEntityScan
		n.Partition = partition
		n.Partitions = partitions
	case plan.KindRangedEntityScan:
		n.Partition = partition
		n.Partitions = partitions
	case plan.KindIndexScan:
		if n.CanBePartitioned {
			n.Partition = partition
			n.Partitions = partitions
		}
	}
	for _, in := range n.Inputs {
		setPartition(in, partition, partitions)
	}
}

// Scan streams every tuple of an entity with the requested columns.
func (s *Session) Scan(ctx context.Context, entity types.Name, cols []string) ([]txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	op := exec.NewEntityScanOperator(entity.String(), h.tx, cols)
	defer op.Close()
	return drain(ctx, op)
}

// Sample returns a deterministic Bernoulli sample of an entity.
func (s *Session) Sample(ctx context.Context, entity types.Name, cols []string, p float64, seed int64) ([]txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	op := exec.NewEntitySampleOperator(h.tx, cols, p, seed)
	defer op.Close()
	return drain(ctx, op)
}

// Count returns the entity's live tuple count.
func (s *Session) Count(ctx context.Context, entity types.Name) (int64, error) {
	h, err := s.entity(entity)
	if err != nil {
		return 0, err
	}
	op := exec.NewEntityCountOperator(h.tx)
	defer op.Close()
	rec, err := op.Next(ctx)
	if err != nil {
		return 0, err
	}
	return rec.Values[0].Int64, nil
}

func drain(ctx context.Context, op exec.Operator) ([]txn.Record, error) {
	var out []txn.Record
	for {
		rec, err := op.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return out, nil
		}
		out = append(out, *rec)
	}
}
