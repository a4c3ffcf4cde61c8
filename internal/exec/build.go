package exec

import (
	"strconv"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// Env supplies the transactional context Build needs to materialize
// operators: entity transactions, opened index instances and the
// distance kernel registry. The engine layer provides the concrete
// resolvers, scoped to the running transaction.
type Env struct {
	Entity   func(name types.Name) (*txn.EntityTx, error)
	Index    func(entity types.Name, indexName string) (index.Index, error)
	Distance *distance.Registry
}

// Build turns a physical plan tree into its operator tree. DDL/DML
// sinks (Insert, Update, Delete, CreateIndex, TruncateEntity) are
// constructed directly by the engine, which owns their side-effecting
// inputs; Build covers the streaming query kinds.
func Build(n *plan.Node, env Env) (Operator, error) {
	if n == nil {
		return nil, dberr.New(dberr.KindSyntax, "", "nil plan node")
	}

	buildInput := func(i int) (Operator, error) {
		if i >= len(n.Inputs) {
			return nil, dberr.New(dberr.KindSyntax, string(n.Kind), "missing operator input")
		}
		return Build(n.Inputs[i], env)
	}

	switch n.Kind {
	case plan.KindEntityScan:
		et, err := env.Entity(n.Entity)
		if err != nil {
			return nil, err
		}
		return NewEntityScanOperator(n.Entity.String(), et, n.Columns), nil

	case plan.KindRangedEntityScan:
		et, err := env.Entity(n.Entity)
		if err != nil {
			return nil, err
		}
		return NewRangedEntityScanOperator(n.Entity.String(), et, n.Columns, n.Partition, n.Partitions), nil

	case plan.KindIndexScan:
		et, err := env.Entity(n.Entity)
		if err != nil {
			return nil, err
		}
		idx, err := env.Index(n.Entity, n.IndexName)
		if err != nil {
			return nil, err
		}
		if n.Partitions > 1 {
			return NewRangedIndexScanOperator(idx, et, scanColumns(n, et), n.Predicate, n.Partition, n.Partitions)
		}
		return NewIndexScanOperator(idx, et, scanColumns(n, et), n.Predicate)

	case plan.KindFilter:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		switch pred := n.Predicate.(type) {
		case *predicate.BooleanPredicate:
			return NewFilterOperator(in, pred), nil
		case *predicate.ProximityPredicate:
			// No index took the proximity predicate: fall back to
			// computing the distance per tuple and let the bounding
			// sort above keep the k nearest.
			return NewFunctionProjectionOperator(in, pred, env.Distance, n.Params["vectorize"] == "true")
		default:
			return nil, dberr.New(dberr.KindUnsupportedPredicate, n.Entity.String(), "filter requires a boolean or proximity predicate")
		}

	case plan.KindFunctionProjection:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		pp, ok := n.Predicate.(*predicate.ProximityPredicate)
		if !ok {
			return nil, dberr.New(dberr.KindUnsupportedPredicate, n.Entity.String(), "function projection requires a proximity predicate")
		}
		return NewFunctionProjectionOperator(in, pp, env.Distance, n.Params["vectorize"] == "true")

	case plan.KindHeapSort:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		return NewHeapSortOperator(in, n.SortKeys, n.Limit), nil

	case plan.KindMergeLimitingHeapSort:
		inputs := make([]Operator, 0, len(n.Inputs))
		for i := range n.Inputs {
			in, err := buildInput(i)
			if err != nil {
				for _, opened := range inputs {
					opened.Close()
				}
				return nil, err
			}
			inputs = append(inputs, in)
		}
		return NewMergeLimitingHeapSortOperator(inputs, n.SortKeys, n.Limit), nil

	case plan.KindLimit:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		return NewLimitOperator(in, n.Limit), nil

	case plan.KindSkip:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		return NewSkipOperator(in, n.Skip), nil

	case plan.KindCountProjection:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		return NewCountProjectionOperator(in), nil

	case plan.KindSelectProjection:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		return NewSelectProjectionOperator(in, n.Columns), nil

	case plan.KindSelectDistinctProject:
		in, err := buildInput(0)
		if err != nil {
			return nil, err
		}
		return NewSelectDistinctProjectionOperator(in, n.Columns), nil

	case plan.KindEntitySample:
		et, err := env.Entity(n.Entity)
		if err != nil {
			return nil, err
		}
		p := paramFloat(n.Params, "probability", 0.1)
		seed := paramInt(n.Params, "seed", 1)
		return NewEntitySampleOperator(et, n.Columns, p, seed), nil

	case plan.KindEntityCount:
		et, err := env.Entity(n.Entity)
		if err != nil {
			return nil, err
		}
		return NewEntityCountOperator(et), nil

	default:
		return nil, dberr.New(dberr.KindNotSupported, string(n.Kind), "no operator for plan node kind")
	}
}

// scanColumns strips synthetic distance columns from an index scan's
// requested set; the index supplies those itself.
func scanColumns(n *plan.Node, et *txn.EntityTx) []string {
	cols := make([]string, 0, len(n.Columns))
	for _, c := range n.Columns {
		if _, ok := et.Meta().Column(c); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func paramFloat(params map[string]string, key string, def float64) float64 {
	if raw, ok := params[key]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}

func paramInt(params map[string]string, key string, def int64) int64 {
	if raw, ok := params[key]; ok {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	}
	return def
}
