// Package cost implements the 4-tuple cost model: a per-node
// (io, cpu, memory, accuracy) estimate and a policy-weighted
// score used by the planner to rank alternative physical plans. It is a
// small leaf package so that both internal/index (index.Cost) and
// internal/plan (physical node cost propagation) can depend on it
// without a cycle between them.
package cost

// Cost is the 4-tuple cost estimate of one plan node or index access
// path: io (bytes/pages touched), cpu (operations), memory (bytes
// held), accuracy (0 = exact, >0 = expected relative error of an
// approximate index such as PQ).
type Cost struct {
	IO       float64
	CPU      float64
	Memory   float64
	Accuracy float64
}

// Add combines two costs component-wise, the aggregation rule
// totalCost uses to fold a node's own cost with its inputs' costs.
func (c Cost) Add(o Cost) Cost {
	return Cost{
		IO:       c.IO + o.IO,
		CPU:      c.CPU + o.CPU,
		Memory:   c.Memory + o.Memory,
		Accuracy: c.Accuracy + o.Accuracy,
	}
}

// Policy holds the four weights combined with a Cost to produce a
// single comparable score. Default: (0.6, 0.2, 0.2, 0.0).
type Policy struct {
	WeightIO       float64
	WeightCPU      float64
	WeightMemory   float64
	WeightAccuracy float64
}

// DefaultPolicy is the engine's out-of-the-box weighting.
var DefaultPolicy = Policy{WeightIO: 0.6, WeightCPU: 0.2, WeightMemory: 0.2, WeightAccuracy: 0.0}

// Score computes the policy-weighted scalar score of c; the planner
// picks the physical plan with the minimum score.
func (p Policy) Score(c Cost) float64 {
	return p.WeightIO*c.IO + p.WeightCPU*c.CPU + p.WeightMemory*c.Memory + p.WeightAccuracy*c.Accuracy
}

// ParallelismHint derives a suggested worker count from a node's total
// cost: roughly one worker per decade of IO cost, capped at 8, floored
// at 1. Deliberately coarse; only the monotonicity in totalCost matters.
func ParallelismHint(total Cost) int {
	hint := 1
	io := total.IO
	for io >= 10 && hint < 8 {
		io /= 10
		hint++
	}
	return hint
}
