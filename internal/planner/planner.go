// Package planner implements the query planner: an LRU-bounded plan
// cache keyed by a logical tree's digest, a two-phase rewrite (logical
// rewrites, then cost-based physical enumeration) and the vectorized
// break-even rewrite for distance projections.
package planner

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/logx"
	"github.com/hyperplane-db/hyperplane/internal/metrics"
	"github.com/hyperplane-db/hyperplane/internal/plan"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// DefaultCacheCapacity bounds the plan cache when no capacity is configured.
const DefaultCacheCapacity = 100

// IndexCandidate is one secondary index available over an entity, the
// unit of information physical enumeration needs to weigh an IndexScan
// alternative against a plain EntityScan — kept an opaque handle here
// (Index lives in internal/index) so this package only depends on
// internal/index's exported contract via the Catalog interface below.
type IndexCandidate struct {
	Name               string
	Column             string
	CanProcess         func(pred interface{}) bool
	Cost               func(pred interface{}) cost.Cost
	SupportsPartition  bool
}

// Catalog is the minimal view of catalogue/statistics state the
// planner needs: row-count estimates for scan cost and the indexes
// registered on an entity. The engine layer supplies the concrete
// implementation (backed by internal/catalog and internal/index).
type Catalog interface {
	RowCount(entity types.Name) (int, error)
	Indexes(entity types.Name) ([]IndexCandidate, error)
}

// Planner rewrites a logical plan.Node tree into a physical one,
// memoizing by the logical tree's digest.
type Planner struct {
	cache  *lru.Cache
	policy cost.Policy
	log    zerolog.Logger
}

// New constructs a Planner with the given plan-cache capacity and
// cost-weight policy (default cost.DefaultPolicy).
func New(cacheCapacity int, policy cost.Policy) (*Planner, error) {
	if cacheCapacity <= 0 {
		cacheCapacity = DefaultCacheCapacity
	}
	c, err := lru.New(cacheCapacity)
	if err != nil {
		return nil, err
	}
	return &Planner{cache: c, policy: policy, log: logx.WithComponent("planner")}, nil
}

// Plan returns logical's physical plan, looking up the plan cache
// first and running the two-phase rewrite on a miss.
func (p *Planner) Plan(logical *plan.Node, cat Catalog) (*plan.Node, error) {
	digest, err := logical.Digest()
	if err != nil {
		return nil, dberr.Wrap(dberr.KindSyntax, "", err)
	}
	if cached, ok := p.cache.Get(digest); ok {
		metrics.PlanCacheHits.Inc()
		return cached.(*plan.Node), nil
	}
	metrics.PlanCacheMisses.Inc()

	rewritten := rewriteLogical(logical)
	physical, err := enumeratePhysical(rewritten, cat, p.policy)
	if err != nil {
		return nil, err
	}
	p.cache.Add(digest, physical)
	return physical, nil
}

// Invalidate drops every cached plan, used after DDL that changes an
// entity's index set (a cached plan may reference an index that no
// longer exists or exists where it didn't before).
func (p *Planner) Invalidate() { p.cache.Purge() }

// CacheLen reports the number of cached plans, for tests and metrics.
func (p *Planner) CacheLen() int { return p.cache.Len() }
