// Package engine is the embeddable top-level handle: it ties the
// catalogue, store environment, index registry, planner and operator
// executor into one open/close lifecycle and exposes the client
// surface a host layer builds on — DDL, DML, scans, samples, counts
// and composite vector-search queries, plus transaction administration.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/index/hash"
	"github.com/hyperplane-db/hyperplane/internal/index/pq"
	"github.com/hyperplane-db/hyperplane/internal/index/vaf"
	"github.com/hyperplane-db/hyperplane/internal/logx"
	"github.com/hyperplane-db/hyperplane/internal/planner"
)

// Config bundles the engine's tunable policy variables. The zero value
// selects every documented default, so an embedding application can
// pass Config{} and adjust nothing.
type Config struct {
	Policy            cost.Policy
	PlanCacheCapacity int
	PQ                pq.Config
	VAFMarksPerDim    int
}

// DefaultConfig returns the engine's out-of-the-box policy.
func DefaultConfig() Config {
	return Config{
		Policy:            cost.DefaultPolicy,
		PlanCacheCapacity: planner.DefaultCacheCapacity,
		PQ:                pq.DefaultConfig(),
		VAFMarksPerDim:    vaf.DefaultMarksPerDimension,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Policy == (cost.Policy{}) {
		c.Policy = d.Policy
	}
	if c.PlanCacheCapacity <= 0 {
		c.PlanCacheCapacity = d.PlanCacheCapacity
	}
	if c.PQ == (pq.Config{}) {
		c.PQ = d.PQ
	}
	if c.VAFMarksPerDim <= 0 {
		c.VAFMarksPerDim = d.VAFMarksPerDim
	}
	return c
}

// Engine is the top-level database handle. All of its methods are safe
// for concurrent use; per-session state lives on Session.
type Engine struct {
	cat      *catalog.Catalog
	planner  *planner.Planner
	registry *index.Registry
	locks    *index.LockManager
	cfg      Config
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	lockSeq  int64
}

// Open opens (creating if needed) the database at path.
func Open(path string, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	pl, err := planner.New(cfg.PlanCacheCapacity, cfg.Policy)
	if err != nil {
		cat.Close()
		return nil, err
	}
	reg := index.NewRegistry()
	reg.Register("hash", hash.NewFactory())
	reg.Register("vaf", vaf.NewFactory())
	reg.Register("pq", pq.NewFactory())

	e := &Engine{
		cat:      cat,
		planner:  pl,
		registry: reg,
		locks:    index.NewLockManager(),
		cfg:      cfg,
		log:      logx.WithComponent("engine"),
		sessions: make(map[string]*Session),
	}
	e.log.Info().Str("path", path).Msg("engine opened")
	return e, nil
}

// Close rolls back every open session and closes the catalogue,
// blocking until in-flight transactions have released the close-lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	open := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		open = append(open, s)
	}
	e.mu.Unlock()
	for _, s := range open {
		s.Rollback()
	}
	return e.cat.Close()
}

// Begin starts a new session (one catalogue transaction plus its
// per-entity and per-index working state), registered for admin
// listing until Commit or Rollback.
func (e *Engine) Begin(writable bool) (*Session, error) {
	catTx, err := e.cat.Begin(writable)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.lockSeq++
	s := &Session{
		ID:       uuid.New().String(),
		lockID:   index.TxnID(e.lockSeq),
		engine:   e,
		catTx:    catTx,
		writable: writable,
		started:  time.Now(),
		entities: make(map[string]*entityHandle),
	}
	e.sessions[s.ID] = s
	e.mu.Unlock()
	return s, nil
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

// TxInfo describes one ongoing transaction for the admin surface.
type TxInfo struct {
	ID       string
	Writable bool
	Started  time.Time
}

// Transactions lists the ongoing sessions.
func (e *Engine) Transactions() []TxInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TxInfo, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, TxInfo{ID: s.ID, Writable: s.writable, Started: s.started})
	}
	return out
}

// RollbackByID aborts the identified ongoing transaction.
func (e *Engine) RollbackByID(id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return dberr.New(dberr.KindAborted, id, "no such transaction")
	}
	return s.Rollback()
}

// Planner exposes the shared planner, mainly for tests inspecting
// cache behavior.
func (e *Engine) Planner() *planner.Planner { return e.planner }
