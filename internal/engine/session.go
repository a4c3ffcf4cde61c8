package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/events"
	"github.com/hyperplane-db/hyperplane/internal/exec"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/index/hash"
	"github.com/hyperplane-db/hyperplane/internal/index/pq"
	"github.com/hyperplane-db/hyperplane/internal/index/vaf"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// indexEntry pairs an opened index instance with its fully-qualified
// name, the key the lock manager mediates access under.
type indexEntry struct {
	name types.Name
	idx  index.Index
}

// entityHandle caches a session's per-entity working state: the entity
// transaction plus every secondary index opened against it.
type entityHandle struct {
	tx      *txn.EntityTx
	indexes []indexEntry
}

// Session is one transaction's view of the engine: a catalogue
// transaction plus lazily opened entity and index handles. A session is
// not safe for concurrent use; the engine hands out independent
// sessions instead. Every DML path applies index maintenance
// synchronously inside the transaction, so commit publishes tuple data
// and index entries atomically.
type Session struct {
	ID       string
	lockID   index.TxnID
	engine   *Engine
	catTx    *catalog.CatalogTx
	writable bool
	started  time.Time

	mu       sync.Mutex
	entities map[string]*entityHandle
	done     bool
}

// Commit finalizes the session's transaction.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return dberr.New(dberr.KindClosedDBO, s.ID, "session already finished")
	}
	s.done = true
	s.engine.forget(s.ID)
	s.engine.locks.ReleaseAll(s.lockID)
	return s.catTx.Commit()
}

// Rollback aborts the session's transaction. Safe to call after an
// operator error; idempotent once finished.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.engine.forget(s.ID)
	s.engine.locks.ReleaseAll(s.lockID)
	return s.catTx.Rollback()
}

func (s *Session) checkOpen() error {
	if s.done {
		return dberr.New(dberr.KindClosedDBO, s.ID, "session already finished")
	}
	return nil
}

// entity returns (opening and caching) the entity transaction and its
// opened indexes.
func (s *Session) entity(name types.Name) (*entityHandle, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	key := name.String()
	if h, ok := s.entities[key]; ok {
		return h, nil
	}
	et, err := txn.OpenEntity(s.catTx, s.engine.cat.Broker(), name)
	if err != nil {
		return nil, err
	}
	metas, err := s.catTx.ListIndexes(name)
	if err != nil {
		return nil, err
	}
	h := &entityHandle{tx: et}
	for _, meta := range metas {
		idx, err := s.openIndex(name, meta)
		if err != nil {
			return nil, err
		}
		h.indexes = append(h.indexes, indexEntry{name: meta.Name(), idx: idx})
	}
	s.entities[key] = h
	return h, nil
}

// openIndex builds the kind-specific constructor arguments and opens
// meta's index through the engine registry.
func (s *Session) openIndex(entity types.Name, meta *catalog.IndexMeta) (index.Index, error) {
	em, err := s.catTx.GetEntity(entity)
	if err != nil {
		return nil, err
	}
	if len(meta.Columns) == 0 {
		return nil, dberr.New(dberr.KindIndexNotSupported, meta.Name().String(), "index has no columns")
	}
	col, ok := em.Column(meta.Columns[0])
	if !ok {
		return nil, dberr.New(dberr.KindColumnMissing, meta.Name().String(), "indexed column not in entity")
	}

	var args interface{}
	switch meta.Kind {
	case "hash":
		args = hash.Args{CatTx: s.catTx, Entity: entity, Meta: meta, Column: col}
	case "vaf":
		mpd := s.engine.cfg.VAFMarksPerDim
		if raw, ok := meta.Params["marksPerDimension"]; ok {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				mpd = v
			}
		}
		args = vaf.Args{CatTx: s.catTx, Entity: entity, Meta: meta, Column: col, MarksPerDim: mpd}
	case "pq":
		cfg := s.engine.cfg.PQ
		if raw, ok := meta.Params["numCentroids"]; ok {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				cfg.NumCentroids = v
			}
		}
		if raw, ok := meta.Params["numSubspaces"]; ok {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 {
				cfg.NumSubspaces = v
			}
		}
		args = pq.Args{CatTx: s.catTx, Entity: entity, Meta: meta, Column: col, Config: cfg}
	default:
		return nil, dberr.New(dberr.KindIndexNotSupported, meta.Name().String(), "unknown index kind "+meta.Kind)
	}
	return s.engine.registry.New(meta.Kind, args)
}

// notify applies data-change events to every opened index covering the
// affected column, taking an exclusive lock on each index touched (a
// shared hold from an earlier scan in the same transaction upgrades
// atomically). Indexes without incremental support mark themselves
// DIRTY; a maintenance or lock failure aborts the caller's operation.
func (s *Session) notify(h *entityHandle, evs []events.Event) error {
	for _, en := range h.indexes {
		cols := en.idx.Columns()
		locked := false
		for _, ev := range evs {
			for _, c := range cols {
				if c == ev.Column {
					if !locked {
						if err := s.engine.locks.Acquire(s.lockID, en.name.String(), index.Exclusive); err != nil {
							return err
						}
						locked = true
					}
					if err := en.idx.Update(ev); err != nil {
						return err
					}
					break
				}
			}
		}
	}
	return nil
}

// --- DDL ---

// CreateSchema registers a new schema.
func (s *Session) CreateSchema(name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.catTx.CreateSchema(name)
}

// DropSchema removes a schema; it must not own entities.
func (s *Session) DropSchema(name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.catTx.DropSchema(name)
}

// ListSchemas returns every schema name.
func (s *Session) ListSchemas() ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.catTx.ListSchemas()
}

// CreateEntity creates an entity with its column list.
func (s *Session) CreateEntity(schema, entity string, columns []catalog.ColumnDef) (*catalog.EntityMeta, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.catTx.CreateEntity(schema, entity, columns)
}

// DropEntity drops an entity, its indexes, columns and statistics.
func (s *Session) DropEntity(name types.Name) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	delete(s.entities, name.String())
	s.engine.planner.Invalidate()
	return s.catTx.DropEntity(name)
}

// ListEntities returns the entities of a schema.
func (s *Session) ListEntities(schema string) ([]*catalog.EntityMeta, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.catTx.ListEntities(schema)
}

// ListColumns returns an entity's column definitions, in order.
func (s *Session) ListColumns(entity types.Name) ([]catalog.ColumnDef, error) {
	em, err := s.catTx.GetEntity(entity)
	if err != nil {
		return nil, err
	}
	return em.Columns, nil
}

// ListIndexes returns an entity's index definitions.
func (s *Session) ListIndexes(entity types.Name) ([]*catalog.IndexMeta, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.catTx.ListIndexes(entity)
}

// CreateIndex registers a new index, runs its initial rebuild and
// returns the operation's status record.
func (s *Session) CreateIndex(ctx context.Context, entity types.Name, indexName, kind string, columns []string, params map[string]string) (*txn.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	op := exec.NewCreateIndexOperator(func() (index.Index, error) {
		meta, err := s.catTx.CreateIndex(entity, indexName, kind, columns, params)
		if err != nil {
			return nil, err
		}
		if err := s.engine.locks.Acquire(s.lockID, meta.Name().String(), index.Exclusive); err != nil {
			return nil, err
		}
		idx, err := s.openIndex(entity, meta)
		if err != nil {
			return nil, err
		}
		if h, ok := s.entities[entity.String()]; ok {
			h.indexes = append(h.indexes, indexEntry{name: meta.Name(), idx: idx})
		}
		return idx, nil
	})
	defer op.Close()
	s.engine.planner.Invalidate()
	return op.Next(ctx)
}

// DropIndex removes an index and its stores.
func (s *Session) DropIndex(name types.Name) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	entity := types.NewEntityName(name.Schema(), name.Entity())
	delete(s.entities, entity.String())
	s.engine.planner.Invalidate()
	return s.catTx.DropIndex(name)
}

// Truncate deletes every live tuple of an entity, returning the
// operation's status record.
func (s *Session) Truncate(ctx context.Context, entity types.Name) (*txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	op := exec.NewTruncateEntityOperator(h.tx)
	defer op.Close()
	return op.Next(ctx)
}

// Optimize recomputes an entity's per-column statistics from a full scan.
func (s *Session) Optimize(entity types.Name) error {
	h, err := s.entity(entity)
	if err != nil {
		return err
	}
	return h.tx.Optimize()
}

// --- DML ---

// Insert writes rows into entity, returning the operation's status
// record. Index maintenance runs synchronously per inserted tuple.
func (s *Session) Insert(ctx context.Context, entity types.Name, rows []map[string]types.Value) (*txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var n int64
	for _, row := range rows {
		rec, err := h.tx.Insert(row)
		if err != nil {
			return nil, err
		}
		evs := make([]events.Event, 0, len(rec.Columns))
		for i, c := range rec.Columns {
			v := rec.Values[i]
			evs = append(evs, events.Event{Kind: events.Insert, Entity: entity, Column: c, TupleID: rec.TupleID, New: &v})
		}
		if err := s.notify(h, evs); err != nil {
			return nil, err
		}
		n++
	}
	return exec.StatusRecord("insert", time.Since(start).Seconds(), n), nil
}

// InsertRecord inserts a single row and returns the allocated record.
func (s *Session) InsertRecord(entity types.Name, row map[string]types.Value) (txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return txn.Record{}, err
	}
	rec, err := h.tx.Insert(row)
	if err != nil {
		return txn.Record{}, err
	}
	evs := make([]events.Event, 0, len(rec.Columns))
	for i, c := range rec.Columns {
		v := rec.Values[i]
		evs = append(evs, events.Event{Kind: events.Insert, Entity: entity, Column: c, TupleID: rec.TupleID, New: &v})
	}
	if err := s.notify(h, evs); err != nil {
		return txn.Record{}, err
	}
	return rec, nil
}

// Read returns one tuple restricted to cols.
func (s *Session) Read(entity types.Name, tupleID int64, cols []string) (txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return txn.Record{}, err
	}
	return h.tx.Read(tupleID, cols)
}

// Update applies values to every tuple matching pred (all tuples when
// pred is nil), returning the operation's status record.
func (s *Session) Update(ctx context.Context, entity types.Name, pred *predicate.BooleanPredicate, values map[string]types.Value) (*txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	ids, err := s.matchingIDs(ctx, h, pred, keysOf(values))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var n int64
	for _, id := range ids {
		old, err := h.tx.Read(id, keysOf(values))
		if err != nil {
			return nil, err
		}
		if err := h.tx.Update(id, values); err != nil {
			return nil, err
		}
		evs := make([]events.Event, 0, len(values))
		for c, next := range values {
			nv := next
			var ov *types.Value
			if prev, ok := old.Get(c); ok {
				p := prev
				ov = &p
			}
			evs = append(evs, events.Event{Kind: events.Update, Entity: entity, Column: c, TupleID: id, Old: ov, New: &nv})
		}
		if err := s.notify(h, evs); err != nil {
			return nil, err
		}
		n++
	}
	return exec.StatusRecord("update", time.Since(start).Seconds(), n), nil
}

// Delete removes every tuple matching pred (all tuples when pred is
// nil), returning the operation's status record.
func (s *Session) Delete(ctx context.Context, entity types.Name, pred *predicate.BooleanPredicate) (*txn.Record, error) {
	h, err := s.entity(entity)
	if err != nil {
		return nil, err
	}
	ids, err := s.matchingIDs(ctx, h, pred, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var n int64
	for _, id := range ids {
		old, err := h.tx.Read(id, nil)
		if err != nil {
			return nil, err
		}
		if err := h.tx.Delete(id); err != nil {
			return nil, err
		}
		evs := make([]events.Event, 0, len(old.Columns))
		for i, c := range old.Columns {
			v := old.Values[i]
			evs = append(evs, events.Event{Kind: events.Delete, Entity: entity, Column: c, TupleID: id, Old: &v})
		}
		if err := s.notify(h, evs); err != nil {
			return nil, err
		}
		n++
	}
	return exec.StatusRecord("delete", time.Since(start).Seconds(), n), nil
}

// matchingIDs materializes the TupleIds matched by pred before any
// mutation, so deletes/updates never run under an open cursor.
func (s *Session) matchingIDs(ctx context.Context, h *entityHandle, pred *predicate.BooleanPredicate, extraCols []string) ([]int64, error) {
	cols := extraCols
	if pred != nil {
		cols = append(append([]string(nil), pred.Columns()...), extraCols...)
	}
	var src exec.Operator = exec.NewEntityScanOperator(h.tx.Meta().Name().String(), h.tx, cols)
	if pred != nil {
		src = exec.NewFilterOperator(src, pred)
	}
	defer src.Close()
	var ids []int64
	for {
		rec, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return ids, nil
		}
		ids = append(ids, rec.TupleID)
	}
}

func keysOf(values map[string]types.Value) []string {
	out := make([]string, 0, len(values))
	for k := range values {
		out = append(out, k)
	}
	return out
}
