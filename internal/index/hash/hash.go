// Package hash implements the hash secondary index: an exact-match
// lookup structure for equality predicates, the cheapest alternative
// the planner can substitute for a filtered full scan.
package hash

import (
	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/cost"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/events"
	"github.com/hyperplane-db/hyperplane/internal/index"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

const delimiter = 0x00

// Index is a hash-map-like secondary index over one column, persisted
// as one store keyed by marshal(value)||0x00||tupleId, each entry a
// 1-byte marker. A prefix scan over marshal(value)||0x00 enumerates
// every tuple holding that exact value.
type Index struct {
	meta   *catalog.IndexMeta
	catTx  *catalog.CatalogTx
	entity types.Name
	column catalog.ColumnDef
	store  *store.Store
}

// Args bundles the constructor parameters threaded through the index
// registry's type-erased Factory signature.
type Args struct {
	CatTx  *catalog.CatalogTx
	Entity types.Name
	Meta   *catalog.IndexMeta
	Column catalog.ColumnDef
}

func storeName(meta *catalog.IndexMeta, entity types.Name) string {
	return "idx:hash:" + entity.String() + "." + meta.Index
}

// Open opens (creating if absent) the hash index's backing store.
func Open(args Args) (*Index, error) {
	s, err := args.CatTx.Store().OpenStore(storeName(args.Meta, args.Entity), store.Unique)
	if err != nil {
		return nil, err
	}
	return &Index{meta: args.Meta, catTx: args.CatTx, entity: args.Entity, column: args.Column, store: s}, nil
}

// NewFactory adapts Open to the index.Factory signature for registration.
func NewFactory() index.Factory {
	return func(raw interface{}) (index.Index, error) {
		args, ok := raw.(Args)
		if !ok {
			return nil, dberr.New(dberr.KindSyntax, "", "hash.Open: invalid args")
		}
		return Open(args)
	}
}

func (ix *Index) Type() string                     { return "hash" }
func (ix *Index) Columns() []string                { return ix.meta.Columns }
func (ix *Index) State() catalog.IndexState        { return ix.meta.State }
func (ix *Index) Count() int                       { return ix.store.Count() }
func (ix *Index) SupportsIncrementalUpdate() bool  { return true }
func (ix *Index) SupportsPartitioning() bool       { return false }

func (ix *Index) CanProcess(pred index.Predicate) bool {
	bp, ok := index.AsBoolean(pred)
	if !ok {
		return false
	}
	return bp.Kind == predicate.Compare && bp.Op == predicate.Eq && sameColumn(bp.Column, ix.meta.Columns)
}

func sameColumn(col string, cols []string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// Cost estimates a direct hash lookup as cheap, fixed IO independent of
// table size, versus a full scan's cost computed by the caller.
func (ix *Index) Cost(pred index.Predicate) cost.Cost {
	if !ix.CanProcess(pred) {
		return cost.Cost{IO: 1e9}
	}
	return cost.Cost{IO: 1, CPU: 1, Memory: 0, Accuracy: 0}
}

func valuePrefix(v types.Value) ([]byte, error) {
	raw, err := types.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(raw, delimiter), nil
}

func entryKey(v types.Value, tupleID int64) ([]byte, error) {
	prefix, err := valuePrefix(v)
	if err != nil {
		return nil, err
	}
	return append(prefix, types.EncodeSequence(tupleID)...), nil
}

// Filter returns every tupleId whose column value equals the
// predicate's operand.
func (ix *Index) Filter(pred index.Predicate) (index.Cursor, error) {
	return ix.FilterPartition(pred, 0, 1)
}

// FilterPartition ignores partitioning (hash indexes do not support
// it); partitionIndex 0 returns the full result, any other index an
// empty cursor.
func (ix *Index) FilterPartition(pred index.Predicate, partitionIndex, partitions int) (index.Cursor, error) {
	if partitionIndex != 0 {
		return index.NewSliceCursor(nil), nil
	}
	bp, ok := index.AsBoolean(pred)
	if !ok || !ix.CanProcess(pred) {
		return nil, dberr.New(dberr.KindUnsupportedPredicate, ix.meta.Name().String(), "hash index cannot process predicate")
	}
	prefix, err := valuePrefix(bp.Value)
	if err != nil {
		return nil, err
	}
	c := ix.store.PrefixCursor(prefix)
	defer c.Close()
	var results []index.Result
	for {
		k, _, ok := c.Next()
		if !ok {
			break
		}
		suffix := k[len(prefix):]
		tid := types.DecodeSequence(suffix)
		results = append(results, index.Result{TupleID: tid})
	}
	return index.NewSliceCursor(results), nil
}

// Rebuild clears and re-scans the indexed column from scratch.
func (ix *Index) Rebuild() error {
	if err := ix.Clear(); err != nil {
		return err
	}
	col, err := txn.OpenColumn(ix.catTx, ix.entity, ix.column)
	if err != nil {
		return err
	}
	cur := col.Cursor(nil, nil)
	defer cur.Close()
	for {
		tid, v, ok := cur.Next()
		if !ok {
			break
		}
		if v.Null {
			continue
		}
		key, err := entryKey(v, tid)
		if err != nil {
			return err
		}
		if _, err := ix.store.Put(key, []byte{1}); err != nil {
			return err
		}
	}
	ix.meta.State = catalog.StateClean
	return ix.catTx.SetIndexState(ix.meta.Name(), catalog.StateClean)
}

// Update incrementally maintains the index from one data-change event.
func (ix *Index) Update(ev events.Event) error {
	if ev.Entity.String() != ix.entity.String() || !sameColumn(ev.Column, ix.meta.Columns) {
		return nil
	}
	switch ev.Kind {
	case events.Insert:
		if ev.New == nil || ev.New.Null {
			return nil
		}
		key, err := entryKey(*ev.New, ev.TupleID)
		if err != nil {
			return err
		}
		_, err = ix.store.Put(key, []byte{1})
		return err
	case events.Update:
		if ev.Old != nil && !ev.Old.Null {
			key, err := entryKey(*ev.Old, ev.TupleID)
			if err != nil {
				return err
			}
			if err := ix.store.Delete(key); err != nil {
				return err
			}
		}
		if ev.New != nil && !ev.New.Null {
			key, err := entryKey(*ev.New, ev.TupleID)
			if err != nil {
				return err
			}
			_, err = ix.store.Put(key, []byte{1})
			return err
		}
		return nil
	case events.Delete:
		if ev.Old == nil || ev.Old.Null {
			return nil
		}
		key, err := entryKey(*ev.Old, ev.TupleID)
		if err != nil {
			return err
		}
		return ix.store.Delete(key)
	default:
		return nil
	}
}

// Clear drops every entry from the index's backing store.
func (ix *Index) Clear() error {
	c := ix.store.Cursor()
	defer c.Close()
	var keys [][]byte
	for {
		k, _, ok := c.Next()
		if !ok {
			break
		}
		kc := make([]byte, len(k))
		copy(kc, k)
		keys = append(keys, kc)
	}
	for _, k := range keys {
		if err := ix.store.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
