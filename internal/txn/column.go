package txn

import (
	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// ColumnTx is the per-column transactional reader/writer:
// count/get/put/compareAndPut/delete/cursor, with every put and
// delete refreshing the column's catalogue statistics atomically.
type ColumnTx struct {
	catTx  *catalog.CatalogTx
	store  *store.Store
	entity types.Name
	def    catalog.ColumnDef
}

// OpenColumn opens column def of entity within catTx's underlying
// transaction.
func OpenColumn(catTx *catalog.CatalogTx, entity types.Name, def catalog.ColumnDef) (*ColumnTx, error) {
	s, err := catTx.Store().OpenStore(catalog.ColumnStoreName(entity, def.Name), store.Unique)
	if err != nil {
		return nil, err
	}
	return &ColumnTx{catTx: catTx, store: s, entity: entity, def: def}, nil
}

// Count returns the number of non-deleted tuples in the column.
func (c *ColumnTx) Count() int { return c.store.Count() }

// encodeStored tags the serialized value with a presence byte so a
// stored null can be told apart from "no value written for this
// tupleId" — types.Marshal encodes a null as a nil/empty payload, which
// would otherwise be indistinguishable from an absent key.
func encodeStored(v types.Value) ([]byte, error) {
	if v.Null {
		return []byte{0}, nil
	}
	raw, err := types.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{1}, raw...), nil
}

func decodeStored(t types.Type, b []byte) (types.Value, error) {
	if len(b) == 0 || b[0] == 0 {
		return types.NullValue(t), nil
	}
	return types.Unmarshal(t, b[1:])
}

// Get reads tupleId's value. found is false if no value has ever been
// written for tupleId (distinct from a stored null).
func (c *ColumnTx) Get(tupleID int64) (value types.Value, found bool, err error) {
	raw, err := c.store.Get(types.EncodeSequence(tupleID))
	if err != nil {
		return types.Value{}, false, err
	}
	if raw == nil {
		return types.Value{}, false, nil
	}
	v, err := decodeStored(c.def.Typ(), raw)
	if err != nil {
		return types.Value{}, false, dberr.Wrap(dberr.KindDataCorruption, c.entity.String()+"."+c.def.Name, err)
	}
	return v, true, nil
}

// Put writes tupleId's value, refreshing statistics: an insert
// delegates statistics.insert(new), a replacement delegates
// statistics.update(old,new). The statistics write and the value write
// happen within the same underlying transaction, so a statistics
// failure aborts the column update.
func (c *ColumnTx) Put(tupleID int64, value types.Value) error {
	if value.Null && !c.def.Nullable {
		return dberr.New(dberr.KindReservedValue, c.entity.String()+"."+c.def.Name, "null value for non-nullable column")
	}

	old, found, err := c.Get(tupleID)
	if err != nil {
		return err
	}
	stats, err := c.catTx.GetStatistics(c.entity, c.def.Name)
	if err != nil {
		return err
	}
	if found {
		stats.Update(old, value)
	} else {
		stats.Insert(value)
	}
	if err := c.catTx.PutStatistics(c.entity, c.def.Name, stats); err != nil {
		return err
	}

	raw, err := encodeStored(value)
	if err != nil {
		return err
	}
	_, err = c.store.Put(types.EncodeSequence(tupleID), raw)
	return err
}

// CompareAndPut writes newValue only if tupleId's current value equals
// expected, reporting whether the swap happened.
func (c *ColumnTx) CompareAndPut(tupleID int64, newValue, expected types.Value) (bool, error) {
	current, found, err := c.Get(tupleID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	eq, err := current.Equal(expected)
	if err != nil {
		return false, err
	}
	if !eq {
		return false, nil
	}
	if err := c.Put(tupleID, newValue); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes tupleId's value (read-and-delete), folding the removed
// value into statistics.delete(old). No-op if tupleId has no value.
func (c *ColumnTx) Delete(tupleID int64) error {
	old, found, err := c.Get(tupleID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	stats, err := c.catTx.GetStatistics(c.entity, c.def.Name)
	if err != nil {
		return err
	}
	stats.Delete(old)
	if err := c.catTx.PutStatistics(c.entity, c.def.Name, stats); err != nil {
		return err
	}
	return c.store.Delete(types.EncodeSequence(tupleID))
}

// Cursor yields (tupleId, value) pairs in ascending tupleId order
// across [low, high] (either bound may be nil for unbounded). It is
// single-pass and must be released via Close on every exit path.
func (c *ColumnTx) Cursor(low, high *int64) *ColumnCursor {
	var sc *store.Cursor
	if low != nil {
		sc = c.store.RangeCursor(types.EncodeSequence(*low))
	} else {
		sc = c.store.Cursor()
	}
	return &ColumnCursor{col: c, sc: sc, high: high}
}

// ColumnCursor is a single-pass, ascending-tupleId cursor over one column.
type ColumnCursor struct {
	col  *ColumnTx
	sc   *store.Cursor
	high *int64
}

// Next advances the cursor, returning ok=false once past high (if set)
// or exhausted.
func (c *ColumnCursor) Next() (tupleID int64, value types.Value, ok bool) {
	k, v, hasNext := c.sc.Next()
	if !hasNext {
		return 0, types.Value{}, false
	}
	tid := types.DecodeSequence(k)
	if c.high != nil && tid > *c.high {
		return 0, types.Value{}, false
	}
	val, err := decodeStored(c.col.def.Typ(), v)
	if err != nil {
		return 0, types.Value{}, false
	}
	return tid, val, true
}

// Close releases the cursor.
func (c *ColumnCursor) Close() { c.sc.Close() }
