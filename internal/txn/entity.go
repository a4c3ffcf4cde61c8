package txn

import (
	"github.com/hyperplane-db/hyperplane/internal/catalog"
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/events"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// EntityTx is the per-entity transactional reader/writer: one column
// transaction per column, plus publication of a data-change event per
// affected column to the catalogue's broker for its subscribers.
// Secondary indexes are not among them: the engine session applies
// data changes to its indexes itself.
type EntityTx struct {
	catTx   *catalog.CatalogTx
	broker  *events.Broker
	entity  types.Name
	meta    *catalog.EntityMeta
	columns map[string]*ColumnTx
	data    *store.Store
}

// OpenEntity opens entity's column transactions and data store within
// catTx's underlying transaction.
func OpenEntity(catTx *catalog.CatalogTx, broker *events.Broker, entity types.Name) (*EntityTx, error) {
	meta, err := catTx.GetEntity(entity)
	if err != nil {
		return nil, err
	}
	columns := make(map[string]*ColumnTx, len(meta.Columns))
	for _, c := range meta.Columns {
		col, err := OpenColumn(catTx, entity, c)
		if err != nil {
			return nil, err
		}
		columns[c.Name] = col
	}
	data, err := catTx.Store().OpenStore(catalog.EntityDataStoreName(entity), store.Unique)
	if err != nil {
		return nil, err
	}
	return &EntityTx{catTx: catTx, broker: broker, entity: entity, meta: meta, columns: columns, data: data}, nil
}

// columnOrder returns the entity's declared column names, in order.
func (e *EntityTx) columnOrder() []string {
	names := make([]string, len(e.meta.Columns))
	for i, c := range e.meta.Columns {
		names[i] = c.Name
	}
	return names
}

func (e *EntityTx) column(name string) (*ColumnTx, error) {
	c, ok := e.columns[name]
	if !ok {
		return nil, dberr.New(dberr.KindColumnMissing, e.entity.String()+"."+name, "no such column")
	}
	return c, nil
}

func (e *EntityTx) publish(kind events.Kind, tupleID int64, column string, old, next *types.Value) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(events.Event{Kind: kind, Entity: e.entity, Column: column, TupleID: tupleID, Old: old, New: next})
}

// Count returns the number of live tuples in the entity.
func (e *EntityTx) Count() int { return e.data.Count() }

// Meta returns the entity's catalogue definition.
func (e *EntityTx) Meta() *catalog.EntityMeta { return e.meta }

// Read returns tupleId's record, restricted to cols (all declared
// columns if cols is empty), in declaration order.
func (e *EntityTx) Read(tupleID int64, cols []string) (Record, error) {
	if v, err := e.data.Get(types.EncodeSequence(tupleID)); err != nil {
		return Record{}, err
	} else if v == nil {
		return Record{}, dberr.New(dberr.KindTupleMissing, e.entity.String(), "no such tuple")
	}
	if len(cols) == 0 {
		cols = e.columnOrder()
	}
	rec := Record{TupleID: tupleID, Columns: make([]string, 0, len(cols)), Values: make([]types.Value, 0, len(cols))}
	for _, name := range cols {
		col, err := e.column(name)
		if err != nil {
			return Record{}, err
		}
		v, _, err := col.Get(tupleID)
		if err != nil {
			return Record{}, err
		}
		rec.Columns = append(rec.Columns, name)
		rec.Values = append(rec.Values, v)
	}
	return rec, nil
}

// Insert allocates the next TupleId and writes every declared column
// from values (missing columns are treated as null, rejected if the
// column is non-nullable), publishing an Insert event per column.
func (e *EntityTx) Insert(values map[string]types.Value) (Record, error) {
	tupleID, err := e.catTx.NextTupleID(e.entity)
	if err != nil {
		return Record{}, err
	}

	rec := Record{TupleID: tupleID, Columns: e.columnOrder(), Values: make([]types.Value, len(e.meta.Columns))}
	for i, def := range e.meta.Columns {
		v, ok := values[def.Name]
		if !ok {
			v = types.NullValue(def.Typ())
		}
		col, err := e.column(def.Name)
		if err != nil {
			return Record{}, err
		}
		if err := col.Put(tupleID, v); err != nil {
			return Record{}, err
		}
		rec.Values[i] = v
	}

	if _, err := e.data.Put(types.EncodeSequence(tupleID), []byte{1}); err != nil {
		return Record{}, err
	}
	for i, name := range rec.Columns {
		v := rec.Values[i]
		e.publish(events.Insert, tupleID, name, nil, &v)
	}
	return rec, nil
}

// Update writes the columns present in values onto an existing tupleId,
// publishing an Update event per changed column.
func (e *EntityTx) Update(tupleID int64, values map[string]types.Value) error {
	if v, err := e.data.Get(types.EncodeSequence(tupleID)); err != nil {
		return err
	} else if v == nil {
		return dberr.New(dberr.KindTupleMissing, e.entity.String(), "no such tuple")
	}
	for name, next := range values {
		col, err := e.column(name)
		if err != nil {
			return err
		}
		old, _, err := col.Get(tupleID)
		if err != nil {
			return err
		}
		if err := col.Put(tupleID, next); err != nil {
			return err
		}
		e.publish(events.Update, tupleID, name, &old, &next)
	}
	return nil
}

// Delete removes tupleId's value from every column (read-and-delete),
// publishing a Delete event per column, then drops the tuple from the
// entity's live set.
func (e *EntityTx) Delete(tupleID int64) error {
	if v, err := e.data.Get(types.EncodeSequence(tupleID)); err != nil {
		return err
	} else if v == nil {
		return dberr.New(dberr.KindTupleMissing, e.entity.String(), "no such tuple")
	}
	for _, def := range e.meta.Columns {
		col, err := e.column(def.Name)
		if err != nil {
			return err
		}
		old, found, err := col.Get(tupleID)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := col.Delete(tupleID); err != nil {
			return err
		}
		e.publish(events.Delete, tupleID, def.Name, &old, nil)
	}
	return e.data.Delete(types.EncodeSequence(tupleID))
}

// Optimize resets every column's statistics, then re-feeds each live
// value through statistics.insert via a composite scan, persisting the
// rehydrated statistics — idempotent with the freshly computed
// statistics over the same values.
func (e *EntityTx) Optimize() error {
	for _, def := range e.meta.Columns {
		if err := e.catTx.ResetStatistics(e.entity, def.Name); err != nil {
			return err
		}
	}
	cur := e.Cursor(nil, 0, 1)
	defer cur.Close()
	for {
		rec, ok, err := cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		for i, name := range rec.Columns {
			stats, err := e.catTx.GetStatistics(e.entity, name)
			if err != nil {
				return err
			}
			stats.Insert(rec.Values[i])
			if err := e.catTx.PutStatistics(e.entity, name, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// partitionRange computes the inclusive [low, high] TupleId range owned
// by partition p of partitions: p*floor(max/P)+1 through
// (p+1)*floor(max/P), with the final partition absorbing the remainder
// up to max so every TupleId belongs to exactly one partition.
func (e *EntityTx) partitionRange(partitionIndex, partitions int) (low, high int64, err error) {
	max, err := e.catTx.CurrentTupleID(e.entity)
	if err != nil {
		return 0, 0, err
	}
	if partitions <= 1 {
		return 1, max, nil
	}
	step := max / int64(partitions)
	low = int64(partitionIndex)*step + 1
	high = (int64(partitionIndex) + 1) * step
	if partitionIndex == partitions-1 {
		high = max
	}
	return low, high, nil
}

// Cursor yields records across cols for the TupleId range owned by
// partition partitionIndex of partitions, in ascending TupleId order.
func (e *EntityTx) Cursor(cols []string, partitionIndex, partitions int) *EntityCursor {
	if len(cols) == 0 {
		cols = e.columnOrder()
	}
	low, high, err := e.partitionRange(partitionIndex, partitions)
	if err != nil {
		return &EntityCursor{err: err}
	}
	return &EntityCursor{entity: e, cols: cols, data: e.data.RangeCursor(types.EncodeSequence(low)), high: high}
}

// EntityCursor is a single-pass composite cursor driven by the entity's
// live-tuple data store, dereferencing each requested column per
// tupleId. Ties break by ascending tupleId (the data store's own key
// order); it must be released via Close on every exit path.
type EntityCursor struct {
	entity *EntityTx
	cols   []string
	data   *store.Cursor
	high   int64
	err    error
}

// Next advances the cursor, returning ok=false once past the
// partition's upper bound or exhausted.
func (c *EntityCursor) Next() (Record, bool, error) {
	if c.err != nil {
		return Record{}, false, c.err
	}
	k, _, ok := c.data.Next()
	if !ok {
		return Record{}, false, nil
	}
	tid := types.DecodeSequence(k)
	if tid > c.high {
		return Record{}, false, nil
	}
	rec, err := c.entity.Read(tid, c.cols)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Close releases the cursor's underlying data-store cursor.
func (c *EntityCursor) Close() {
	if c.data != nil {
		c.data.Close()
	}
}
