package catalog

import (
	"fmt"
	"strings"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

func (t *CatalogTx) entityStore() (*store.Store, error) {
	return t.tx.OpenStore(entityStoreName, store.Unique)
}

// ColumnStoreName returns the name of the per-column data store, stable
// across the entity's lifetime.
func ColumnStoreName(entity types.Name, column string) string {
	return fmt.Sprintf("col:%s.%s", entity.String(), strings.ToLower(column))
}

// EntityDataStoreName returns the name of the entity-level store that
// tracks the set of live TupleIds, driving composite-cursor iteration.
func EntityDataStoreName(entity types.Name) string {
	return fmt.Sprintf("ent:%s", entity.String())
}

// entitySequenceName returns the name of the entity's TupleId sequence.
func entitySequenceName(entity types.Name) string {
	return fmt.Sprintf("seq:%s", entity.String())
}

// CreateEntity registers a new entity under schema with the given
// ordered columns, allocating its data store, one store per column, its
// TupleId sequence (initialized to zero) and empty per-column statistics.
func (t *CatalogTx) CreateEntity(schema, entity string, columns []ColumnDef) (*EntityMeta, error) {
	if ok, err := t.SchemaExists(schema); err != nil {
		return nil, err
	} else if !ok {
		return nil, dberr.New(dberr.KindSchemaMissing, schema, "schema does not exist")
	}

	name := types.NewEntityName(schema, entity)
	es, err := t.entityStore()
	if err != nil {
		return nil, err
	}
	key := entityKey(name)
	if existing, err := es.Get(key); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, dberr.New(dberr.KindEntityExists, name.String(), "entity already exists")
	}

	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		lc := strings.ToLower(c.Name)
		if seen[lc] {
			return nil, dberr.New(dberr.KindDuplicateColumn, name.String(), c.Name)
		}
		seen[lc] = true
	}

	meta := &EntityMeta{Schema: strings.ToLower(schema), Entity: strings.ToLower(entity), Columns: columns}
	data, err := encodeJSON(meta)
	if err != nil {
		return nil, err
	}
	if _, err := es.Put(key, data); err != nil {
		return nil, err
	}

	if _, err := t.tx.OpenStore(EntityDataStoreName(name), store.Unique); err != nil {
		return nil, err
	}
	for _, c := range columns {
		if _, err := t.tx.OpenStore(ColumnStoreName(name, c.Name), store.Unique); err != nil {
			return nil, err
		}
		if err := t.initStatistics(name, c.Name); err != nil {
			return nil, err
		}
	}

	seq, err := t.tx.Sequences()
	if err != nil {
		return nil, err
	}
	if err := seq.Init(entitySequenceName(name)); err != nil {
		return nil, err
	}

	return meta, nil
}

// NextTupleID allocates and returns the next TupleId from entity's
// sequence, a non-negative, monotonically increasing 64-bit integer
// stable across the entity's lifetime.
func (t *CatalogTx) NextTupleID(entity types.Name) (int64, error) {
	seq, err := t.tx.Sequences()
	if err != nil {
		return 0, err
	}
	return seq.Next(entitySequenceName(entity))
}

// CurrentTupleID returns entity's current TupleId high-water mark
// without advancing it, used to compute partitioned cursor ranges.
func (t *CatalogTx) CurrentTupleID(entity types.Name) (int64, error) {
	seq, err := t.tx.Sequences()
	if err != nil {
		return 0, err
	}
	return seq.Current(entitySequenceName(entity))
}

// GetEntity looks up an entity's metadata by fully-qualified Name.
func (t *CatalogTx) GetEntity(name types.Name) (*EntityMeta, error) {
	es, err := t.entityStore()
	if err != nil {
		return nil, err
	}
	v, err := es.Get(entityKey(name))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, dberr.New(dberr.KindEntityMissing, name.String(), "entity does not exist")
	}
	var meta EntityMeta
	if err := decodeJSON(v, &meta); err != nil {
		return nil, dberr.Wrap(dberr.KindDataCorruption, name.String(), err)
	}
	return &meta, nil
}

// ListEntities returns every entity owned by schema.
func (t *CatalogTx) ListEntities(schema string) ([]*EntityMeta, error) {
	es, err := t.entityStore()
	if err != nil {
		return nil, err
	}
	prefix := []byte(strings.ToLower(schema) + ".")
	c := es.PrefixCursor(prefix)
	defer c.Close()
	var out []*EntityMeta
	for {
		_, v, ok := c.Next()
		if !ok {
			break
		}
		var meta EntityMeta
		if err := decodeJSON(v, &meta); err != nil {
			return nil, dberr.Wrap(dberr.KindDataCorruption, schema, err)
		}
		out = append(out, &meta)
	}
	return out, nil
}

// DropEntity removes an entity and everything it owns: first all
// indexes, then every column/statistics store, finally the entity
// record, its TupleId sequence and its data store.
func (t *CatalogTx) DropEntity(name types.Name) error {
	meta, err := t.GetEntity(name)
	if err != nil {
		return err
	}

	indexes, err := t.ListIndexes(name)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		if err := t.DropIndex(idx.Name()); err != nil {
			return err
		}
	}

	for _, c := range meta.Columns {
		if err := t.dropStatistics(name, c.Name); err != nil {
			return err
		}
		if err := t.tx.DropStore(ColumnStoreName(name, c.Name)); err != nil {
			return err
		}
	}

	es, err := t.entityStore()
	if err != nil {
		return err
	}
	if err := es.Delete(entityKey(name)); err != nil {
		return err
	}

	seq, err := t.tx.Sequences()
	if err != nil {
		return err
	}
	if err := seq.Drop(entitySequenceName(name)); err != nil {
		return err
	}

	return t.tx.DropStore(EntityDataStoreName(name))
}
