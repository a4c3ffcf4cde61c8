package catalog

import (
	"strings"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

func (t *CatalogTx) indexStore() (*store.Store, error) {
	return t.tx.OpenStore(indexStoreName, store.Unique)
}

// CreateIndex registers a new secondary index of kind (e.g. "hash",
// "fulltext", "vaf", "pq") over columns, initially DIRTY until its
// first rebuild. kind and columns are validated by the index registry
// one layer up; the catalogue only enforces name uniqueness.
func (t *CatalogTx) CreateIndex(entity types.Name, indexName, kind string, columns []string, params map[string]string) (*IndexMeta, error) {
	if _, err := t.GetEntity(entity); err != nil {
		return nil, err
	}
	name := types.NewIndexName(entity.Schema(), entity.Entity(), indexName)
	is, err := t.indexStore()
	if err != nil {
		return nil, err
	}
	key := indexKey(name)
	if existing, err := is.Get(key); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, dberr.New(dberr.KindIndexExists, name.String(), "index already exists")
	}

	meta := &IndexMeta{
		Schema:  entity.Schema(),
		Entity:  entity.Entity(),
		Index:   strings.ToLower(indexName),
		Kind:    strings.ToLower(kind),
		Columns: append([]string(nil), columns...),
		Params:  params,
		State:   StateDirty,
	}
	data, err := encodeJSON(meta)
	if err != nil {
		return nil, err
	}
	if _, err := is.Put(key, data); err != nil {
		return nil, err
	}
	return meta, nil
}

// GetIndex looks up an index's metadata by fully-qualified Name.
func (t *CatalogTx) GetIndex(name types.Name) (*IndexMeta, error) {
	is, err := t.indexStore()
	if err != nil {
		return nil, err
	}
	v, err := is.Get(indexKey(name))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, dberr.New(dberr.KindIndexMissing, name.String(), "index does not exist")
	}
	var meta IndexMeta
	if err := decodeJSON(v, &meta); err != nil {
		return nil, dberr.Wrap(dberr.KindDataCorruption, name.String(), err)
	}
	return &meta, nil
}

// ListIndexes returns every index registered on entity.
func (t *CatalogTx) ListIndexes(entity types.Name) ([]*IndexMeta, error) {
	is, err := t.indexStore()
	if err != nil {
		return nil, err
	}
	prefix := []byte(entity.String() + ".")
	c := is.PrefixCursor(prefix)
	defer c.Close()
	var out []*IndexMeta
	for {
		_, v, ok := c.Next()
		if !ok {
			break
		}
		var meta IndexMeta
		if err := decodeJSON(v, &meta); err != nil {
			return nil, dberr.Wrap(dberr.KindDataCorruption, entity.String(), err)
		}
		out = append(out, &meta)
	}
	return out, nil
}

// SetIndexState transitions an index's maintenance state (e.g. DIRTY
// after a missed incremental update, CLEAN after a rebuild completes).
func (t *CatalogTx) SetIndexState(name types.Name, state IndexState) error {
	meta, err := t.GetIndex(name)
	if err != nil {
		return err
	}
	meta.State = state
	is, err := t.indexStore()
	if err != nil {
		return err
	}
	data, err := encodeJSON(meta)
	if err != nil {
		return err
	}
	_, err = is.Put(indexKey(name), data)
	return err
}

// DropIndex removes an index's catalogue record. Dropping its
// persisted structures (e.g. VAF marks/signatures store) is the
// responsibility of the index implementation, invoked by the caller
// before this is reached.
func (t *CatalogTx) DropIndex(name types.Name) error {
	is, err := t.indexStore()
	if err != nil {
		return err
	}
	if existing, err := is.Get(indexKey(name)); err != nil {
		return err
	} else if existing == nil {
		return dberr.New(dberr.KindIndexMissing, name.String(), "index does not exist")
	}
	return is.Delete(indexKey(name))
}
