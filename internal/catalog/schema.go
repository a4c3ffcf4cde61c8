package catalog

import (
	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

const schemaStoreName = "~catalog.schemas"

func (t *CatalogTx) schemaStore() (*store.Store, error) {
	return t.tx.OpenStore(schemaStoreName, store.Unique)
}

// CreateSchema registers a new, empty schema namespace.
func (t *CatalogTx) CreateSchema(name string) error {
	s, err := t.schemaStore()
	if err != nil {
		return err
	}
	n := types.NewSchemaName(name)
	key := []byte(n.String())
	existing, err := s.Get(key)
	if err != nil {
		return err
	}
	if existing != nil {
		return dberr.New(dberr.KindSchemaExists, n.String(), "schema already exists")
	}
	_, err = s.Put(key, []byte{1})
	return err
}

// SchemaExists reports whether name has been created.
func (t *CatalogTx) SchemaExists(name string) (bool, error) {
	s, err := t.schemaStore()
	if err != nil {
		return false, err
	}
	v, err := s.Get([]byte(types.NewSchemaName(name).String()))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// DropSchema removes an empty schema. Callers must have already dropped
// every entity owned by it; DropSchema does not cascade.
func (t *CatalogTx) DropSchema(name string) error {
	s, err := t.schemaStore()
	if err != nil {
		return err
	}
	n := types.NewSchemaName(name)
	key := []byte(n.String())
	existing, err := s.Get(key)
	if err != nil {
		return err
	}
	if existing == nil {
		return dberr.New(dberr.KindSchemaMissing, n.String(), "schema does not exist")
	}
	entities, err := t.ListEntities(n.Leaf())
	if err != nil {
		return err
	}
	if len(entities) > 0 {
		return dberr.New(dberr.KindSchemaMissing, n.String(), "schema still owns entities")
	}
	return s.Delete(key)
}

// ListSchemas returns every schema name currently registered.
func (t *CatalogTx) ListSchemas() ([]string, error) {
	s, err := t.schemaStore()
	if err != nil {
		return nil, err
	}
	c := s.Cursor()
	defer c.Close()
	var names []string
	for {
		k, _, ok := c.Next()
		if !ok {
			break
		}
		names = append(names, string(k))
	}
	return names, nil
}
