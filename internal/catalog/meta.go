// Package catalog implements the five logical catalogs — entity, column,
// index, sequence, statistics — that hold all schema/entity/column/index
// metadata, backed by the Page/Store layer.
package catalog

import "github.com/hyperplane-db/hyperplane/internal/types"

// ColumnDef is an immutable column definition, fixed once an entity is created.
type ColumnDef struct {
	Name      string     `json:"name"`
	Type      types.Kind `json:"type"`
	Dim       int        `json:"dim"` // 0 for scalars
	Nullable  bool       `json:"nullable"`
	Primary   bool       `json:"primary"`
}

// Typ reconstructs the full types.Type from the stored Kind/Dim.
func (c ColumnDef) Typ() types.Type {
	if c.Type.IsVector() {
		return types.Vector(c.Type, c.Dim)
	}
	return types.Scalar(c.Type)
}

// EntityMeta describes one entity: its ordered columns.
type EntityMeta struct {
	Schema  string      `json:"schema"`
	Entity  string      `json:"entity"`
	Columns []ColumnDef `json:"columns"`
}

// Name returns the entity's fully-qualified Name.
func (m EntityMeta) Name() types.Name { return types.NewEntityName(m.Schema, m.Entity) }

// Column looks up a column by name (case-insensitive), ok=false if absent.
func (m EntityMeta) Column(name string) (ColumnDef, bool) {
	target := types.NewColumnName(m.Schema, m.Entity, name)
	for _, c := range m.Columns {
		if types.NewColumnName(m.Schema, m.Entity, c.Name).Equal(target) {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// IndexState is an index's maintenance status.
type IndexState string

const (
	StateClean IndexState = "CLEAN"
	StateDirty IndexState = "DIRTY"
	StateStale IndexState = "STALE"
)

// IndexMeta describes one secondary index.
type IndexMeta struct {
	Schema  string            `json:"schema"`
	Entity  string            `json:"entity"`
	Index   string            `json:"index"`
	Kind    string            `json:"kind"` // e.g. "hash", "vaf", "pq"
	Columns []string          `json:"columns"`
	Params  map[string]string `json:"params"`
	State   IndexState        `json:"state"`
}

// Name returns the index's fully-qualified Name.
func (m IndexMeta) Name() types.Name { return types.NewIndexName(m.Schema, m.Entity, m.Index) }
