// Package txn implements the column and entity transaction layers: the
// per-object transactional reader/writer above the catalogue and
// Page/Store layer, with statistics maintenance and data-change event
// publication.
package txn

import "github.com/hyperplane-db/hyperplane/internal/types"

// Record is an ordered set of named column values for one TupleId.
type Record struct {
	TupleID int64
	Columns []string
	Values  []types.Value
}

// Get returns the value for column name and whether it was present.
func (r Record) Get(name string) (types.Value, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return types.Value{}, false
}

// With returns a copy of r with column name set to v, appending it if
// not already present.
func (r Record) With(name string, v types.Value) Record {
	out := Record{TupleID: r.TupleID, Columns: append([]string(nil), r.Columns...), Values: append([]types.Value(nil), r.Values...)}
	for i, c := range out.Columns {
		if c == name {
			out.Values[i] = v
			return out
		}
	}
	out.Columns = append(out.Columns, name)
	out.Values = append(out.Values, v)
	return out
}
