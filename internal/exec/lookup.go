package exec

import (
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// recordLookup adapts a Record into the predicate.Lookup accessor
// BooleanPredicate.Eval uses to resolve a column's value for the
// record currently under test.
func recordLookup(rec *txn.Record) predicate.Lookup {
	return func(column string) (types.Value, bool, error) {
		v, ok := rec.Get(column)
		return v, ok, nil
	}
}
