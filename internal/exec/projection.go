package exec

import (
	"context"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/predicate"
	"github.com/hyperplane-db/hyperplane/internal/txn"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// FunctionProjectionOperator evaluates a distance function between a
// bound query vector and each record's vector column, augmenting the
// record with the result under "<column>#distance". Records already
// carrying that column (an upstream proximity index scan computed the
// exact distance) pass through untouched.
type FunctionProjectionOperator struct {
	input Operator
	prox  *predicate.ProximityPredicate
	alias string
	fn    distance.Func
	query []float64
}

// NewFunctionProjectionOperator resolves the distance kernel for prox's
// kind and query element type; vectorize selects the unrolled kernel.
func NewFunctionProjectionOperator(input Operator, prox *predicate.ProximityPredicate, reg *distance.Registry, vectorize bool) (*FunctionProjectionOperator, error) {
	if !prox.Query.Typ.Kind.IsVector() || !prox.Query.Typ.Kind.IsReal() {
		return nil, dberr.New(dberr.KindSignatureMismatch, prox.Column, "distance function requires a real vector query")
	}
	fn := reg.Resolve(prox.Distance, prox.Query.Typ.Kind, prox.Query.Typ.Dim, vectorize)
	if fn == nil {
		return nil, dberr.New(dberr.KindNotSupported, prox.Column, "no kernel for distance kind "+string(prox.Distance))
	}
	return &FunctionProjectionOperator{
		input: input,
		prox:  prox,
		alias: prox.Column + "#distance",
		fn:    fn,
		query: prox.Query.AsFloat64Slice(),
	}, nil
}

func (o *FunctionProjectionOperator) Next(ctx context.Context) (*txn.Record, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	rec, err := o.input.Next(ctx)
	if err != nil || rec == nil {
		return rec, err
	}
	if _, ok := rec.Get(o.alias); ok {
		return rec, nil
	}
	v, ok := rec.Get(o.prox.Column)
	if !ok {
		return nil, dberr.New(dberr.KindColumnMissing, o.prox.Column, "distance argument column not in record")
	}
	if v.Null {
		out := rec.With(o.alias, types.NullValue(types.Scalar(types.Double)))
		return &out, nil
	}
	vec := v.AsFloat64Slice()
	if len(vec) != len(o.query) {
		return nil, dberr.New(dberr.KindTypeMismatch, o.prox.Column, "query and column dimensionality differ")
	}
	out := rec.With(o.alias, types.NewDouble(o.fn(o.query, vec)))
	return &out, nil
}

func (o *FunctionProjectionOperator) Close() { o.input.Close() }

// SelectProjectionOperator restricts each record to the requested
// columns, in the requested order.
type SelectProjectionOperator struct {
	input Operator
	cols  []string
}

// NewSelectProjectionOperator projects input onto cols.
func NewSelectProjectionOperator(input Operator, cols []string) *SelectProjectionOperator {
	return &SelectProjectionOperator{input: input, cols: cols}
}

func (o *SelectProjectionOperator) Next(ctx context.Context) (*txn.Record, error) {
	rec, err := o.input.Next(ctx)
	if err != nil || rec == nil {
		return rec, err
	}
	out := txn.Record{TupleID: rec.TupleID, Columns: make([]string, 0, len(o.cols)), Values: make([]types.Value, 0, len(o.cols))}
	for _, name := range o.cols {
		v, ok := rec.Get(name)
		if !ok {
			return nil, dberr.New(dberr.KindColumnMissing, name, "projected column not in record")
		}
		out.Columns = append(out.Columns, name)
		out.Values = append(out.Values, v)
	}
	return &out, nil
}

func (o *SelectProjectionOperator) Close() { o.input.Close() }

// SelectDistinctProjectionOperator is SelectProjection with duplicate
// suppression on the projected values.
type SelectDistinctProjectionOperator struct {
	inner *SelectProjectionOperator
	seen  map[string]struct{}
}

// NewSelectDistinctProjectionOperator projects input onto cols, dropping
// records whose projected values were already emitted.
func NewSelectDistinctProjectionOperator(input Operator, cols []string) *SelectDistinctProjectionOperator {
	return &SelectDistinctProjectionOperator{
		inner: NewSelectProjectionOperator(input, cols),
		seen:  make(map[string]struct{}),
	}
}

func (o *SelectDistinctProjectionOperator) Next(ctx context.Context) (*txn.Record, error) {
	for {
		rec, err := o.inner.Next(ctx)
		if err != nil || rec == nil {
			return rec, err
		}
		key, err := distinctKey(rec)
		if err != nil {
			return nil, err
		}
		if _, dup := o.seen[key]; dup {
			continue
		}
		o.seen[key] = struct{}{}
		return rec, nil
	}
}

func (o *SelectDistinctProjectionOperator) Close() { o.inner.Close() }

// distinctKey serializes a record's values into a comparable byte key.
// Null values contribute a marker byte a marshaled value never starts with.
func distinctKey(rec *txn.Record) (string, error) {
	var key []byte
	for _, v := range rec.Values {
		if v.Null {
			key = append(key, 0xFF)
			continue
		}
		raw, err := types.Marshal(v)
		if err != nil {
			return "", err
		}
		key = append(key, byte(len(raw)), byte(len(raw)>>8))
		key = append(key, raw...)
	}
	return string(key), nil
}

// CountProjectionOperator drains its input and emits a single record
// with the number of records seen.
type CountProjectionOperator struct {
	input Operator
	done  bool
}

// NewCountProjectionOperator counts input's records.
func NewCountProjectionOperator(input Operator) *CountProjectionOperator {
	return &CountProjectionOperator{input: input}
}

func (o *CountProjectionOperator) Next(ctx context.Context) (*txn.Record, error) {
	if o.done {
		return nil, nil
	}
	var n int64
	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		rec, err := o.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		n++
	}
	o.done = true
	return &txn.Record{Columns: []string{"count"}, Values: []types.Value{types.NewLong(n)}}, nil
}

func (o *CountProjectionOperator) Close() { o.input.Close() }
