package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperplane-db/hyperplane/internal/distance"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

func lookupFrom(values map[string]types.Value) Lookup {
	return func(column string) (types.Value, bool, error) {
		v, ok := values[column]
		return v, ok, nil
	}
}

func TestCompareEval(t *testing.T) {
	p := NewCompare("age", Gt, types.NewLong(30))
	ok, err := p.Eval(lookupFrom(map[string]types.Value{"age": types.NewLong(40)}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Eval(lookupFrom(map[string]types.Value{"age": types.NewLong(10)}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAndOrNot(t *testing.T) {
	a := NewCompare("a", Eq, types.NewString("hello"))
	b := NewCompare("b", Gt, types.NewLong(3))
	and := NewAnd(a, b)

	get := lookupFrom(map[string]types.Value{"a": types.NewString("hello"), "b": types.NewLong(4)})
	ok, err := and.Eval(get)
	require.NoError(t, err)
	assert.True(t, ok)

	get2 := lookupFrom(map[string]types.Value{"a": types.NewString("hello"), "b": types.NewLong(2)})
	ok, err = and.Eval(get2)
	require.NoError(t, err)
	assert.False(t, ok)

	not := NewNot(a)
	ok, err = not.Eval(lookupFrom(map[string]types.Value{"a": types.NewString("goodbye")}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLikeWildcards(t *testing.T) {
	p := NewLike("name", "jo%n")
	ok, err := p.Eval(lookupFrom(map[string]types.Value{"name": types.NewString("jordan")}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Eval(lookupFrom(map[string]types.Value{"name": types.NewString("jo")}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNullNeverMatches(t *testing.T) {
	p := NewCompare("x", Eq, types.NewLong(0))
	ok, err := p.Eval(lookupFrom(map[string]types.Value{"x": types.NullValue(types.Scalar(types.Long))}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestColumnsDedup(t *testing.T) {
	p := NewAnd(NewCompare("a", Eq, types.NewLong(1)), NewCompare("a", Gt, types.NewLong(0)), NewCompare("b", Eq, types.NewLong(2)))
	assert.Equal(t, []string{"a", "b"}, p.Columns())
}

func TestProximityPredicate(t *testing.T) {
	q := types.NewDoubleVector([]float64{1, 2, 3})
	p := NewProximity("embedding", 10, distance.L2, q)
	assert.Equal(t, []string{"embedding"}, p.Columns())
	assert.Equal(t, 10, p.K)
}
