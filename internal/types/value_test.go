package types

import (
	"testing"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualWithinType(t *testing.T) {
	a := NewLong(42)
	b := NewLong(42)
	c := NewLong(7)
	eq, err := a.Equal(b)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = a.Equal(c)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestEqualCrossTypeFails(t *testing.T) {
	a := NewLong(42)
	b := NewInt(42)
	_, err := a.Equal(b)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindTypeMismatch))
}

func TestCompareOrdersNullsLast(t *testing.T) {
	typ := Scalar(Long)
	v := NewLong(5)
	n := NullValue(typ)

	cmp, err := v.Compare(n)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = n.Compare(v)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestVectorEquality(t *testing.T) {
	a := NewDoubleVector([]float64{1, 2, 3, 4})
	b := NewDoubleVector([]float64{1, 2, 3, 4})
	c := NewDoubleVector([]float64{1, 2, 3, 5})

	eq, err := a.Equal(b)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = a.Equal(c)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestVectorHasNoTotalOrder(t *testing.T) {
	a := NewDoubleVector([]float64{1, 2})
	b := NewDoubleVector([]float64{3, 4})
	_, err := a.Compare(b)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindTypeMismatch))
}
