package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarSizes(t *testing.T) {
	cases := []struct {
		kind     Kind
		logical  int
		physical int
	}{
		{Boolean, 1, 1},
		{Int, 1, 4},
		{Long, 1, 8},
		{Float, 1, 4},
		{Double, 1, 8},
		{Complex32, 1, 8},
		{Complex64, 1, 16},
	}
	for _, c := range cases {
		typ := Scalar(c.kind)
		assert.Equal(t, c.logical, typ.LogicalSize(), c.kind.String())
		assert.Equal(t, c.physical, typ.PhysicalSize(), c.kind.String())
	}
}

func TestVectorSizes(t *testing.T) {
	typ := Vector(FloatVector, 128)
	assert.Equal(t, 128, typ.LogicalSize())
	assert.Equal(t, 512, typ.PhysicalSize())
}

func TestVectorDimensionMustBePositive(t *testing.T) {
	assert.Panics(t, func() {
		Vector(FloatVector, 0)
	})
	assert.Panics(t, func() {
		Vector(FloatVector, -4)
	})
}

func TestVectorKindRequiredForVectorConstructor(t *testing.T) {
	assert.Panics(t, func() {
		Vector(Int, 4)
	})
}

func TestTypeEqual(t *testing.T) {
	a := Vector(DoubleVector, 16)
	b := Vector(DoubleVector, 16)
	c := Vector(DoubleVector, 32)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
