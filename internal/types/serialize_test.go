package types

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	kinds := []Kind{Boolean, Byte, Short, Int, Long, Float, Double, Complex32, Complex64, Date, String}
	for _, k := range kinds {
		typ := Scalar(k)
		v := Random(typ, r)

		b, err := Marshal(v)
		require.NoError(t, err, k.String())

		got, err := Unmarshal(typ, b)
		require.NoError(t, err, k.String())

		eq, err := v.Equal(got)
		require.NoError(t, err, k.String())
		assert.True(t, eq, "round trip mismatch for %s", k)
	}
}

func TestRoundTripVectors(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	kinds := []Kind{BooleanVector, IntVector, LongVector, FloatVector, DoubleVector, Complex32Vector, Complex64Vector}
	for _, k := range kinds {
		typ := Vector(k, 16)
		v := Random(typ, r)

		b, err := Marshal(v)
		require.NoError(t, err, k.String())
		assert.Len(t, b, typ.PhysicalSize())

		got, err := Unmarshal(typ, b)
		require.NoError(t, err, k.String())

		eq, err := v.Equal(got)
		require.NoError(t, err, k.String())
		assert.True(t, eq, "round trip mismatch for %s", k)
	}
}

func TestNullRoundTrips(t *testing.T) {
	typ := Scalar(Long)
	n := NullValue(typ)
	b, err := Marshal(n)
	require.NoError(t, err)
	assert.Nil(t, b)

	got, err := Unmarshal(typ, b)
	require.NoError(t, err)
	assert.True(t, got.Null)
}

func TestSequenceEncodingIsBigEndian8Bytes(t *testing.T) {
	b := EncodeSequence(258)
	require.Len(t, b, 8)
	assert.Equal(t, byte(1), b[6])
	assert.Equal(t, byte(2), b[7])
	assert.Equal(t, int64(258), DecodeSequence(b))
}
