package types

import "math/rand"

// Random generates a random, non-null Value of the given type using r,
// used by statistics and index tests that need reproducible fixtures
// (callers supply a seeded *rand.Rand for determinism).
func Random(t Type, r *rand.Rand) Value {
	switch t.Kind {
	case Boolean:
		return NewBool(r.Intn(2) == 1)
	case Byte:
		return NewByte(int8(r.Intn(256) - 128))
	case Short:
		return NewShort(int16(r.Intn(65536) - 32768))
	case Int:
		return NewInt(r.Int31())
	case Long:
		return NewLong(r.Int63())
	case Float:
		return NewFloat(r.Float32() * 1000)
	case Double:
		return NewDouble(r.Float64() * 1000)
	case Complex32:
		return NewComplex32(complex(r.Float32(), r.Float32()))
	case Complex64:
		return NewComplex64(complex(r.Float64(), r.Float64()))
	case Date:
		return Value{Typ: t, Int64: r.Int63()}
	case String:
		return NewString(randomString(r, 8))
	case BooleanVector:
		vec := make([]bool, t.Dim)
		for i := range vec {
			vec[i] = r.Intn(2) == 1
		}
		return NewBooleanVector(vec)
	case IntVector:
		vec := make([]int32, t.Dim)
		for i := range vec {
			vec[i] = r.Int31()
		}
		return NewIntVector(vec)
	case LongVector:
		vec := make([]int64, t.Dim)
		for i := range vec {
			vec[i] = r.Int63()
		}
		return NewLongVector(vec)
	case FloatVector:
		vec := make([]float32, t.Dim)
		for i := range vec {
			vec[i] = r.Float32() * 1000
		}
		return NewFloatVectorValue(vec)
	case DoubleVector:
		vec := make([]float64, t.Dim)
		for i := range vec {
			vec[i] = r.Float64() * 1000
		}
		return NewDoubleVector(vec)
	case Complex32Vector:
		vec := make([]complex64, t.Dim)
		for i := range vec {
			vec[i] = complex(r.Float32(), r.Float32())
		}
		return NewComplex32Vector(vec)
	case Complex64Vector:
		vec := make([]complex128, t.Dim)
		for i := range vec {
			vec[i] = complex(r.Float64(), r.Float64())
		}
		return NewComplex64Vector(vec)
	default:
		panic("types: Random: unsupported kind")
	}
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randomString(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}
