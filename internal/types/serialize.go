package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
)

// Marshal serializes a non-null Value into its compact byte
// representation. Variable-length kinds (String, and by extension any
// future variable-width kind) are length-prefixed with a Varint
// ("compressed-int" in the on-disk contract); fixed-width scalars and
// vectors are written directly in big-endian encoding of their element
// width.
func Marshal(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	switch v.Typ.Kind {
	case Boolean:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case Byte:
		return []byte{byte(v.Int64)}, nil
	case Short:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v.Int64))
		return b, nil
	case Int:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v.Int64))
		return b, nil
	case Long, Date:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v.Int64))
		return b, nil
	case Float:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v.Float64)))
		return b, nil
	case Double:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v.Float64))
		return b, nil
	case Complex32:
		b := make([]byte, 8)
		binary.BigEndian.PutUint32(b[0:4], math.Float32bits(float32(real(v.Cplx))))
		binary.BigEndian.PutUint32(b[4:8], math.Float32bits(float32(imag(v.Cplx))))
		return b, nil
	case Complex64:
		b := make([]byte, 16)
		binary.BigEndian.PutUint64(b[0:8], math.Float64bits(real(v.Cplx)))
		binary.BigEndian.PutUint64(b[8:16], math.Float64bits(imag(v.Cplx)))
		return b, nil
	case String:
		return marshalVarBytes([]byte(v.Str)), nil
	case BooleanVector:
		b := make([]byte, len(v.BoolVec))
		for i, x := range v.BoolVec {
			if x {
				b[i] = 1
			}
		}
		return b, nil
	case IntVector:
		b := make([]byte, 4*len(v.IntVec))
		for i, x := range v.IntVec {
			binary.BigEndian.PutUint32(b[i*4:], uint32(x))
		}
		return b, nil
	case LongVector:
		b := make([]byte, 8*len(v.IntVec))
		for i, x := range v.IntVec {
			binary.BigEndian.PutUint64(b[i*8:], uint64(x))
		}
		return b, nil
	case FloatVector:
		b := make([]byte, 4*len(v.FloatVec))
		for i, x := range v.FloatVec {
			binary.BigEndian.PutUint32(b[i*4:], math.Float32bits(float32(x)))
		}
		return b, nil
	case DoubleVector:
		b := make([]byte, 8*len(v.FloatVec))
		for i, x := range v.FloatVec {
			binary.BigEndian.PutUint64(b[i*8:], math.Float64bits(x))
		}
		return b, nil
	case Complex32Vector:
		b := make([]byte, 8*len(v.CplxVec))
		for i, x := range v.CplxVec {
			binary.BigEndian.PutUint32(b[i*8:], math.Float32bits(float32(real(x))))
			binary.BigEndian.PutUint32(b[i*8+4:], math.Float32bits(float32(imag(x))))
		}
		return b, nil
	case Complex64Vector:
		b := make([]byte, 16*len(v.CplxVec))
		for i, x := range v.CplxVec {
			binary.BigEndian.PutUint64(b[i*16:], math.Float64bits(real(x)))
			binary.BigEndian.PutUint64(b[i*16+8:], math.Float64bits(imag(x)))
		}
		return b, nil
	default:
		return nil, dberr.New(dberr.KindTypeMismatch, "", fmt.Sprintf("unsupported kind %s", v.Typ.Kind))
	}
}

// Unmarshal decodes b (produced by Marshal) back into a Value of type t.
// A nil b decodes to a null Value.
func Unmarshal(t Type, b []byte) (Value, error) {
	if b == nil {
		return NullValue(t), nil
	}
	switch t.Kind {
	case Boolean:
		return NewBool(b[0] != 0), nil
	case Byte:
		return NewByte(int8(b[0])), nil
	case Short:
		return NewShort(int16(binary.BigEndian.Uint16(b))), nil
	case Int:
		return NewInt(int32(binary.BigEndian.Uint32(b))), nil
	case Long:
		return NewLong(int64(binary.BigEndian.Uint64(b))), nil
	case Date:
		return Value{Typ: t, Int64: int64(binary.BigEndian.Uint64(b))}, nil
	case Float:
		return NewFloat(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case Double:
		return NewDouble(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case Complex32:
		re := math.Float32frombits(binary.BigEndian.Uint32(b[0:4]))
		im := math.Float32frombits(binary.BigEndian.Uint32(b[4:8]))
		return NewComplex32(complex(re, im)), nil
	case Complex64:
		re := math.Float64frombits(binary.BigEndian.Uint64(b[0:8]))
		im := math.Float64frombits(binary.BigEndian.Uint64(b[8:16]))
		return NewComplex64(complex(re, im)), nil
	case String:
		raw, _ := unmarshalVarBytes(b)
		return NewString(string(raw)), nil
	case BooleanVector:
		vec := make([]bool, t.Dim)
		for i := range vec {
			vec[i] = b[i] != 0
		}
		return NewBooleanVector(vec), nil
	case IntVector:
		vec := make([]int64, t.Dim)
		for i := range vec {
			vec[i] = int64(int32(binary.BigEndian.Uint32(b[i*4:])))
		}
		return Value{Typ: t, IntVec: vec}, nil
	case LongVector:
		vec := make([]int64, t.Dim)
		for i := range vec {
			vec[i] = int64(binary.BigEndian.Uint64(b[i*8:]))
		}
		return Value{Typ: t, IntVec: vec}, nil
	case FloatVector:
		vec := make([]float64, t.Dim)
		for i := range vec {
			vec[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(b[i*4:])))
		}
		return Value{Typ: t, FloatVec: vec}, nil
	case DoubleVector:
		vec := make([]float64, t.Dim)
		for i := range vec {
			vec[i] = math.Float64frombits(binary.BigEndian.Uint64(b[i*8:]))
		}
		return Value{Typ: t, FloatVec: vec}, nil
	case Complex32Vector:
		vec := make([]complex128, t.Dim)
		for i := range vec {
			re := math.Float32frombits(binary.BigEndian.Uint32(b[i*8:]))
			im := math.Float32frombits(binary.BigEndian.Uint32(b[i*8+4:]))
			vec[i] = complex(float64(re), float64(im))
		}
		return Value{Typ: t, CplxVec: vec}, nil
	case Complex64Vector:
		vec := make([]complex128, t.Dim)
		for i := range vec {
			re := math.Float64frombits(binary.BigEndian.Uint64(b[i*16:]))
			im := math.Float64frombits(binary.BigEndian.Uint64(b[i*16+8:]))
			vec[i] = complex(re, im)
		}
		return Value{Typ: t, CplxVec: vec}, nil
	default:
		return Value{}, dberr.New(dberr.KindTypeMismatch, "", fmt.Sprintf("unsupported kind %s", t.Kind))
	}
}

func marshalVarBytes(b []byte) []byte {
	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, uint64(len(b)))
	out := make([]byte, 0, n+len(b))
	out = append(out, lenBuf[:n]...)
	out = append(out, b...)
	return out
}

func unmarshalVarBytes(b []byte) ([]byte, int) {
	n, sz := binary.Uvarint(b)
	return b[sz : sz+int(n)], sz + int(n)
}

// EncodeSequence serializes a sequence counter as an 8-byte big-endian
// signed long, per the stable sequence-store byte contract.
func EncodeSequence(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeSequence reverses EncodeSequence.
func DecodeSequence(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
