package types

import (
	"fmt"
	"math"
	"time"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
)

// Value is a typed, possibly-null instance of a Type. Exactly one of the
// data fields below is meaningful, selected by Typ.Kind. Complex scalars
// are held in Cplx and complex vectors in CplxVec, one complex128 per
// element.
type Value struct {
	Typ  Type
	Null bool

	Bool    bool
	Int64   int64 // backs Byte, Short, Int, Long, Date (unix nanos)
	Float64 float64
	Str     string
	Cplx    complex128 `json:"-"` // encoding/json cannot represent complex128; observe() excludes complex kinds from the only JSON-encoded path (catalog statistics Min/Max)

	BoolVec   []bool
	IntVec    []int64 // backs IntVector and LongVector
	FloatVec  []float64
	CplxVec   []complex128 `json:"-"`
}

// NullValue constructs a null Value of the given type.
func NullValue(t Type) Value { return Value{Typ: t, Null: true} }

// NewBool, NewInt, NewLong, NewFloat, NewDouble, NewString, NewDate construct
// scalar, non-null values.
func NewBool(v bool) Value    { return Value{Typ: Scalar(Boolean), Bool: v} }
func NewByte(v int8) Value    { return Value{Typ: Scalar(Byte), Int64: int64(v)} }
func NewShort(v int16) Value  { return Value{Typ: Scalar(Short), Int64: int64(v)} }
func NewInt(v int32) Value    { return Value{Typ: Scalar(Int), Int64: int64(v)} }
func NewLong(v int64) Value   { return Value{Typ: Scalar(Long), Int64: v} }
func NewFloat(v float32) Value  { return Value{Typ: Scalar(Float), Float64: float64(v)} }
func NewDouble(v float64) Value { return Value{Typ: Scalar(Double), Float64: v} }
func NewString(v string) Value  { return Value{Typ: Scalar(String), Str: v} }
func NewDate(v time.Time) Value { return Value{Typ: Scalar(Date), Int64: v.UnixNano()} }
func NewComplex32(v complex64) Value  { return Value{Typ: Scalar(Complex32), Cplx: complex128(v)} }
func NewComplex64(v complex128) Value { return Value{Typ: Scalar(Complex64), Cplx: v} }

// NewFloatVector, NewDoubleVector etc construct vector values.
func NewBooleanVector(v []bool) Value {
	return Value{Typ: Vector(BooleanVector, len(v)), BoolVec: v}
}

func NewIntVector(v []int32) Value {
	iv := make([]int64, len(v))
	for i, x := range v {
		iv[i] = int64(x)
	}
	return Value{Typ: Vector(IntVector, len(v)), IntVec: iv}
}

func NewLongVector(v []int64) Value {
	return Value{Typ: Vector(LongVector, len(v)), IntVec: v}
}

func NewFloatVectorValue(v []float32) Value {
	fv := make([]float64, len(v))
	for i, x := range v {
		fv[i] = float64(x)
	}
	return Value{Typ: Vector(FloatVector, len(v)), FloatVec: fv}
}

func NewDoubleVector(v []float64) Value {
	return Value{Typ: Vector(DoubleVector, len(v)), FloatVec: v}
}

func NewComplex32Vector(v []complex64) Value {
	cv := make([]complex128, len(v))
	for i, x := range v {
		cv[i] = complex128(x)
	}
	return Value{Typ: Vector(Complex32Vector, len(v)), CplxVec: cv}
}

func NewComplex64Vector(v []complex128) Value {
	return Value{Typ: Vector(Complex64Vector, len(v)), CplxVec: v}
}

// AsFloat64Slice returns the real vector's components as float64,
// regardless of whether the backing type is IntVector, LongVector,
// FloatVector or DoubleVector. It panics if Typ is not a real vector.
func (v Value) AsFloat64Slice() []float64 {
	if !v.Typ.Kind.IsReal() {
		panic(fmt.Sprintf("types: %s is not a real vector type", v.Typ))
	}
	if v.FloatVec != nil || v.IntVec == nil {
		return v.FloatVec
	}
	out := make([]float64, len(v.IntVec))
	for i, x := range v.IntVec {
		out[i] = float64(x)
	}
	return out
}

// Equal reports value equality within a type; cross-type comparison
// returns an error wrapping dberr.KindTypeMismatch.
func (v Value) Equal(o Value) (bool, error) {
	if !v.Typ.Equal(o.Typ) {
		return false, dberr.New(dberr.KindTypeMismatch, "", fmt.Sprintf("%s vs %s", v.Typ, o.Typ))
	}
	if v.Null || o.Null {
		return v.Null == o.Null, nil
	}
	switch v.Typ.Kind {
	case Boolean:
		return v.Bool == o.Bool, nil
	case Byte, Short, Int, Long, Date:
		return v.Int64 == o.Int64, nil
	case Float, Double:
		return v.Float64 == o.Float64, nil
	case String:
		return v.Str == o.Str, nil
	case Complex32, Complex64:
		return v.Cplx == o.Cplx, nil
	case BooleanVector:
		return equalBoolSlice(v.BoolVec, o.BoolVec), nil
	case IntVector, LongVector:
		return equalInt64Slice(v.IntVec, o.IntVec), nil
	case FloatVector, DoubleVector:
		return equalFloat64Slice(v.FloatVec, o.FloatVec), nil
	case Complex32Vector, Complex64Vector:
		return equalComplexSlice(v.CplxVec, o.CplxVec), nil
	default:
		return false, dberr.New(dberr.KindTypeMismatch, "", "unsupported kind")
	}
}

// Compare gives a total order within a type for scalar, orderable kinds
// (everything but vectors and complex numbers, which have no natural
// order). Returns -1, 0, 1. Cross-type or unorderable comparisons return
// a TypeMismatch error.
func (v Value) Compare(o Value) (int, error) {
	if !v.Typ.Equal(o.Typ) {
		return 0, dberr.New(dberr.KindTypeMismatch, "", fmt.Sprintf("%s vs %s", v.Typ, o.Typ))
	}
	if v.Null || o.Null {
		switch {
		case v.Null && o.Null:
			return 0, nil
		case v.Null:
			return 1, nil // nulls order last
		default:
			return -1, nil
		}
	}
	switch v.Typ.Kind {
	case Byte, Short, Int, Long, Date:
		return cmpInt64(v.Int64, o.Int64), nil
	case Float, Double:
		return cmpFloat64(v.Float64, o.Float64), nil
	case String:
		return cmpString(v.Str, o.Str), nil
	case Boolean:
		return cmpBool(v.Bool, o.Bool), nil
	default:
		return 0, dberr.New(dberr.KindTypeMismatch, "", fmt.Sprintf("%s has no total order", v.Typ))
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func equalBoolSlice(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInt64Slice(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalFloat64Slice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalComplexSlice(a, b []complex128) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsNaN reports whether a float/double value is NaN; used by statistics
// to skip invalid samples.
func (v Value) IsNaN() bool {
	switch v.Typ.Kind {
	case Float, Double:
		return math.IsNaN(v.Float64)
	default:
		return false
	}
}
