// Package types implements the engine's tagged value system: the closed
// set of scalar and vector types, their physical/logical sizes, and the
// byte-level serialization every column and index relies on.
package types

import "fmt"

// Kind enumerates the closed set of supported types.
type Kind uint8

const (
	Boolean Kind = iota
	Byte
	Short
	Int
	Long
	Float
	Double
	Complex32
	Complex64
	Date
	String
	BooleanVector
	IntVector
	LongVector
	FloatVector
	DoubleVector
	Complex32Vector
	Complex64Vector
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "BOOLEAN"
	case Byte:
		return "BYTE"
	case Short:
		return "SHORT"
	case Int:
		return "INT"
	case Long:
		return "LONG"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case Complex32:
		return "COMPLEX32"
	case Complex64:
		return "COMPLEX64"
	case Date:
		return "DATE"
	case String:
		return "STRING"
	case BooleanVector:
		return "BOOLEAN_VECTOR"
	case IntVector:
		return "INT_VECTOR"
	case LongVector:
		return "LONG_VECTOR"
	case FloatVector:
		return "FLOAT_VECTOR"
	case DoubleVector:
		return "DOUBLE_VECTOR"
	case Complex32Vector:
		return "COMPLEX32_VECTOR"
	case Complex64Vector:
		return "COMPLEX64_VECTOR"
	default:
		return "UNKNOWN"
	}
}

// IsVector reports whether the kind is a vector type.
func (k Kind) IsVector() bool {
	switch k {
	case BooleanVector, IntVector, LongVector, FloatVector, DoubleVector, Complex32Vector, Complex64Vector:
		return true
	default:
		return false
	}
}

// IsReal reports whether the kind is a real-valued (non-complex) vector,
// the only family the VAF and PQ indexes operate over.
func (k Kind) IsReal() bool {
	switch k {
	case IntVector, LongVector, FloatVector, DoubleVector:
		return true
	default:
		return false
	}
}

// IsComplex reports whether the kind is a complex scalar or vector.
func (k Kind) IsComplex() bool {
	switch k {
	case Complex32, Complex64, Complex32Vector, Complex64Vector:
		return true
	default:
		return false
	}
}

// elementPhysicalSize is the per-element byte width of a scalar or the
// element of a vector kind.
func elementPhysicalSize(k Kind) int {
	switch k {
	case Boolean, BooleanVector:
		return 1
	case Byte:
		return 1
	case Short:
		return 2
	case Int, IntVector:
		return 4
	case Long, LongVector:
		return 8
	case Float, FloatVector:
		return 4
	case Double, DoubleVector:
		return 8
	case Complex32, Complex32Vector:
		return 8 // two float32
	case Complex64, Complex64Vector:
		return 16 // two float64
	case Date:
		return 8
	case String:
		return 0 // variable-length, size-prefixed
	default:
		return 0
	}
}

// Type describes a concrete, possibly-vector type: its Kind and, for
// vector kinds, a strictly positive dimensionality.
type Type struct {
	Kind Kind
	Dim  int // 0 for scalars; > 0 for vectors
}

// Scalar constructs a scalar Type.
func Scalar(k Kind) Type {
	if k.IsVector() {
		panic(fmt.Sprintf("types: %s is a vector kind, use Vector(k, dim)", k))
	}
	return Type{Kind: k}
}

// Vector constructs a vector Type with the given dimensionality. Panics
// if dim is not strictly positive, per the invariant that "vectors carry
// a positive dimensionality".
func Vector(k Kind, dim int) Type {
	if !k.IsVector() {
		panic(fmt.Sprintf("types: %s is not a vector kind", k))
	}
	if dim <= 0 {
		panic(fmt.Sprintf("types: vector dimensionality must be positive, got %d", dim))
	}
	return Type{Kind: k, Dim: dim}
}

// LogicalSize is the element count of the type: 1 for scalars, Dim for vectors.
func (t Type) LogicalSize() int {
	if t.Kind.IsVector() {
		return t.Dim
	}
	return 1
}

// PhysicalSize is the serialized byte width of the type. Variable-length
// types (String) return 0; their serializer is length-prefixed.
func (t Type) PhysicalSize() int {
	per := elementPhysicalSize(t.Kind)
	if t.Kind.IsVector() {
		return per * t.Dim
	}
	return per
}

func (t Type) String() string {
	if t.Kind.IsVector() {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Dim)
	}
	return t.Kind.String()
}

// Equal reports whether two types denote the same kind and (for vectors)
// dimensionality.
func (t Type) Equal(o Type) bool {
	return t.Kind == o.Kind && t.Dim == o.Dim
}
