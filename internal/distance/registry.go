package distance

import "github.com/hyperplane-db/hyperplane/internal/types"

// Registry resolves a (Kind, element type) pair to the scalar kernel
// and, where one exists, its vectorized counterpart. Arity is always
// binary (query vs. candidate) for every kind this engine supports, so
// it is not threaded through the key.
type Registry struct{}

// NewRegistry constructs the (stateless) kernel registry.
func NewRegistry() *Registry { return &Registry{} }

// Resolve returns the kernel to use for kind over a vector of the given
// real element type and logical size, honoring the planner's
// vectorization break-even threshold. elemType is expected to be one of
// the real vector kinds (IntVector, LongVector, FloatVector,
// DoubleVector); any other kind is treated as 64-bit wide.
func (r *Registry) Resolve(kind Kind, elemType types.Kind, dim int, vectorize bool) Func {
	scalarFn := Scalar(kind)
	if scalarFn == nil {
		return nil
	}
	if !vectorize {
		return scalarFn
	}
	vecFn := Vectorized(kind)
	if vecFn == nil {
		return scalarFn
	}
	if !ShouldVectorize(dim, elementWidth(elemType)) {
		return scalarFn
	}
	return vecFn
}

func elementWidth(k types.Kind) ElementWidth {
	switch k {
	case types.FloatVector, types.IntVector:
		return Width32
	default:
		return Width64
	}
}

// SupportsKind reports whether kind has any kernel at all.
func SupportsKind(kind Kind) bool { return Scalar(kind) != nil }
