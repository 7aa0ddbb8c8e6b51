// Package distance provides the metric kernels used to rank points inside an
// HNSW graph: a single capability, Eval(a, b) -> f32, pluggable per element
// type and per metric.
package distance

import "golang.org/x/exp/constraints"

// Numeric is the set of element types a dense vector kernel can operate on.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// Distance is the capability every metric and every user-supplied closure
// must satisfy. Implementations must be pure and total: Eval must panic on
// a length mismatch between a and b, and on encountering NaN in the input.
type Distance[T any] interface {
	Eval(a, b []T) float32
}

// FuncDistance adapts a plain function to the Distance interface, for
// callers that want to install a closure-based metric instead of one of the
// built-in kernels.
type FuncDistance[T any] struct {
	Fn func(a, b []T) float32
}

// Eval calls the wrapped function.
func (f FuncDistance[T]) Eval(a, b []T) float32 {
	return f.Fn(a, b)
}

func requireSameLen[T any](a, b []T) {
	if len(a) != len(b) {
		panic("distance: vectors have different lengths")
	}
}
