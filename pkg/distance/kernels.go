package distance

func isNaN[T Numeric](x T) bool {
	return x != x
}

// L1 is the Manhattan distance: sum(|a[i]-b[i]|).
type L1[T Numeric] struct{}

// Eval computes the L1 distance. For float32 and float64 it dispatches to a
// lane-unrolled path, gated by AVX2 availability, with a scalar tail for the
// remainder (see simd.go).
func (L1[T]) Eval(a, b []T) float32 {
	requireSameLen(a, b)
	switch va := any(a).(type) {
	case []float32:
		return l1F32(va, any(b).([]float32))
	case []float64:
		return l1F64(va, any(b).([]float64))
	}
	var sum float64
	for i := range a {
		if isNaN(a[i]) || isNaN(b[i]) {
			panic("distance: NaN encountered in input vector")
		}
		d := float64(a[i]) - float64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float32(sum)
}

// L2 is the Euclidean distance: sqrt(sum((a[i]-b[i])^2)).
type L2[T Numeric] struct{}

// Eval computes the L2 distance, with the same SIMD/scalar split as L1.
func (L2[T]) Eval(a, b []T) float32 {
	requireSameLen(a, b)
	switch va := any(a).(type) {
	case []float32:
		return l2F32(va, any(b).([]float32))
	case []float64:
		return l2F64(va, any(b).([]float64))
	}
	var sum float64
	for i := range a {
		if isNaN(a[i]) || isNaN(b[i]) {
			panic("distance: NaN encountered in input vector")
		}
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sqrtF64(sum))
}

// Dot is 1 - a.b, assuming both inputs are already unit-L2-normalized.
// Floored at 0 like Cosine. For int8 elements, the dot product itself
// dispatches to an AVX2-gated unrolled path (see simd.go); other element
// types use the scalar loop.
type Dot[T Numeric] struct{}

// Eval computes the pre-normalized dot-product distance.
func (Dot[T]) Eval(a, b []T) float32 {
	requireSameLen(a, b)
	if va, ok := any(a).([]int8); ok {
		return clampFloor0(1 - dotInt8(va, any(b).([]int8)))
	}
	var dot float64
	for i := range a {
		if isNaN(a[i]) || isNaN(b[i]) {
			panic("distance: NaN encountered in input vector")
		}
		dot += float64(a[i]) * float64(b[i])
	}
	return clampFloor0(float32(1 - dot))
}

// Hamming is the fraction of positions at which a and b differ.
type Hamming[T comparable] struct{}

// Eval returns (count of positions where a[i] != b[i]) / len(a).
func (Hamming[T]) Eval(a, b []T) float32 {
	requireSameLen(a, b)
	if len(a) == 0 {
		return 0
	}
	var diff int
	for i := range a {
		if a[i] != b[i] {
			diff++
		}
	}
	return float32(diff) / float32(len(a))
}

// Jaccard is 1 - sum(min(a,b))/sum(max(a,b)), 0 when the denominator is 0.
type Jaccard[T Numeric] struct{}

// Eval computes the Jaccard distance over non-negative weighted sets.
func (Jaccard[T]) Eval(a, b []T) float32 {
	requireSameLen(a, b)
	var num, den float64
	for i := range a {
		if isNaN(a[i]) || isNaN(b[i]) {
			panic("distance: NaN encountered in input vector")
		}
		x, y := float64(a[i]), float64(b[i])
		if x < y {
			num += x
			den += y
		} else {
			num += y
			den += x
		}
	}
	if den == 0 {
		return 0
	}
	return float32(1 - num/den)
}

// clampFloor0 enforces the "clamp floor at 0" rule Cosine and Dot share.
func clampFloor0(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}
