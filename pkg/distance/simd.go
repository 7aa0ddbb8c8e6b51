package distance

import (
	"math"

	"golang.org/x/sys/cpu"
)

// hasAVX2 gates the lane-unrolled paths below. When false (older CPUs, or
// non-amd64 builds where cpu.X86 reads its zero value), every kernel falls
// back to the single-lane loop, which is the same arithmetic, just unrolled
// a factor of 1.
var hasAVX2 = cpu.X86.HasAVX2

func sqrtF64(x float64) float64 {
	return math.Sqrt(x)
}

func logF64(x float64) float64 {
	return math.Log(x)
}

// l1F32 computes the L1 distance over float32 lanes, unrolled 16-wide when
// AVX2 is available, 1-wide otherwise. Both paths add the same terms but
// group them differently, so results agree up to float32 rounding
// regardless of which path runs.
func l1F32(a, b []float32) float32 {
	n := len(a)
	lanes := 1
	if hasAVX2 {
		lanes = 16
	}
	var sum float32
	i := 0
	for ; i+lanes <= n; i += lanes {
		var group float32
		for j := 0; j < lanes; j++ {
			x, y := a[i+j], b[i+j]
			if x != x || y != y {
				panic("distance: NaN encountered in input vector")
			}
			d := x - y
			if d < 0 {
				d = -d
			}
			group += d
		}
		sum += group
	}
	for ; i < n; i++ {
		x, y := a[i], b[i]
		if x != x || y != y {
			panic("distance: NaN encountered in input vector")
		}
		d := x - y
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// l1F64 is l1F32's float64 counterpart, unrolled 8-wide under AVX2.
func l1F64(a, b []float64) float32 {
	n := len(a)
	lanes := 1
	if hasAVX2 {
		lanes = 8
	}
	var sum float64
	i := 0
	for ; i+lanes <= n; i += lanes {
		var group float64
		for j := 0; j < lanes; j++ {
			x, y := a[i+j], b[i+j]
			if x != x || y != y {
				panic("distance: NaN encountered in input vector")
			}
			d := x - y
			if d < 0 {
				d = -d
			}
			group += d
		}
		sum += group
	}
	for ; i < n; i++ {
		x, y := a[i], b[i]
		if x != x || y != y {
			panic("distance: NaN encountered in input vector")
		}
		d := x - y
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float32(sum)
}

// l2F32 computes the Euclidean distance over float32 lanes, same
// unrolling/fallback scheme as l1F32.
func l2F32(a, b []float32) float32 {
	n := len(a)
	lanes := 1
	if hasAVX2 {
		lanes = 16
	}
	var sum float64
	i := 0
	for ; i+lanes <= n; i += lanes {
		var group float64
		for j := 0; j < lanes; j++ {
			x, y := a[i+j], b[i+j]
			if x != x || y != y {
				panic("distance: NaN encountered in input vector")
			}
			d := float64(x) - float64(y)
			group += d * d
		}
		sum += group
	}
	for ; i < n; i++ {
		x, y := a[i], b[i]
		if x != x || y != y {
			panic("distance: NaN encountered in input vector")
		}
		d := float64(x) - float64(y)
		sum += d * d
	}
	return float32(sqrtF64(sum))
}

// l2F64 is l2F32's float64 counterpart, unrolled 8-wide under AVX2.
func l2F64(a, b []float64) float32 {
	n := len(a)
	lanes := 1
	if hasAVX2 {
		lanes = 8
	}
	var sum float64
	i := 0
	for ; i+lanes <= n; i += lanes {
		var group float64
		for j := 0; j < lanes; j++ {
			x, y := a[i+j], b[i+j]
			if x != x || y != y {
				panic("distance: NaN encountered in input vector")
			}
			d := x - y
			group += d * d
		}
		sum += group
	}
	for ; i < n; i++ {
		x, y := a[i], b[i]
		if x != x || y != y {
			panic("distance: NaN encountered in input vector")
		}
		d := x - y
		sum += d * d
	}
	return float32(sqrtF64(sum))
}

// dotInt8 computes the raw dot product over int8 lanes, unrolled 32-wide
// (one AVX2 256-bit register's worth of 8-bit lanes) when AVX2 is
// available, 1-wide otherwise. Accumulation happens in int32 per group:
// 32 lanes of int8*int8 cannot overflow int32, so both paths are exact.
func dotInt8(a, b []int8) float32 {
	n := len(a)
	lanes := 1
	if hasAVX2 {
		lanes = 32
	}
	var sum int64
	i := 0
	for ; i+lanes <= n; i += lanes {
		var group int32
		for j := 0; j < lanes; j++ {
			group += int32(a[i+j]) * int32(b[i+j])
		}
		sum += int64(group)
	}
	for ; i < n; i++ {
		sum += int64(a[i]) * int64(b[i])
	}
	return float32(sum)
}
