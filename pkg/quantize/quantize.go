// Package quantize provides a trivial, stateless linear float-to-uint8 map.
// It exists for callers who want to shrink vectors before calling Insert;
// the core never quantizes on its own behalf.
package quantize

// Quantize maps each component of v from [lo, hi] onto [0, 255], clamping
// out-of-range components to the nearest bound. lo must be less than hi.
func Quantize(v []float32, lo, hi float32) []uint8 {
	out := make([]uint8, len(v))
	span := hi - lo
	for i, x := range v {
		switch {
		case x <= lo:
			out[i] = 0
		case x >= hi:
			out[i] = 255
		default:
			out[i] = uint8((x - lo) / span * 255)
		}
	}
	return out
}

// Dequantize is Quantize's inverse: it maps each component of q from
// [0, 255] back onto [lo, hi]. The round trip is lossy.
func Dequantize(q []uint8, lo, hi float32) []float32 {
	out := make([]float32, len(q))
	span := hi - lo
	for i, x := range q {
		out[i] = lo + float32(x)/255*span
	}
	return out
}
