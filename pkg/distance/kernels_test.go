package distance

import (
	"math"
	"testing"
)

func TestL1L2Basic(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 0, 3}

	if got := (L1[float32]{}).Eval(a, b); math.Abs(float64(got)-5) > 1e-5 {
		t.Errorf("L1 = %v, want 5", got)
	}
	if got := (L2[float32]{}).Eval(a, b); math.Abs(float64(got)-math.Sqrt(13)) > 1e-5 {
		t.Errorf("L2 = %v, want sqrt(13)", got)
	}
}

func TestL1L2PanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on length mismatch")
		}
	}()
	(L1[float32]{}).Eval([]float32{1, 2}, []float32{1})
}

func TestL1L2PanicsOnNaN(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on NaN")
		}
	}()
	(L2[float32]{}).Eval([]float32{float32(math.NaN()), 2}, []float32{1, 2})
}

// TestSIMDScalarEquivalence checks the unrolled and single-lane paths agree
// (property 7): forcing hasAVX2 off must not change the result beyond
// float32 rounding.
func TestSIMDScalarEquivalence(t *testing.T) {
	a := make([]float32, 67)
	b := make([]float32, 67)
	for i := range a {
		a[i] = float32(i) * 0.37
		b[i] = float32(67-i) * 0.11
	}

	saved := hasAVX2
	defer func() { hasAVX2 = saved }()

	hasAVX2 = true
	wantL1 := l1F32(a, b)
	wantL2 := l2F32(a, b)

	hasAVX2 = false
	gotL1 := l1F32(a, b)
	gotL2 := l2F32(a, b)

	if math.Abs(float64(gotL1-wantL1)) > 1e-3 {
		t.Errorf("l1F32 lanes disagree: unrolled=%v scalar=%v", wantL1, gotL1)
	}
	if math.Abs(float64(gotL2-wantL2)) > 1e-3 {
		t.Errorf("l2F32 lanes disagree: unrolled=%v scalar=%v", wantL2, gotL2)
	}
}

func TestHamming(t *testing.T) {
	a := []int{1, 2, 3, 4}
	b := []int{1, 0, 3, 0}
	if got := (Hamming[int]{}).Eval(a, b); got != 0.5 {
		t.Errorf("Hamming = %v, want 0.5", got)
	}
}

// TestJaccard checks the weighted-set formula against a hand-computed value.
func TestJaccard(t *testing.T) {
	a := []float32{1, 2, 0}
	b := []float32{2, 1, 0}
	// min sums: 1+1+0=2, max sums: 2+2+0=4 -> distance = 1 - 2/4 = 0.5
	if got := (Jaccard[float32]{}).Eval(a, b); math.Abs(float64(got)-0.5) > 1e-6 {
		t.Errorf("Jaccard = %v, want 0.5", got)
	}
}

func TestJaccardZeroDenominator(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{0, 0}
	if got := (Jaccard[float32]{}).Eval(a, b); got != 0 {
		t.Errorf("Jaccard with zero denominator = %v, want 0", got)
	}
}

func TestDotInt8Basic(t *testing.T) {
	a := []int8{1, 2, 3, -4}
	b := []int8{4, 0, -3, 2}
	// dot = 4 + 0 - 9 - 8 = -13, distance = clampFloor0(1 - (-13)) = 14
	if got := (Dot[int8]{}).Eval(a, b); got != 14 {
		t.Errorf("Dot[int8] = %v, want 14", got)
	}
}

// TestDotInt8SIMDScalarEquivalence checks property 7 for the int8 dot-product
// path: the AVX2-gated unrolled loop and the 1-wide fallback must agree.
func TestDotInt8SIMDScalarEquivalence(t *testing.T) {
	a := make([]int8, 97)
	b := make([]int8, 97)
	for i := range a {
		a[i] = int8(i%17 - 8)
		b[i] = int8((97-i)%13 - 6)
	}

	saved := hasAVX2
	defer func() { hasAVX2 = saved }()

	hasAVX2 = true
	want := dotInt8(a, b)
	hasAVX2 = false
	got := dotInt8(a, b)

	if got != want {
		t.Errorf("dotInt8 lanes disagree: unrolled=%v scalar=%v", want, got)
	}
}
