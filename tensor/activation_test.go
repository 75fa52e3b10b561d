package tensor

import (
	"math"
	"testing"
)

func TestSigmoidForwardBackward(t *testing.T) {
	values := []float64{-2, 0, 2}
	input := MustNew(values, 3)
	input.SetRequiresGrad(true)
	out := Sigmoid(input)
	expected := make([]float64, len(values))
	deriv := make([]float64, len(values))
	for i, v := range values {
		expected[i] = 1 / (1 + math.Exp(-v))
		deriv[i] = expected[i] * (1 - expected[i])
	}
	if !AlmostEqualSlices(out.Data(), expected, 1e-9) {
		t.Fatalf("sigmoid output mismatch: %v", out.Data())
	}
	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("sigmoid backward failed: %v", err)
	}
	if !AlmostEqualSlices(input.Grad().Data(), deriv, 1e-9) {
		t.Fatalf("sigmoid grad mismatch: %v", input.Grad().Data())
	}
}

func TestTanhForwardBackward(t *testing.T) {
	values := []float64{-1, 0, 1}
	input := MustNew(values, 3)
	input.SetRequiresGrad(true)
	out := Tanh(input)
	expected := make([]float64, len(values))
	deriv := make([]float64, len(values))
	for i, v := range values {
		expected[i] = math.Tanh(v)
		deriv[i] = 1 - expected[i]*expected[i]
	}
	if !AlmostEqualSlices(out.Data(), expected, 1e-9) {
		t.Fatalf("tanh output mismatch: %v", out.Data())
	}
	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("tanh backward failed: %v", err)
	}
	if !AlmostEqualSlices(input.Grad().Data(), deriv, 1e-9) {
		t.Fatalf("tanh grad mismatch: %v", input.Grad().Data())
	}
}

func TestHardSigmoidAnchors(t *testing.T) {
	input := MustNew([]float64{-3, -2.5, -1, 0, 2, 2.5, 3}, 7)
	out := HardSigmoid(input)
	// Saturation must be exact, and the linear region must be exactly
	// x*0.2 + 0.5.
	expected := []float64{0, 0, 0.3, 0.5, 0.9, 1, 1}
	got := out.Data()
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("hard sigmoid at index %d: got %v want %v", i, got[i], expected[i])
		}
	}
}

func TestHardSigmoidRange(t *testing.T) {
	input := Randn(512)
	input.Scale(10)
	out := HardSigmoid(input)
	for i, v := range out.Data() {
		if v < 0 || v > 1 {
			t.Fatalf("hard sigmoid out of range at %d: %v", i, v)
		}
	}
}

func TestHardSigmoidBackward(t *testing.T) {
	input := MustNew([]float64{-3, -2.5, 0, 1, 2.5, 3}, 6)
	input.SetRequiresGrad(true)
	out := HardSigmoid(input)
	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("hard sigmoid backward failed: %v", err)
	}
	// Slope 0.2 strictly inside the linear region, 0 once saturated.
	expected := []float64{0, 0, 0.2, 0.2, 0, 0}
	if !AlmostEqualSlices(input.Grad().Data(), expected, 0) {
		t.Fatalf("hard sigmoid grad mismatch: %v", input.Grad().Data())
	}
}
