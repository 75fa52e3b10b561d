package tensor

import (
	"strings"
	"testing"
)

func TestMulBroadcastOverBatch(t *testing.T) {
	a := MustNew([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	b := MustNew([]float64{10, 20, 30, 40}, 2, 2)
	a.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	out, err := MulBroadcast(a, b)
	if err != nil {
		t.Fatalf("mul broadcast failed: %v", err)
	}
	expected := []float64{10, 40, 90, 160, 50, 120, 210, 320}
	if !AlmostEqualSlices(out.Data(), expected, 1e-12) {
		t.Fatalf("broadcast product mismatch: %v", out.Data())
	}

	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), []float64{10, 20, 30, 40, 10, 20, 30, 40}, 1e-12) {
		t.Fatalf("grad a mismatch: %v", a.Grad().Data())
	}
	// b's gradient sums the matching positions across the batch.
	if !AlmostEqualSlices(b.Grad().Data(), []float64{6, 8, 10, 12}, 1e-12) {
		t.Fatalf("grad b mismatch: %v", b.Grad().Data())
	}
}

func TestAddBroadcastChannelBias(t *testing.T) {
	a := Zeros(2, 2, 2, 2)
	b := MustNew([]float64{1, -1}, 2, 1, 1)
	a.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	out, err := AddBroadcast(a, b)
	if err != nil {
		t.Fatalf("add broadcast failed: %v", err)
	}
	expected := []float64{
		1, 1, 1, 1, -1, -1, -1, -1,
		1, 1, 1, 1, -1, -1, -1, -1,
	}
	if !AlmostEqualSlices(out.Data(), expected, 1e-12) {
		t.Fatalf("broadcast sum mismatch: %v", out.Data())
	}

	if err := Sum(out).Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	if !AlmostEqualSlices(a.Grad().Data(), Ones(2, 2, 2, 2).Data(), 1e-12) {
		t.Fatalf("grad a mismatch: %v", a.Grad().Data())
	}
	// Each channel bias accumulates over batch and spatial positions.
	if !AlmostEqualSlices(b.Grad().Data(), []float64{8, 8}, 1e-12) {
		t.Fatalf("grad b mismatch: %v", b.Grad().Data())
	}
}

func TestBroadcastIncompatible(t *testing.T) {
	if _, err := MulBroadcast(Zeros(2, 2), Zeros(3)); err == nil {
		t.Fatalf("expected incompatible dimensions error")
	}
	if _, err := AddBroadcast(Zeros(2), Zeros(2, 2)); err == nil {
		t.Fatalf("expected rank error")
	}
}

func TestBroadcastDeviceMismatch(t *testing.T) {
	a := Zeros(2, 2)
	b := Ones(2).To(Device("accel0"))
	if _, err := MulBroadcast(a, b); err == nil || !strings.Contains(err.Error(), "device mismatch") {
		t.Fatalf("expected device mismatch error, got %v", err)
	}
}
