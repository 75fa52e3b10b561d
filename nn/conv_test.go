package nn

import (
	"testing"

	"github.com/fumitoshi0524/ixeoriVision/tensor"
)

func TestConv2dSamePadding(t *testing.T) {
	conv := NewConv2d(1, 1, 3, 3, 1, 1, 1, 1, true)
	mustSetData(t, conv.weight, []float64{
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	})
	mustSetData(t, conv.bias, []float64{0.5})

	input := tensor.MustNew([]float64{
		1, 2,
		3, 4,
	}, 1, 1, 2, 2)
	out, err := conv.Forward(input)
	if err != nil {
		t.Fatalf("conv forward failed: %v", err)
	}
	if got := out.Shape(); got[2] != 2 || got[3] != 2 {
		t.Fatalf("same padding did not preserve spatial size: %v", got)
	}
	if !floatsAlmostEqual(out.Data(), []float64{1.5, 2.5, 3.5, 4.5}, 1e-12) {
		t.Fatalf("conv output mismatch: %v", out.Data())
	}
}

func TestConv2dParameters(t *testing.T) {
	withBias := NewConv2d(2, 3, 3, 3, 1, 1, 1, 1, true)
	if len(withBias.Parameters()) != 2 {
		t.Fatalf("expected weight and bias parameters")
	}
	noBias := NewConv2d(2, 3, 3, 3, 1, 1, 1, 1, false)
	if len(noBias.Parameters()) != 1 {
		t.Fatalf("expected weight-only parameters")
	}
	if noBias.Bias() != nil {
		t.Fatalf("bias should be nil when disabled")
	}
}
