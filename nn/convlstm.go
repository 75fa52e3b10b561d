package nn

import (
	"fmt"

	"github.com/fumitoshi0524/ixeoriVision/tensor"
)

// GatingMode selects how a ConvLSTMCell combines its gates into the new
// cell and hidden states.
type GatingMode int

const (
	// GatingMultiply is the standard LSTM composition:
	// c' = f*c + i*tanh(candidate), h' = o*tanh(c').
	GatingMultiply GatingMode = iota
	// GatingSubtract is an experimental composition:
	// c' = f*c + candidate - i, h' = hardsigmoid(c') - o.
	// Its hidden state is not confined to [0, 1]; that is intentional.
	GatingSubtract
)

func ParseGatingMode(s string) (GatingMode, error) {
	switch s {
	case "mul":
		return GatingMultiply, nil
	case "sub":
		return GatingSubtract, nil
	}
	return 0, fmt.Errorf("unknown gating mode %q, valid modes are \"mul\" and \"sub\"", s)
}

func (m GatingMode) String() string {
	switch m {
	case GatingMultiply:
		return "mul"
	case GatingSubtract:
		return "sub"
	}
	return fmt.Sprintf("GatingMode(%d)", int(m))
}

const (
	gateInput = iota
	gateForget
	gateCell
	gateOutput
	gateTotal
)

// convGate pairs the two convolutions feeding one gate's pre-activation.
type convGate struct {
	fromInput  *Conv2d
	fromHidden *Conv2d
}

// ConvLSTMCell is a convolutional LSTM cell over image frames. It maps one
// input frame plus the previous (hidden, cell) state pair to the next pair;
// the caller owns the state across a sequence. Convolutions use stride 1
// with padding kernel/2 so the spatial size is preserved for odd kernels;
// even kernel dimensions still work but shift alignment by one pixel.
//
// Peephole weights (one [hidden, h, w] tensor per input/forget/output gate)
// always multiply the cell state into the gate pre-activation; when the
// peephole flag is off they stay frozen at 1, so the term reduces to adding
// the raw cell state. Tied biases (one [hidden, 1, 1] tensor per gate)
// replace the per-convolution biases when enabled, and stay frozen at 0
// otherwise.
type ConvLSTMCell struct {
	height    int
	width     int
	inputDim  int
	hiddenDim int
	kernelH   int
	kernelW   int
	mode      GatingMode
	peephole  bool
	tiedBias  bool

	gates [gateTotal]convGate
	peep  [gateTotal]*tensor.Tensor // nil at gateCell
	tied  [gateTotal]*tensor.Tensor
}

func NewConvLSTMCell(height, width, inputDim, hiddenDim, kernelH, kernelW int, mode GatingMode, peephole, tiedBias bool) *ConvLSTMCell {
	c := &ConvLSTMCell{
		height:    height,
		width:     width,
		inputDim:  inputDim,
		hiddenDim: hiddenDim,
		kernelH:   kernelH,
		kernelW:   kernelW,
		mode:      mode,
		peephole:  peephole,
		tiedBias:  tiedBias,
	}
	padH := kernelH / 2
	padW := kernelW / 2
	withBias := !tiedBias
	for gate := 0; gate < gateTotal; gate++ {
		c.gates[gate] = convGate{
			fromInput:  NewConv2d(inputDim, hiddenDim, kernelH, kernelW, 1, 1, padH, padW, withBias),
			fromHidden: NewConv2d(hiddenDim, hiddenDim, kernelH, kernelW, 1, 1, padH, padW, withBias),
		}
		if gate != gateCell {
			p := tensor.Ones(hiddenDim, height, width)
			p.SetRequiresGrad(peephole)
			c.peep[gate] = p
		}
		b := tensor.Zeros(hiddenDim, 1, 1)
		b.SetRequiresGrad(tiedBias)
		c.tied[gate] = b
	}
	return c
}

// Step advances the cell by one time step, returning the next hidden and
// cell states. Both returned tensors have shape [batch, hidden, h, w].
func (c *ConvLSTMCell) Step(x, h, cs *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	if c.mode != GatingMultiply && c.mode != GatingSubtract {
		return nil, nil, fmt.Errorf("unknown gating mode %v, valid modes are \"mul\" and \"sub\"", c.mode)
	}
	if err := c.checkFrame(x); err != nil {
		return nil, nil, err
	}
	batch := x.Shape()[0]
	if err := c.checkState("hidden state", h, batch); err != nil {
		return nil, nil, err
	}
	if err := c.checkState("cell state", cs, batch); err != nil {
		return nil, nil, err
	}

	preI, err := c.gatePre(gateInput, x, h, cs)
	if err != nil {
		return nil, nil, err
	}
	inputGate := tensor.HardSigmoid(preI)

	preF, err := c.gatePre(gateForget, x, h, cs)
	if err != nil {
		return nil, nil, err
	}
	forgetGate := tensor.HardSigmoid(preF)

	preG, err := c.gatePre(gateCell, x, h, nil)
	if err != nil {
		return nil, nil, err
	}

	keep, err := tensor.Mul(forgetGate, cs)
	if err != nil {
		return nil, nil, err
	}

	var nextC *tensor.Tensor
	switch c.mode {
	case GatingMultiply:
		write, err := tensor.Mul(inputGate, tensor.Tanh(preG))
		if err != nil {
			return nil, nil, err
		}
		nextC, err = tensor.Add(keep, write)
		if err != nil {
			return nil, nil, err
		}
	case GatingSubtract:
		grown, err := tensor.Add(keep, tensor.HardSigmoid(preG))
		if err != nil {
			return nil, nil, err
		}
		// candidate - i, never the reverse
		nextC, err = tensor.Sub(grown, inputGate)
		if err != nil {
			return nil, nil, err
		}
	}

	preO, err := c.gatePre(gateOutput, x, h, nextC)
	if err != nil {
		return nil, nil, err
	}
	outputGate := tensor.HardSigmoid(preO)

	var nextH *tensor.Tensor
	if c.mode == GatingMultiply {
		nextH, err = tensor.Mul(outputGate, tensor.Tanh(nextC))
	} else {
		nextH, err = tensor.Sub(tensor.HardSigmoid(nextC), outputGate)
	}
	if err != nil {
		return nil, nil, err
	}
	return nextH, nextC, nil
}

// gatePre computes conv(x) + conv(h) [+ peep*peepState] + tiedBias for one
// gate. peepState is the cell state the gate peeks at; nil for the
// candidate gate, which has no peephole.
func (c *ConvLSTMCell) gatePre(gate int, x, h, peepState *tensor.Tensor) (*tensor.Tensor, error) {
	fromX, err := c.gates[gate].fromInput.Forward(x)
	if err != nil {
		return nil, err
	}
	fromH, err := c.gates[gate].fromHidden.Forward(h)
	if err != nil {
		return nil, err
	}
	pre, err := tensor.Add(fromX, fromH)
	if err != nil {
		return nil, err
	}
	if c.peep[gate] != nil && peepState != nil {
		peeked, err := tensor.MulBroadcast(peepState, c.peep[gate])
		if err != nil {
			return nil, err
		}
		pre, err = tensor.Add(pre, peeked)
		if err != nil {
			return nil, err
		}
	}
	return tensor.AddBroadcast(pre, c.tied[gate])
}

// InitHidden returns zero hidden and cell states shaped
// [batch, hidden, h, w], placed on the device of the cell's parameters.
// It can be called once per independent sequence, with any batch size.
func (c *ConvLSTMCell) InitHidden(batch int) (*tensor.Tensor, *tensor.Tensor) {
	dev := c.gates[gateInput].fromInput.Weight().Device()
	h := tensor.ZerosOn(dev, batch, c.hiddenDim, c.height, c.width)
	cs := tensor.ZerosOn(dev, batch, c.hiddenDim, c.height, c.width)
	return h, cs
}

// Forward runs a single step from a fresh zero state and returns the new
// hidden state. Use Step to thread state across a sequence.
func (c *ConvLSTMCell) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if err := c.checkFrame(input); err != nil {
		return nil, err
	}
	h, cs := c.InitHidden(input.Shape()[0])
	next, _, err := c.Step(input, h, cs)
	return next, err
}

func (c *ConvLSTMCell) Parameters() []*tensor.Tensor {
	params := make([]*tensor.Tensor, 0, gateTotal*6)
	for gate := 0; gate < gateTotal; gate++ {
		params = append(params, c.gates[gate].fromInput.Parameters()...)
		params = append(params, c.gates[gate].fromHidden.Parameters()...)
	}
	if c.peephole {
		for gate := 0; gate < gateTotal; gate++ {
			if c.peep[gate] != nil {
				params = append(params, c.peep[gate])
			}
		}
	}
	if c.tiedBias {
		for gate := 0; gate < gateTotal; gate++ {
			params = append(params, c.tied[gate])
		}
	}
	return params
}

func (c *ConvLSTMCell) ZeroGrad() {
	for _, p := range c.Parameters() {
		p.ZeroGrad()
	}
}

func (c *ConvLSTMCell) Mode() GatingMode {
	return c.mode
}

func (c *ConvLSTMCell) HiddenDim() int {
	return c.hiddenDim
}

func (c *ConvLSTMCell) InputDim() int {
	return c.inputDim
}

func (c *ConvLSTMCell) InputSize() (int, int) {
	return c.height, c.width
}

func (c *ConvLSTMCell) checkFrame(x *tensor.Tensor) error {
	shape := x.Shape()
	if len(shape) != 4 {
		return fmt.Errorf("input frame: rank = %d, want 4 [batch, channels, height, width]", len(shape))
	}
	if shape[1] != c.inputDim {
		return fmt.Errorf("input frame: channels = %d, want %d", shape[1], c.inputDim)
	}
	if shape[2] != c.height || shape[3] != c.width {
		return fmt.Errorf("input frame: spatial size = %dx%d, want %dx%d", shape[2], shape[3], c.height, c.width)
	}
	return nil
}

func (c *ConvLSTMCell) checkState(name string, s *tensor.Tensor, batch int) error {
	shape := s.Shape()
	if len(shape) != 4 {
		return fmt.Errorf("%s: rank = %d, want 4 [batch, channels, height, width]", name, len(shape))
	}
	if shape[0] != batch {
		return fmt.Errorf("%s: batch = %d, want %d to match the input frame", name, shape[0], batch)
	}
	if shape[1] != c.hiddenDim {
		return fmt.Errorf("%s: channels = %d, want %d", name, shape[1], c.hiddenDim)
	}
	if shape[2] != c.height || shape[3] != c.width {
		return fmt.Errorf("%s: spatial size = %dx%d, want %dx%d", name, shape[2], shape[3], c.height, c.width)
	}
	return nil
}
