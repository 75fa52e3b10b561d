package nn

import (
	"fmt"

	"github.com/fumitoshi0524/ixeoriVision/tensor"
)

// ConvLSTM runs a ConvLSTMCell over a time-ordered frame sequence shaped
// [seq, batch, channels, height, width], threading the state pair across
// steps.
type ConvLSTM struct {
	cell *ConvLSTMCell
}

func NewConvLSTM(cell *ConvLSTMCell) *ConvLSTM {
	return &ConvLSTM{cell: cell}
}

func (l *ConvLSTM) Cell() *ConvLSTMCell {
	return l.cell
}

func (l *ConvLSTM) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out, _, _, err := l.ForwardWithState(input, nil, nil)
	return out, err
}

// ForwardWithState feeds each frame through the cell, starting from the
// given state pair (zero state when hx or cx is nil). It returns the hidden
// states of every step stacked to [seq, batch, hidden, h, w], plus the
// final hidden and cell states.
func (l *ConvLSTM) ForwardWithState(input, hx, cx *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor, error) {
	shape := input.Shape()
	if len(shape) != 5 {
		return nil, nil, nil, fmt.Errorf("frame sequence: rank = %d, want 5 [seq, batch, channels, height, width]", len(shape))
	}
	batch := shape[1]
	if hx == nil || cx == nil {
		zh, zc := l.cell.InitHidden(batch)
		if hx == nil {
			hx = zh
		}
		if cx == nil {
			cx = zc
		}
	}
	frames, err := tensor.SplitFrames(input)
	if err != nil {
		return nil, nil, nil, err
	}
	currentH := hx
	currentC := cx
	outputs := make([]*tensor.Tensor, 0, len(frames))
	for _, frame := range frames {
		currentH, currentC, err = l.cell.Step(frame, currentH, currentC)
		if err != nil {
			return nil, nil, nil, err
		}
		outputs = append(outputs, currentH)
	}
	stacked, err := tensor.StackFrames(outputs...)
	if err != nil {
		return nil, nil, nil, err
	}
	return stacked, currentH, currentC, nil
}

func (l *ConvLSTM) Parameters() []*tensor.Tensor {
	return l.cell.Parameters()
}

func (l *ConvLSTM) ZeroGrad() {
	l.cell.ZeroGrad()
}
