package tensor

import (
	"errors"

	"github.com/fumitoshi0524/ixeoriVision/internal/parallel"
)

// SplitFrames slices a [steps, ...] tensor along its leading axis into
// per-step tensors of shape [...]. Each frame is a copy; gradients flow back
// into the source at the frame's slot.
func SplitFrames(t *Tensor) ([]*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, errors.New("SplitFrames requires rank >= 2 tensor")
	}
	steps := t.shape[0]
	frameShape := append([]int(nil), t.shape[1:]...)
	inner := len(t.data) / steps
	frames := make([]*Tensor, steps)
	for s := 0; s < steps; s++ {
		frame := MustNew(append([]float64(nil), t.data[s*inner:(s+1)*inner]...), frameShape...)
		frame.device = t.device
		slot := s
		attachUnaryGrad(frame, t, func(grad *Tensor, grads map[*Tensor]*Tensor) {
			gFull := Zeros(t.shape...)
			copy(gFull.data[slot*inner:(slot+1)*inner], grad.data)
			accumulate(grads, t, gFull)
		})
		frames[s] = frame
	}
	return frames, nil
}

// StackFrames stacks equally-shaped tensors into a single [len(frames), ...]
// tensor along a new leading axis.
func StackFrames(frames ...*Tensor) (*Tensor, error) {
	if len(frames) == 0 {
		return nil, errors.New("StackFrames requires at least one frame")
	}
	base := frames[0]
	for _, f := range frames[1:] {
		if err := ensureSameShape(base, f); err != nil {
			return nil, err
		}
		if err := ensureSameDevice(base, f); err != nil {
			return nil, err
		}
	}
	inner := len(base.data)
	outShape := append([]int{len(frames)}, base.shape...)
	out := ZerosOn(base.device, outShape...)
	parallel.For(len(frames), func(start, end int) {
		for s := start; s < end; s++ {
			copy(out.data[s*inner:(s+1)*inner], frames[s].data)
		}
	})
	requires := false
	for _, f := range frames {
		if f.requiresGrad {
			requires = true
			break
		}
	}
	if requires {
		out.requiresGrad = true
		parents := make([]*Tensor, 0, len(frames))
		for _, f := range frames {
			if f.requiresGrad {
				parents = append(parents, f)
			}
		}
		out.parents = parents
		out.node = &node{
			backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
				for s, f := range frames {
					if !f.requiresGrad {
						continue
					}
					g := Zeros(f.shape...)
					copy(g.data, grad.data[s*inner:(s+1)*inner])
					accumulate(grads, f, g)
				}
			},
		}
	}
	return out, nil
}
