package tensor

import (
	"errors"

	"github.com/fumitoshi0524/ixeoriVision/internal/parallel"
)

// Broadcast ops pair a full-rank tensor with a lower-rank (or 1-dim) one,
// right-aligning shapes the way elementwise broadcasting usually does.
// They cover the two patterns recurrent cells need: a [channels, h, w]
// weight applied across a batch, and a [channels, 1, 1] bias applied across
// batch and spatial dims.

// MulBroadcast multiplies a elementwise by b, broadcasting b over a.
// Each dimension of b, aligned to the trailing dimensions of a, must either
// match a's or be 1; missing leading dimensions broadcast.
func MulBroadcast(a, b *Tensor) (*Tensor, error) {
	offsets, err := broadcastOffsets(a, b)
	if err != nil {
		return nil, err
	}
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] * b.data[offsets[i]]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		if a.requiresGrad {
			gA := Zeros(a.shape...)
			parallel.For(len(gA.data), func(start, end int) {
				for i := start; i < end; i++ {
					gA.data[i] = grad.data[i] * b.data[offsets[i]]
				}
			})
			accumulate(grads, a, gA)
		}
		if b.requiresGrad {
			gB := Zeros(b.shape...)
			for i := range grad.data {
				gB.data[offsets[i]] += grad.data[i] * a.data[i]
			}
			accumulate(grads, b, gB)
		}
	})
	return out, nil
}

// AddBroadcast adds b to a elementwise, broadcasting b over a with the same
// alignment rules as MulBroadcast.
func AddBroadcast(a, b *Tensor) (*Tensor, error) {
	offsets, err := broadcastOffsets(a, b)
	if err != nil {
		return nil, err
	}
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] + b.data[offsets[i]]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		if a.requiresGrad {
			accumulate(grads, a, grad)
		}
		if b.requiresGrad {
			gB := Zeros(b.shape...)
			for i := range grad.data {
				gB.data[offsets[i]] += grad.data[i]
			}
			accumulate(grads, b, gB)
		}
	})
	return out, nil
}

// broadcastOffsets maps every linear index of a onto the corresponding
// linear index of b under right-aligned broadcasting.
func broadcastOffsets(a, b *Tensor) ([]int, error) {
	if err := ensureSameDevice(a, b); err != nil {
		return nil, err
	}
	rank := len(a.shape)
	off := rank - len(b.shape)
	if off < 0 {
		return nil, errors.New("broadcast operand rank exceeds target rank")
	}
	strides := make([]int, rank)
	for i := rank - 1; i >= 0; i-- {
		if i < off {
			strides[i] = 0
			continue
		}
		switch b.shape[i-off] {
		case a.shape[i]:
			strides[i] = b.strides[i-off]
		case 1:
			strides[i] = 0
		default:
			return nil, errors.New("incompatible broadcast dimensions")
		}
	}
	offsets := make([]int, len(a.data))
	parallel.For(len(a.data), func(start, end int) {
		for i := start; i < end; i++ {
			rem := i
			idx := 0
			for d := 0; d < rank; d++ {
				idx += (rem / a.strides[d]) * strides[d]
				rem %= a.strides[d]
			}
			offsets[i] = idx
		}
	})
	return offsets, nil
}
