package tensor

import (
	"github.com/fumitoshi0524/ixeoriVision/internal/parallel"
)

func Add(a, b *Tensor) (*Tensor, error) {
	if err := ensureSameDevice(a, b); err != nil {
		return nil, err
	}
	if err := ensureSameShape(a, b); err != nil {
		return nil, err
	}
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] + b.data[i]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		if a.requiresGrad {
			accumulate(grads, a, grad)
		}
		if b.requiresGrad {
			accumulate(grads, b, grad)
		}
	})
	return out, nil
}

func Sub(a, b *Tensor) (*Tensor, error) {
	if err := ensureSameDevice(a, b); err != nil {
		return nil, err
	}
	if err := ensureSameShape(a, b); err != nil {
		return nil, err
	}
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] - b.data[i]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		if a.requiresGrad {
			accumulate(grads, a, grad)
		}
		if b.requiresGrad {
			neg := grad.Clone()
			neg.Scale(-1)
			accumulate(grads, b, neg)
		}
	})
	return out, nil
}

func Mul(a, b *Tensor) (*Tensor, error) {
	if err := ensureSameDevice(a, b); err != nil {
		return nil, err
	}
	if err := ensureSameShape(a, b); err != nil {
		return nil, err
	}
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] * b.data[i]
		}
	})
	attachBinaryGrad(out, a, b, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		if a.requiresGrad {
			accumulate(grads, a, hadamard(grad, b.Detach()))
		}
		if b.requiresGrad {
			accumulate(grads, b, hadamard(grad, a.Detach()))
		}
	})
	return out, nil
}

func MulScalar(a *Tensor, value float64) *Tensor {
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] * value
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		scaled := grad.Clone()
		scaled.Scale(value)
		accumulate(grads, a, scaled)
	})
	return out
}

func Sum(a *Tensor) *Tensor {
	val := 0.0
	for _, v := range a.data {
		val += v
	}
	out := MustNew([]float64{val}, 1)
	out.device = a.device
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		accumulate(grads, a, Full(grad.data[0], a.shape...))
	})
	return out
}

func Mean(a *Tensor) *Tensor {
	scale := 1.0 / float64(a.Numel())
	val := 0.0
	for _, v := range a.data {
		val += v
	}
	out := MustNew([]float64{val * scale}, 1)
	out.device = a.device
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		accumulate(grads, a, Full(grad.data[0]*scale, a.shape...))
	})
	return out
}

func (t *Tensor) Scale(v float64) {
	parallel.For(len(t.data), func(start, end int) {
		for i := start; i < end; i++ {
			t.data[i] *= v
		}
	})
}

func hadamard(a, b *Tensor) *Tensor {
	if err := ensureSameShape(a, b); err != nil {
		panic(err)
	}
	out := Zeros(a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = a.data[i] * b.data[i]
		}
	})
	return out
}
