package tensor

import (
	"math"

	"github.com/fumitoshi0524/ixeoriVision/internal/parallel"
)

func Sigmoid(a *Tensor) *Tensor {
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = 1 / (1 + math.Exp(-a.data[i]))
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		factor := Zeros(out.shape...)
		parallel.For(len(factor.data), func(start, end int) {
			for i := start; i < end; i++ {
				s := out.data[i]
				factor.data[i] = s * (1 - s)
			}
		})
		accumulate(grads, a, hadamard(grad, factor))
	})
	return out
}

func Tanh(a *Tensor) *Tensor {
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			out.data[i] = math.Tanh(a.data[i])
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		factor := Zeros(out.shape...)
		parallel.For(len(factor.data), func(start, end int) {
			for i := start; i < end; i++ {
				v := out.data[i]
				factor.data[i] = 1 - v*v
			}
		})
		accumulate(grads, a, hadamard(grad, factor))
	})
	return out
}

// HardSigmoid is the piecewise-linear sigmoid approximation
// clamp(x*0.2 + 0.5, 0, 1). It saturates exactly at 0 and 1 and has slope
// 0.2 on the open interval (-2.5, 2.5).
func HardSigmoid(a *Tensor) *Tensor {
	out := ZerosOn(a.device, a.shape...)
	parallel.For(len(out.data), func(start, end int) {
		for i := start; i < end; i++ {
			v := a.data[i]*0.2 + 0.5
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			out.data[i] = v
		}
	})
	attachUnaryGrad(out, a, func(grad *Tensor, grads map[*Tensor]*Tensor) {
		factor := Zeros(out.shape...)
		parallel.For(len(factor.data), func(start, end int) {
			for i := start; i < end; i++ {
				if out.data[i] > 0 && out.data[i] < 1 {
					factor.data[i] = 0.2
				}
			}
		})
		accumulate(grads, a, hadamard(grad, factor))
	})
	return out
}
