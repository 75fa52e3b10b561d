package tensor

import (
	"errors"

	"github.com/fumitoshi0524/ixeoriVision/internal/parallel"
)

// Conv2D convolves input with weight and an optional bias.
// Input shape: [batch, in_channels, in_h, in_w]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape (optional): [out_channels]
func Conv2D(input, weight, bias *Tensor, strideH, strideW, padH, padW int) (*Tensor, error) {
	if len(input.shape) != 4 {
		return nil, errors.New("Conv2D expects input shape [batch, channels, height, width]")
	}
	if len(weight.shape) != 4 {
		return nil, errors.New("Conv2D expects weight shape [out_channels, in_channels, kernel_h, kernel_w]")
	}
	if bias != nil && len(bias.shape) != 1 {
		return nil, errors.New("bias for Conv2D must be rank 1")
	}
	if err := ensureSameDevice(input, weight, bias); err != nil {
		return nil, err
	}

	batch, inChannels, inH, inW := input.shape[0], input.shape[1], input.shape[2], input.shape[3]
	outChannels, kernelH, kernelW := weight.shape[0], weight.shape[2], weight.shape[3]
	if weight.shape[1] != inChannels {
		return nil, errors.New("kernel in_channels mismatch")
	}
	if strideH <= 0 || strideW <= 0 {
		return nil, errors.New("stride must be positive")
	}
	outH := (inH+2*padH-kernelH)/strideH + 1
	outW := (inW+2*padW-kernelW)/strideW + 1
	if outH <= 0 || outW <= 0 {
		return nil, errors.New("invalid output size")
	}

	out := ZerosOn(input.device, batch, outChannels, outH, outW)
	parallel.For(batch, func(start, end int) {
		for n := start; n < end; n++ {
			for oc := 0; oc < outChannels; oc++ {
				for oh := 0; oh < outH; oh++ {
					for ow := 0; ow < outW; ow++ {
						acc := 0.0
						for ic := 0; ic < inChannels; ic++ {
							for kh := 0; kh < kernelH; kh++ {
								ih := oh*strideH - padH + kh
								if ih < 0 || ih >= inH {
									continue
								}
								for kw := 0; kw < kernelW; kw++ {
									iw := ow*strideW - padW + kw
									if iw < 0 || iw >= inW {
										continue
									}
									acc += input.data[((n*inChannels+ic)*inH+ih)*inW+iw] *
										weight.data[((oc*inChannels+ic)*kernelH+kh)*kernelW+kw]
								}
							}
						}
						if bias != nil {
							acc += bias.data[oc]
						}
						out.data[((n*outChannels+oc)*outH+oh)*outW+ow] = acc
					}
				}
			}
		}
	})

	requiresGrad := input.requiresGrad || weight.requiresGrad || (bias != nil && bias.requiresGrad)
	if !requiresGrad {
		return out, nil
	}

	parents := make([]*Tensor, 0, 3)
	if input.requiresGrad {
		parents = append(parents, input)
	}
	if weight.requiresGrad {
		parents = append(parents, weight)
	}
	if bias != nil && bias.requiresGrad {
		parents = append(parents, bias)
	}
	out.requiresGrad = true
	out.parents = parents
	out.node = &node{
		backward: func(grad *Tensor, grads map[*Tensor]*Tensor) {
			var gInput, gWeight *Tensor
			if input.requiresGrad {
				gInput = Zeros(input.shape...)
			}
			if weight.requiresGrad {
				gWeight = Zeros(weight.shape...)
			}
			var gBias *Tensor
			if bias != nil && bias.requiresGrad {
				gBias = Zeros(bias.shape...)
			}
			for n := 0; n < batch; n++ {
				for oc := 0; oc < outChannels; oc++ {
					for oh := 0; oh < outH; oh++ {
						for ow := 0; ow < outW; ow++ {
							gVal := grad.data[((n*outChannels+oc)*outH+oh)*outW+ow]
							if gBias != nil {
								gBias.data[oc] += gVal
							}
							if gInput == nil && gWeight == nil {
								continue
							}
							for ic := 0; ic < inChannels; ic++ {
								for kh := 0; kh < kernelH; kh++ {
									ih := oh*strideH - padH + kh
									if ih < 0 || ih >= inH {
										continue
									}
									for kw := 0; kw < kernelW; kw++ {
										iw := ow*strideW - padW + kw
										if iw < 0 || iw >= inW {
											continue
										}
										inputIdx := ((n*inChannels+ic)*inH+ih)*inW + iw
										weightIdx := ((oc*inChannels+ic)*kernelH+kh)*kernelW + kw
										if gInput != nil {
											gInput.data[inputIdx] += weight.data[weightIdx] * gVal
										}
										if gWeight != nil {
											gWeight.data[weightIdx] += input.data[inputIdx] * gVal
										}
									}
								}
							}
						}
					}
				}
			}
			if gInput != nil {
				accumulate(grads, input, gInput)
			}
			if gWeight != nil {
				accumulate(grads, weight, gWeight)
			}
			if gBias != nil {
				accumulate(grads, bias, gBias)
			}
		},
	}
	return out, nil
}
