package main

import (
	"fmt"

	"github.com/fumitoshi0524/ixeoriVision/nn"
	"github.com/fumitoshi0524/ixeoriVision/tensor"
)

func main() {
	mode, err := nn.ParseGatingMode("mul")
	if err != nil {
		panic(err)
	}
	seqLen := 5
	batch := 4
	inDim := 3
	hidDim := 8
	height, width := 16, 16

	cell := nn.NewConvLSTMCell(height, width, inDim, hidDim, 3, 3, mode, true, true)
	layer := nn.NewConvLSTM(cell)

	frames := tensor.Rand(seqLen, batch, inDim, height, width)
	outputs, hFinal, cFinal, err := layer.ForwardWithState(frames, nil, nil)
	if err != nil {
		panic(err)
	}

	fmt.Printf("outputs %v\n", outputs.Shape())
	steps, err := tensor.SplitFrames(outputs)
	if err != nil {
		panic(err)
	}
	for i, step := range steps {
		fmt.Printf("step %d mean hidden %.4f\n", i, tensor.Mean(step).Data()[0])
	}
	fmt.Printf("final hidden %v final cell %v\n", hFinal.Shape(), cFinal.Shape())

	loss := tensor.Mean(outputs)
	if err := loss.Backward(); err != nil {
		panic(err)
	}
	withGrad := 0
	for _, p := range cell.Parameters() {
		if p.Grad() != nil {
			withGrad++
		}
	}
	fmt.Printf("parameters with gradients: %d of %d\n", withGrad, len(cell.Parameters()))
}
