package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/unet/internal/parallel"
	"github.com/born-ml/unet/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	n, c, h, w := maxpool2dGeom(input, kernelSize, stride)
	hOut := (h-kernelSize)/stride + 1
	wOut := (w-kernelSize)/stride + 1

	output := tensor.MustRaw(tensor.Shape{n, c, hOut, wOut}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		maxpool2d[float32](output, input, n, c, h, w, kernelSize, stride, cpu.parallel)
	case tensor.Float64:
		maxpool2d[float64](output, input, n, c, h, w, kernelSize, stride, cpu.parallel)
	default:
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// MaxPool2DBackward routes each output gradient to the input position that
// held the window maximum. maxIndices holds one flat input index per output
// element; every other input position receives zero.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int, kernelSize, stride int) *tensor.RawTensor {
	maxpool2dGeom(input, kernelSize, stride)
	if len(maxIndices) != grad.NumElements() {
		panic(fmt.Sprintf("maxpool2d backward: maxIndices length %d != grad elements %d", len(maxIndices), grad.NumElements()))
	}

	inputGrad := tensor.MustRaw(input.Shape(), grad.DType(), cpu.device)

	switch grad.DType() {
	case tensor.Float32:
		scatterAdd(tensor.As[float32](inputGrad), tensor.As[float32](grad), maxIndices)
	case tensor.Float64:
		scatterAdd(tensor.As[float64](inputGrad), tensor.As[float64](grad), maxIndices)
	default:
		panic(fmt.Sprintf("maxpool2d backward: unsupported dtype %s", grad.DType()))
	}

	return inputGrad
}

func maxpool2dGeom(input *tensor.RawTensor, kernelSize, stride int) (n, c, h, w int) {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(input.Shape())))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	n, c, h, w = input.Shape().NCHW()
	if kernelSize > h || kernelSize > w {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, h, w))
	}
	return n, c, h, w
}

func maxpool2d[T tensor.DType](output, input *tensor.RawTensor, n, c, h, w, kernelSize, stride int, cfg parallel.Config) {
	in := tensor.As[T](input)
	out := tensor.As[T](output)
	hOut, wOut := output.Shape()[2], output.Shape()[3]

	parallel.ForBatch(n, c, func(b, ch int) {
		plane := in[(b*c+ch)*h*w : (b*c+ch+1)*h*w]
		dst := out[(b*c+ch)*hOut*wOut : (b*c+ch+1)*hOut*wOut]

		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				maxVal := T(math.Inf(-1))
				for kh := 0; kh < kernelSize; kh++ {
					row := plane[(oh*stride+kh)*w:]
					for kw := 0; kw < kernelSize; kw++ {
						if v := row[ow*stride+kw]; v > maxVal {
							maxVal = v
						}
					}
				}
				dst[oh*wOut+ow] = maxVal
			}
		}
	}, cfg)
}

// scatterAdd accumulates src[i] into dst[indices[i]]. Overlapping windows
// may select the same input position, so contributions are summed.
func scatterAdd[T tensor.DType](dst, src []T, indices []int) {
	for i, idx := range indices {
		dst[idx] += src[i]
	}
}
