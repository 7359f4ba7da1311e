package ops

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// MaxPool2DOp records a 2D max pooling operation for autodiff.
//
// Forward: output = MaxPool2D(input, kernelSize, stride)
//
// Backward: the gradient flows only to the position that held the window
// maximum; every other position receives zero. The argmax positions are
// found once when the op is recorded.
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	maxIndices []int
	kernelSize int
	stride     int
}

// NewMaxPool2DOp creates a new MaxPool2D operation.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{
		input:      input,
		output:     output,
		maxIndices: computeMaxIndices(input, output, kernelSize, stride),
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// computeMaxIndices finds the flat input index of each window maximum.
// Ties resolve to the first position in row-major window order.
func computeMaxIndices(input, output *tensor.RawTensor, kernelSize, stride int) []int {
	maxIndices := make([]int, output.NumElements())

	switch input.DType() {
	case tensor.Float32:
		argmaxWindows(input.AsFloat32(), maxIndices, input.Shape(), output.Shape(), kernelSize, stride)
	case tensor.Float64:
		argmaxWindows(input.AsFloat64(), maxIndices, input.Shape(), output.Shape(), kernelSize, stride)
	default:
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %s", input.DType()))
	}

	return maxIndices
}

func argmaxWindows[T tensor.DType](data []T, maxIndices []int, inShape, outShape tensor.Shape, kernelSize, stride int) {
	n, c, h, w := inShape.NCHW()
	hOut, wOut := outShape[2], outShape[3]

	outIdx := 0
	for plane := 0; plane < n*c; plane++ {
		base := plane * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				maxPos := base + oh*stride*w + ow*stride
				maxVal := data[maxPos]
				for kh := 0; kh < kernelSize; kh++ {
					for kw := 0; kw < kernelSize; kw++ {
						idx := base + (oh*stride+kh)*w + ow*stride + kw
						if data[idx] > maxVal {
							maxVal = data[idx]
							maxPos = idx
						}
					}
				}
				maxIndices[outIdx] = maxPos
				outIdx++
			}
		}
	}
}

// Inputs returns the input tensors.
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes the output gradient to the recorded argmax positions.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices, op.kernelSize, op.stride),
	}
}
