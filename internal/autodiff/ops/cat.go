package ops

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// CatOp represents a concatenation operation along a dimension.
//
// Forward: output = Cat([input1, input2, ...], dim)
//
// Backward: the output gradient is split along dim at the input boundaries
// and each input receives its own slice.
//
// Example (U-Net skip merge along channels):
//
//	inputs: up[1,8,H,W], skip[1,8,H,W]
//	output: [1,16,H,W]
//	grad_up = grad[:, 0:8], grad_skip = grad[:, 8:16]
type CatOp struct {
	inputs []*tensor.RawTensor
	dim    int
	output *tensor.RawTensor
}

// NewCatOp creates a new cat operation.
func NewCatOp(inputs []*tensor.RawTensor, dim int, output *tensor.RawTensor) *CatOp {
	if dim < 0 {
		dim += len(output.Shape())
	}
	return &CatOp{
		inputs: inputs,
		dim:    dim,
		output: output,
	}
}

// Inputs returns the input tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward splits the output gradient into one slice per input.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))

	offset := 0
	for i, in := range op.inputs {
		grads[i] = tensor.MustRaw(in.Shape(), outputGrad.DType(), in.Device())

		switch outputGrad.DType() {
		case tensor.Float32:
			narrow(outputGrad.AsFloat32(), grads[i].AsFloat32(), outputGrad.Shape(), op.dim, offset, in.Shape()[op.dim])
		case tensor.Float64:
			narrow(outputGrad.AsFloat64(), grads[i].AsFloat64(), outputGrad.Shape(), op.dim, offset, in.Shape()[op.dim])
		default:
			panic(fmt.Sprintf("cat backward: unsupported dtype %s", outputGrad.DType()))
		}

		offset += in.Shape()[op.dim]
	}

	return grads
}

// narrow copies src[..., start:start+length, ...] along dim into dst.
func narrow[T tensor.DType](src, dst []T, shape tensor.Shape, dim, start, length int) {
	outer, inner := splitAt(shape, dim)
	srcRow := shape[dim] * inner
	run := length * inner
	for o := 0; o < outer; o++ {
		copy(dst[o*run:(o+1)*run], src[o*srcRow+start*inner:o*srcRow+start*inner+run])
	}
}
