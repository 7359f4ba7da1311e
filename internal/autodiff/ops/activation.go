package ops

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// activationOp is shared by the element-wise activations: each keeps its
// input and output and differentiates point by point.
type activationOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensors.
func (op *activationOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *activationOp) Output() *tensor.RawTensor {
	return op.output
}

// ReLUOp represents ReLU: output = max(0, x).
//
// Backward: grad_input = grad_output where x > 0, else 0.
type ReLUOp struct{ activationOp }

// NewReLUOp creates a new ReLU operation.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{activationOp{input, output}}
}

// Backward computes the ReLU gradient.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{pointwiseGrad(outputGrad, op.input, op.output, func(g, x, _ float64) float64 {
		if x > 0 {
			return g
		}
		return 0
	})}
}

// ELUOp represents ELU: output = x for x > 0, alpha*(exp(x)-1) otherwise.
//
// Backward: dELU/dx = 1 for x > 0, else alpha*exp(x) = output + alpha.
type ELUOp struct {
	activationOp
	alpha float64
}

// NewELUOp creates a new ELU operation.
func NewELUOp(input, output *tensor.RawTensor, alpha float64) *ELUOp {
	return &ELUOp{activationOp{input, output}, alpha}
}

// Backward computes the ELU gradient from the cached output.
func (op *ELUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{pointwiseGrad(outputGrad, op.input, op.output, func(g, x, y float64) float64 {
		if x > 0 {
			return g
		}
		return g * (y + op.alpha)
	})}
}

// SigmoidOp represents σ(x) = 1 / (1 + exp(-x)).
//
// Backward: dσ/dx = σ(x) * (1 - σ(x)), taken from the cached output.
type SigmoidOp struct{ activationOp }

// NewSigmoidOp creates a new sigmoid operation.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{activationOp{input, output}}
}

// Backward computes the sigmoid gradient.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{pointwiseGrad(outputGrad, op.input, op.output, func(g, _, y float64) float64 {
		return g * y * (1 - y)
	})}
}

// TanhOp represents tanh(x).
//
// Backward: dtanh/dx = 1 - tanh²(x).
type TanhOp struct{ activationOp }

// NewTanhOp creates a new tanh operation.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{activationOp{input, output}}
}

// Backward computes the tanh gradient.
func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{pointwiseGrad(outputGrad, op.input, op.output, func(g, _, y float64) float64 {
		return g * (1 - y*y)
	})}
}

// SoftmaxOp represents softmax along an arbitrary dimension.
//
// The Jacobian of softmax is ∂s_i/∂x_j = s_i * (δ_ij - s_j), so along dim:
//
//	∂L/∂x_j = s_j * (∂L/∂s_j - Σ_i ∂L/∂s_i * s_i)
type SoftmaxOp struct {
	activationOp
	dim int
}

// NewSoftmaxOp creates a new softmax operation.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &SoftmaxOp{activationOp{input, output}, dim}
}

// Backward computes the softmax gradient.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	inputGrad := tensor.MustRaw(op.input.Shape(), outputGrad.DType(), op.input.Device())

	switch outputGrad.DType() {
	case tensor.Float32:
		softmaxBackward(op.output.AsFloat32(), outputGrad.AsFloat32(), inputGrad.AsFloat32(), op.input.Shape(), op.dim)
	case tensor.Float64:
		softmaxBackward(op.output.AsFloat64(), outputGrad.AsFloat64(), inputGrad.AsFloat64(), op.input.Shape(), op.dim)
	default:
		panic(fmt.Sprintf("softmax backward: unsupported dtype %s", outputGrad.DType()))
	}

	return []*tensor.RawTensor{inputGrad}
}

func softmaxBackward[T tensor.DType](s, g, dx []T, shape tensor.Shape, dim int) {
	outer, inner := splitAt(shape, dim)
	size := shape[dim]

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in

			var dotProduct T
			for i := 0; i < size; i++ {
				dotProduct += g[base+i*inner] * s[base+i*inner]
			}
			for i := 0; i < size; i++ {
				idx := base + i*inner
				dx[idx] = s[idx] * (g[idx] - dotProduct)
			}
		}
	}
}
