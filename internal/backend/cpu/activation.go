package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/unet/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.activation("relu", x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// ELU computes x for x > 0 and alpha*(exp(x)-1) otherwise.
func (cpu *CPUBackend) ELU(x *tensor.RawTensor, alpha float64) *tensor.RawTensor {
	return cpu.activation("elu", x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return alpha * math.Expm1(v)
	})
}

// Sigmoid computes 1/(1+exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.activation("sigmoid", x, func(v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	})
}

// Tanh computes the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.activation("tanh", x, math.Tanh)
}

func (cpu *CPUBackend) activation(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		unaryInto(x.AsFloat32(), result.AsFloat32(), func(v float32) float32 { return float32(f(float64(v))) })
	case tensor.Float64:
		unaryInto(x.AsFloat64(), result.AsFloat64(), f)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}
	return result
}

// Softmax computes softmax along the specified dimension.
// Softmax(x_i) = exp(x_i) / sum(exp(x_j)) for all j in dimension.
//
// For NCHW feature maps dim=1 yields a per-pixel class distribution.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dimension %d out of range for tensor of rank %d", dim, ndim))
	}

	result := tensor.MustRaw(shape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		softmax(x.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		softmax(x.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}

	return result
}

// softmax walks every (outer, inner) pair; the dim axis is strided by inner.
func softmax[T tensor.DType](src, dst []T, shape tensor.Shape, dim int) {
	outer, inner := splitAt(shape, dim)
	size := shape[dim]

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in

			// Subtract the max for numerical stability
			maxVal := math.Inf(-1)
			for i := 0; i < size; i++ {
				maxVal = math.Max(maxVal, float64(src[base+i*inner]))
			}

			var total float64
			for i := 0; i < size; i++ {
				e := math.Exp(float64(src[base+i*inner]) - maxVal)
				dst[base+i*inner] = T(e)
				total += e
			}
			for i := 0; i < size; i++ {
				dst[base+i*inner] = T(float64(dst[base+i*inner]) / total)
			}
		}
	}
}
