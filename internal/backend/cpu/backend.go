// Package cpu implements the CPU backend.
//
// Element-wise operations are plain Go loops. Convolutions lower to
// im2col + GEMM and run the matrix products through gonum's BLAS, one image
// of the batch per goroutine.
package cpu

import (
	"fmt"

	"github.com/born-ml/unet/internal/parallel"
	"github.com/born-ml/unet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend that parallelizes across available cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallelism config.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		s := float32(scalar)
		unaryInto(tensor.As[float32](x), result.AsFloat32(), func(v float32) float32 { return v * s })
	case tensor.Float64:
		unaryInto(tensor.As[float64](x), result.AsFloat64(), func(v float64) float64 { return v * scalar })
	default:
		panic(fmt.Sprintf("mulscalar: unsupported dtype %s", x.DType()))
	}
	return result
}

// Reshape returns a view of t with a different shape.
// The data is shared; no element is copied.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Sum reduces all elements to a scalar tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustRaw(tensor.Shape{}, x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sum(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sum(x.AsFloat64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

func sum[T tensor.DType](data []T) T {
	var s T
	for _, v := range data {
		s += v
	}
	return s
}

// checkSameDType panics when operands disagree on element type.
func checkSameDType(op string, tensors ...*tensor.RawTensor) {
	for _, t := range tensors[1:] {
		if t.DType() != tensors[0].DType() {
			panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, tensors[0].DType(), t.DType()))
		}
	}
}
