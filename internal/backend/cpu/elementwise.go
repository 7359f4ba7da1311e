package cpu

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// binary dispatches a broadcasting element-wise operation on dtype.
func (cpu *CPUBackend) binary(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	checkSameDType(op, a, b)

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := tensor.MustRaw(outShape, a.DType(), cpu.device)

	switch a.DType() {
	case tensor.Float32:
		binaryInto(result, a, b, f32)
	case tensor.Float64:
		binaryInto(result, a, b, f64)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}
	return result
}

// binaryInto writes f(a, b) into out, broadcasting a and b to out's shape.
func binaryInto[T tensor.DType](out, a, b *tensor.RawTensor, f func(x, y T) T) {
	outData := tensor.As[T](out)
	aData := tensor.As[T](a)
	bData := tensor.As[T](b)

	// Fast path: identical shapes, flat iteration
	if a.Shape().Equal(b.Shape()) {
		for i := range outData {
			outData[i] = f(aData[i], bData[i])
		}
		return
	}

	outShape := out.Shape()
	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	idx := make([]int, len(outShape))

	for i := range outData {
		aOff, bOff := 0, 0
		for d, v := range idx {
			aOff += v * aStrides[d]
			bOff += v * bStrides[d]
		}
		outData[i] = f(aData[aOff], bData[bOff])

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

// broadcastStrides returns strides of src aligned to dst's rank, with
// stride 0 on every broadcast dimension.
func broadcastStrides(src, dst tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(dst))
	offset := len(dst) - len(src)
	for i := range src {
		if src[i] != 1 {
			strides[offset+i] = srcStrides[i]
		}
	}
	return strides
}

// unaryInto writes f(x) into out element by element.
func unaryInto[T tensor.DType](in, out []T, f func(T) T) {
	for i, v := range in {
		out[i] = f(v)
	}
}
