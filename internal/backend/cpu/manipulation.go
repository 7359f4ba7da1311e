package cpu

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along the concatenation
// dimension. Negative dim counts from the end (-1 = last dimension).
//
// Example:
//
//	a: [2, 3, 4, 4], b: [2, 5, 4, 4]
//	Cat([a, b], 1) -> [2, 8, 4, 4]
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()

	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensor", dim, ndim))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := 0; d < ndim; d++ {
			if d == dim {
				totalDim += tShape[d]
			} else if tShape[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, d, tShape[d], shape[d]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[dim] = totalDim
	result := tensor.MustRaw(outShape, dtype, cpu.device)

	switch dtype {
	case tensor.Float32:
		cat[float32](tensors, result, dim)
	case tensor.Float64:
		cat[float64](tensors, result, dim)
	default:
		panic(fmt.Sprintf("cat: unsupported dtype %s", dtype))
	}

	return result
}

// cat copies each input as a block of its dim-slice into result.
//
// With outer = prod(shape[:dim]) and inner = prod(shape[dim+1:]) every input
// contributes outer contiguous runs of shape[dim]*inner elements.
func cat[T tensor.DType](tensors []*tensor.RawTensor, result *tensor.RawTensor, dim int) {
	outShape := result.Shape()
	outer, inner := splitAt(outShape, dim)
	dst := tensor.As[T](result)
	outRow := outShape[dim] * inner

	offset := 0
	for _, t := range tensors {
		src := tensor.As[T](t)
		run := t.Shape()[dim] * inner
		for o := 0; o < outer; o++ {
			copy(dst[o*outRow+offset:o*outRow+offset+run], src[o*run:(o+1)*run])
		}
		offset += run
	}
}

// splitAt returns the element counts before and after dim.
func splitAt(shape tensor.Shape, dim int) (outer, inner int) {
	outer, inner = 1, 1
	for _, d := range shape[:dim] {
		outer *= d
	}
	for _, d := range shape[dim+1:] {
		inner *= d
	}
	return outer, inner
}
