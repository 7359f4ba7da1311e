package ops

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
//
// A scalar gradient is expanded to the target shape instead.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone so later accumulation never aliases the incoming gradient
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	if grad.NumElements() == 1 && targetShape.NumElements() > 1 {
		return backend.Mul(filled(targetShape, grad.DType(), 1), backend.Reshape(grad, tensor.Shape{}))
	}

	// Sum leading dimensions the target does not have
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = sumAlongDimension(result, 0)
		result = backend.Reshape(result, result.Shape()[1:])
	}

	// Sum dimensions where the target is 1
	for i, dim := range targetShape {
		if dim == 1 && result.Shape()[i] > 1 {
			result = sumAlongDimension(result, i)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// sumAlongDimension sums a tensor along dim, keeping it with size 1.
func sumAlongDimension(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumAlongDimension: invalid dimension %d for shape %v", dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = 1
	result := tensor.MustRaw(outShape, t.DType(), t.Device())

	switch t.DType() {
	case tensor.Float32:
		sumAlong(t.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumAlong(t.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumAlongDimension: unsupported dtype %s", t.DType()))
	}
	return result
}

func sumAlong[T tensor.DType](src, dst []T, shape tensor.Shape, dim int) {
	outer, inner := splitAt(shape, dim)
	size := shape[dim]
	for o := 0; o < outer; o++ {
		for i := 0; i < size; i++ {
			row := src[(o*size+i)*inner : (o*size+i+1)*inner]
			out := dst[o*inner : (o+1)*inner]
			for j, v := range row {
				out[j] += v
			}
		}
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

// filled returns a new tensor of the given shape with every element set to value.
func filled(shape tensor.Shape, dtype tensor.DataType, value float64) *tensor.RawTensor {
	t := tensor.MustRaw(shape, dtype, tensor.CPU)
	switch dtype {
	case tensor.Float32:
		fill(t.AsFloat32(), float32(value))
	case tensor.Float64:
		fill(t.AsFloat64(), value)
	default:
		panic(fmt.Sprintf("filled: unsupported dtype %s", dtype))
	}
	return t
}

func fill[T tensor.DType](data []T, v T) {
	for i := range data {
		data[i] = v
	}
}

// scalarValue reads the single element of t as float64.
func scalarValue(t *tensor.RawTensor) float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("scalarValue: expected one element, got shape %v", t.Shape()))
	}
	switch t.DType() {
	case tensor.Float32:
		return float64(t.AsFloat32()[0])
	case tensor.Float64:
		return t.AsFloat64()[0]
	default:
		panic(fmt.Sprintf("scalarValue: unsupported dtype %s", t.DType()))
	}
}

// pointwiseGrad computes f(grad, x, y) element by element, where x and y are
// an activation's input and output.
func pointwiseGrad(grad, x, y *tensor.RawTensor, f func(g, x, y float64) float64) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), grad.DType(), x.Device())
	switch grad.DType() {
	case tensor.Float32:
		pointwise(grad.AsFloat32(), x.AsFloat32(), y.AsFloat32(), result.AsFloat32(), f)
	case tensor.Float64:
		pointwise(grad.AsFloat64(), x.AsFloat64(), y.AsFloat64(), result.AsFloat64(), f)
	default:
		panic(fmt.Sprintf("pointwiseGrad: unsupported dtype %s", grad.DType()))
	}
	return result
}

func pointwise[T tensor.DType](g, x, y, out []T, f func(g, x, y float64) float64) {
	for i := range out {
		out[i] = T(f(float64(g[i]), float64(x[i]), float64(y[i])))
	}
}
