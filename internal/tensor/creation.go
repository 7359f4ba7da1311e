package tensor

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, DataTypeOf[T](), b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1).
// src may be nil to use the global random source.
func Randn[T DType, B Backend](shape Shape, src rand.Source, b B) *Tensor[T, B] {
	return Sample[T, B](shape, distuv.Normal{Mu: 0, Sigma: 1, Src: src}, b)
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
// src may be nil to use the global random source.
func Rand[T DType, B Backend](shape Shape, src rand.Source, b B) *Tensor[T, B] {
	return Sample[T, B](shape, distuv.Uniform{Min: 0, Max: 1, Src: src}, b)
}

// Sampler draws one random value per call.
// Every gonum distuv distribution satisfies it.
type Sampler interface {
	Rand() float64
}

// Sample creates a tensor whose elements are drawn from dist.
func Sample[T DType, B Backend](shape Shape, dist Sampler, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(dist.Rand())
	}
	return t
}
