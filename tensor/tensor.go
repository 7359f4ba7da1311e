// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API used by the U-Net layers.
//
// The package exposes:
//   - Tensor[T, B]: generic tensor bound to a compute backend
//   - RawTensor: untyped storage used by backends
//   - Backend: interface implemented by compute backends
//   - Shape, DataType, Device: core type definitions
//
// Tensors are NCHW for every convolutional operation.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 64, 64}, backend)
//	y := x.MulScalar(2)
package tensor

import "github.com/born-ml/unet/internal/tensor"

// DType is a constraint for tensor data types: float32 or float64.
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only supported device.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// RawTensor is the untyped tensor storage handed to backends.
type RawTensor = tensor.RawTensor

// Backend is the interface every compute backend implements.
type Backend = tensor.Backend

// Sampler draws one random value per call; every gonum distuv
// distribution satisfies it.
type Sampler = tensor.Sampler

// Tensor is a generic type-safe tensor with element type T on backend B.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// New wraps a RawTensor produced by backend b.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// Sample creates a tensor whose elements are drawn from dist.
func Sample[T DType, B Backend](shape Shape, dist Sampler, b B) *Tensor[T, B] {
	return tensor.Sample[T, B](shape, dist, b)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat(tensors, dim)
}
