// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public neural network layer API.
//
// Layers work on NCHW float32 tensors and report their output shape for a
// given input shape, so a network can be checked before data flows:
//
//	block := nn.NewSequential[*cpu.Backend](
//	    nn.NewConv2D(3, 16, 3, nn.PaddingSame, nn.NewSource(42), backend),
//	    nn.NewELU[*cpu.Backend](1.0),
//	    nn.NewMaxPool2D(2, 2, backend),
//	)
//	shape, err := block.OutputShape(tensor.Shape{1, 3, 64, 64}) // [1, 16, 32, 32]
package nn

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/tensor"
)

// ErrShape is returned by shape inference when a layer cannot accept an input.
var ErrShape = nn.ErrShape

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] = nn.Module[B]

// ShapeInferer reports the output shape a module produces for an input shape.
type ShapeInferer = nn.ShapeInferer

// ModeSetter is implemented by modules that behave differently in training
// and inference.
type ModeSetter = nn.ModeSetter

// Parameter is a trainable tensor with an optional gradient.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Padding selects how Conv2D treats the borders of its input.
type Padding = nn.Padding

// Padding modes.
const (
	PaddingSame  = nn.PaddingSame
	PaddingValid = nn.PaddingValid
)

// Layer types.
type (
	Conv2D[B tensor.Backend]          = nn.Conv2D[B]
	ConvTranspose2D[B tensor.Backend] = nn.ConvTranspose2D[B]
	MaxPool2D[B tensor.Backend]       = nn.MaxPool2D[B]
	Dropout[B tensor.Backend]         = nn.Dropout[B]
	Rescale[B tensor.Backend]         = nn.Rescale[B]
	Sequential[B tensor.Backend]      = nn.Sequential[B]
	ELU[B tensor.Backend]             = nn.ELU[B]
	ReLU[B tensor.Backend]            = nn.ReLU[B]
	Sigmoid[B tensor.Backend]         = nn.Sigmoid[B]
	Tanh[B tensor.Backend]            = nn.Tanh[B]
	Softmax[B tensor.Backend]         = nn.Softmax[B]
	Linear[B tensor.Backend]          = nn.Linear[B]
)

// ParsePadding converts a padding name into a Padding.
func ParsePadding(s string) (Padding, error) { return nn.ParsePadding(s) }

// NewSource returns a deterministic random source for initialization and dropout.
func NewSource(seed uint64) rand.Source { return nn.NewSource(seed) }

// NewConv2D creates a 2D convolution with a square kernel and stride 1.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize int, padding Padding, src rand.Source, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, padding, src, backend)
}

// NewConvTranspose2D creates a 2D transposed convolution.
func NewConvTranspose2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride int, src rand.Source, backend B) *ConvTranspose2D[B] {
	return nn.NewConvTranspose2D(inChannels, outChannels, kernelSize, stride, src, backend)
}

// NewMaxPool2D creates a 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, backend)
}

// NewDropout creates an inverted dropout layer in training mode.
func NewDropout[B tensor.Backend](rate float64, src rand.Source) *Dropout[B] {
	return nn.NewDropout[B](rate, src)
}

// NewRescale creates a layer computing x*scale + offset.
func NewRescale[B tensor.Backend](scale, offset float32) *Rescale[B] {
	return nn.NewRescale[B](scale, offset)
}

// NewELU creates an ELU activation.
func NewELU[B tensor.Backend](alpha float64) *ELU[B] { return nn.NewELU[B](alpha) }

// NewActivation looks up an activation module by name.
func NewActivation[B tensor.Backend](name string) (Module[B], error) {
	return nn.NewActivation[B](name)
}

// ActivationNames lists the names accepted by NewActivation.
func ActivationNames() []string { return nn.ActivationNames() }

// NewSequential chains modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// InferShape runs shape inference for m.
func InferShape[B tensor.Backend](m Module[B], input tensor.Shape) (tensor.Shape, error) {
	return nn.InferShape(m, input)
}

// SetTraining switches m and its children between training and inference.
func SetTraining[B tensor.Backend](m Module[B], training bool) { nn.SetTraining(m, training) }

// AttachGradients copies gradients computed by autodiff.Backward onto params.
func AttachGradients[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) int {
	return nn.AttachGradients(params, grads)
}

// CountParameters returns the total number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}
