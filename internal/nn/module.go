// Package nn implements the neural network layers used to assemble U-Nets.
//
// This package provides building blocks for convolutional networks:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable parameters with gradient tracking
//   - Conv2D, ConvTranspose2D, MaxPool2D: convolutional layers
//   - Dropout, Rescale: regularization and input scaling
//   - Activations: ELU, ReLU, Sigmoid, Tanh, Softmax, Linear
//   - Sequential: container for stacking layers
//
// Layers work on NCHW float32 tensors. Besides Forward, every layer reports
// its output shape for a given input shape, so a whole network can be
// checked before any data flows through it.
package nn

import (
	"errors"

	"github.com/born-ml/unet/internal/tensor"
)

// ErrShape is returned by shape inference when a layer cannot accept an input.
var ErrShape = errors.New("nn: incompatible shape")

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	block := nn.NewSequential[Backend](
//	    nn.NewConv2D(3, 16, 3, nn.PaddingSame, src, backend),
//	    nn.NewELU[Backend](1.0),
//	    nn.NewMaxPool2D(2, 2, backend),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}

// ShapeInferer reports the output shape a module produces for an input shape,
// or an error wrapping ErrShape when the input cannot be accepted.
type ShapeInferer interface {
	OutputShape(input tensor.Shape) (tensor.Shape, error)
}

// ModeSetter is implemented by modules that behave differently in training
// and inference (Dropout, and containers holding one).
type ModeSetter interface {
	SetTraining(training bool)
}

// InferShape runs shape inference for m. Modules that do not implement
// ShapeInferer are assumed to preserve the shape.
func InferShape[B tensor.Backend](m Module[B], input tensor.Shape) (tensor.Shape, error) {
	if si, ok := m.(ShapeInferer); ok {
		return si.OutputShape(input)
	}
	return input.Clone(), nil
}

// SetTraining switches m and its children between training and inference.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if ms, ok := m.(ModeSetter); ok {
		ms.SetTraining(training)
	}
}
