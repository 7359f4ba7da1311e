package nn

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value
// in each non-overlapping window. Unlike Conv2D, MaxPool2D has no
// learnable parameters.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// A trailing row or column that does not fill a window is dropped.
//
// Example:
//
//	pool := nn.NewMaxPool2D(2, 2, backend)
//	input := tensor.Randn[float32](tensor.Shape{32, 64, 28, 28}, nil, backend)
//	output := pool.Forward(input) // [32, 64, 14, 14]
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewMaxPool2D creates a new 2D max pooling layer.
//
// Parameters:
//   - kernelSize: Size of pooling window (square)
//   - stride: Stride for pooling (typically same as kernelSize for non-overlapping)
//   - backend: Backend for computation
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}

	return &MaxPool2D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		backend:    backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, channels, height, width]
// Output: [batch, channels, out_height, out_width].
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	outputRaw := m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride)
	return tensor.New[float32, B](outputRaw, m.backend)
}

// Parameters returns nil; MaxPool2D has no learnable parameters.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// OutputShape implements ShapeInferer.
func (m *MaxPool2D[B]) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 {
		return nil, fmt.Errorf("%w: maxpool2d expects [N,C,H,W], got %v", ErrShape, input)
	}
	if input[2] < m.kernelSize || input[3] < m.kernelSize {
		return nil, fmt.Errorf("%w: maxpool2d window %d larger than input %dx%d", ErrShape, m.kernelSize, input[2], input[3])
	}
	size := m.ComputeOutputSize(input[2], input[3])
	return tensor.Shape{input[0], input[1], size[0], size[1]}, nil
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)",
		m.kernelSize, m.stride)
}

// KernelSize returns the pooling kernel size.
func (m *MaxPool2D[B]) KernelSize() int {
	return m.kernelSize
}

// Stride returns the stride.
func (m *MaxPool2D[B]) Stride() int {
	return m.stride
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (m *MaxPool2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH-m.kernelSize)/m.stride + 1
	outW := (inputW-m.kernelSize)/m.stride + 1
	return [2]int{outH, outW}
}
