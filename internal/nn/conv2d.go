package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/unet/internal/tensor"
)

// Padding selects how Conv2D treats the borders of its input.
type Padding string

const (
	// PaddingSame zero-pads the input so the output keeps its spatial size.
	// Requires an odd kernel.
	PaddingSame Padding = "same"
	// PaddingValid applies no padding; each side shrinks by kernel-1.
	PaddingValid Padding = "valid"
)

// ParsePadding converts a padding name into a Padding.
func ParsePadding(s string) (Padding, error) {
	switch p := Padding(s); p {
	case PaddingSame, PaddingValid:
		return p, nil
	default:
		return "", fmt.Errorf("unknown padding %q (want %q or %q)", s, PaddingSame, PaddingValid)
	}
}

// Pixels returns the zero padding applied on each side for a kernel size.
func (p Padding) Pixels(kernelSize int) int {
	if p == PaddingSame {
		return (kernelSize - 1) / 2
	}
	return 0
}

// Conv2D is a 2D convolutional layer with a square kernel and stride 1.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// With PaddingSame out_h = height; with PaddingValid out_h = height - kernel + 1.
//
// Example:
//
//	conv := nn.NewConv2D(3, 16, 3, nn.PaddingSame, nn.NewSource(42), backend)
//	output := conv.Forward(input) // [N, 16, H, W]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	padding     Padding

	weight *Parameter[B] // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels]

	backend B
}

// NewConv2D creates a new 2D convolutional layer.
//
// Initialization:
//   - Weights: Glorot uniform drawn from src (nil for the global source)
//   - Bias: Zeros
//
// Panics on non-positive sizes, an unknown padding, or an even kernel with
// PaddingSame.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize int,
	padding Padding,
	src rand.Source,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if _, err := ParsePadding(string(padding)); err != nil {
		panic("conv2d: " + err.Error())
	}
	if padding == PaddingSame && kernelSize%2 == 0 {
		panic(fmt.Sprintf("conv2d: same padding needs an odd kernel, got %d", kernelSize))
	}

	// fan_in = in_channels * k * k, fan_out = out_channels * k * k
	area := kernelSize * kernelSize
	weight := GlorotUniform(inChannels*area, outChannels*area,
		tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, src, backend)

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		padding:     padding,
		weight:      NewParameter("conv2d.weight", weight),
		bias:        NewParameter("conv2d.bias", Zeros(tensor.Shape{outChannels}, backend)),
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), 1, c.padding.Pixels(c.kernelSize))
	output := tensor.New[float32, B](outputRaw, c.backend)

	// Bias [C] -> [1, C, 1, 1] broadcasts over batch and space
	return output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
}

// OutputShape implements ShapeInferer.
func (c *Conv2D[B]) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 {
		return nil, fmt.Errorf("%w: conv2d expects [N,C,H,W], got %v", ErrShape, input)
	}
	if input[1] != c.inChannels {
		return nil, fmt.Errorf("%w: conv2d expects %d input channels, got %d", ErrShape, c.inChannels, input[1])
	}
	size := c.ComputeOutputSize(input[2], input[3])
	if size[0] <= 0 || size[1] <= 0 {
		return nil, fmt.Errorf("%w: conv2d kernel %dx%d does not fit input %dx%d with %s padding",
			ErrShape, c.kernelSize, c.kernelSize, input[2], input[3], c.padding)
	}
	return tensor.Shape{input[0], c.outChannels, size[0], size[1]}, nil
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (c *Conv2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	pad := c.padding.Pixels(c.kernelSize)
	return [2]int{inputH + 2*pad - c.kernelSize + 1, inputW + 2*pad - c.kernelSize + 1}
}

// Parameters returns all trainable parameters.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// KernelSize returns the kernel size.
func (c *Conv2D[B]) KernelSize() int {
	return c.kernelSize
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), padding=%s)",
		c.inChannels, c.outChannels, c.kernelSize, c.kernelSize, c.padding)
}
