package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/unet/internal/tensor"
)

// ConvTranspose2D is a 2D transposed convolution ("up-convolution") layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [in_channels, out_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, (height-1)*stride + kernel, (width-1)*stride + kernel]
//
// With kernel == stride the spatial size is multiplied by stride, which is
// how a U-Net decoder doubles resolution:
//
//	up := nn.NewConvTranspose2D(64, 32, 2, 2, src, backend)
//	output := up.Forward(input) // [N, 64, 16, 16] -> [N, 32, 32, 32]
type ConvTranspose2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewConvTranspose2D creates a new transposed convolution layer with Glorot
// uniform weights and zero bias.
func NewConvTranspose2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride int,
	src rand.Source,
	backend B,
) *ConvTranspose2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv_transpose2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("conv_transpose2d: invalid kernel size %d or stride %d", kernelSize, stride))
	}

	area := kernelSize * kernelSize
	weight := GlorotUniform(outChannels*area, inChannels*area,
		tensor.Shape{inChannels, outChannels, kernelSize, kernelSize}, src, backend)

	return &ConvTranspose2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		weight:      NewParameter("conv_transpose2d.weight", weight),
		bias:        NewParameter("conv_transpose2d.bias", Zeros(tensor.Shape{outChannels}, backend)),
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv_transpose2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv_transpose2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.ConvTranspose2D(input.Raw(), c.weight.Tensor().Raw(), c.stride)
	output := tensor.New[float32, B](outputRaw, c.backend)

	return output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
}

// OutputShape implements ShapeInferer.
func (c *ConvTranspose2D[B]) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 {
		return nil, fmt.Errorf("%w: conv_transpose2d expects [N,C,H,W], got %v", ErrShape, input)
	}
	if input[1] != c.inChannels {
		return nil, fmt.Errorf("%w: conv_transpose2d expects %d input channels, got %d", ErrShape, c.inChannels, input[1])
	}
	return tensor.Shape{
		input[0], c.outChannels,
		(input[2]-1)*c.stride + c.kernelSize,
		(input[3]-1)*c.stride + c.kernelSize,
	}, nil
}

// Parameters returns all trainable parameters.
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *ConvTranspose2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// OutChannels returns the number of output channels.
func (c *ConvTranspose2D[B]) OutChannels() int {
	return c.outChannels
}

// String returns a string representation of the layer.
func (c *ConvTranspose2D[B]) String() string {
	return fmt.Sprintf("ConvTranspose2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d)",
		c.inChannels, c.outChannels, c.kernelSize, c.kernelSize, c.stride)
}
