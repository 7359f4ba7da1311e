package unet

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/tensor"
)

// BlockOptions configures the convolution stacks shared by all blocks.
type BlockOptions struct {
	KernelSize int
	Depth      int
	PoolSize   int
	UpConvSize int
	Dropout    float64
	Activation string
	Padding    nn.Padding
}

// convStack builds depth convolution -> activation steps, each followed by
// dropout when rate > 0.
func convStack[B tensor.Backend](
	filters, inChannels, depth int,
	opts BlockOptions,
	dropout float64,
	src rand.Source,
	backend B,
) (*nn.Sequential[B], error) {
	seq := nn.NewSequential[B]()
	channels := inChannels
	for range depth {
		act, err := nn.NewActivation[B](opts.Activation)
		if err != nil {
			return nil, err
		}
		seq.Add(nn.NewConv2D(channels, filters, opts.KernelSize, opts.Padding, src, backend))
		seq.Add(act)
		if dropout > 0 {
			seq.Add(nn.NewDropout[B](dropout, src))
		}
		channels = filters
	}
	return seq, nil
}

// EncoderBlock is one downsampling stage: a convolution stack followed by
// max pooling. The pre-pooling tensor feeds the matching decoder.
type EncoderBlock[B tensor.Backend] struct {
	filters int
	convs   *nn.Sequential[B]
	pool    *nn.MaxPool2D[B]
}

// NewEncoderBlock creates an encoder block reading inChannels channels.
func NewEncoderBlock[B tensor.Backend](
	filters, inChannels int,
	opts BlockOptions,
	src rand.Source,
	backend B,
) (*EncoderBlock[B], error) {
	convs, err := convStack(filters, inChannels, opts.Depth, opts, opts.Dropout, src, backend)
	if err != nil {
		return nil, fmt.Errorf("encoder block: %w", err)
	}
	return &EncoderBlock[B]{
		filters: filters,
		convs:   convs,
		pool:    nn.NewMaxPool2D(opts.PoolSize, opts.PoolSize, backend),
	}, nil
}

// Forward returns the skip tensor (before pooling) and the pooled tensor.
func (e *EncoderBlock[B]) Forward(input *tensor.Tensor[float32, B]) (skip, pooled *tensor.Tensor[float32, B]) {
	skip = e.convs.Forward(input)
	return skip, e.pool.Forward(skip)
}

// OutputShapes infers the skip and pooled shapes for an input shape.
// The spatial size reaching the pool must be divisible by the pool size.
func (e *EncoderBlock[B]) OutputShapes(input tensor.Shape) (skip, pooled tensor.Shape, err error) {
	skip, err = e.convs.OutputShape(input)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encoder convolutions: %w", ErrShapeMismatch, err)
	}
	k := e.pool.KernelSize()
	if skip[2]%k != 0 || skip[3]%k != 0 {
		return nil, nil, fmt.Errorf("%w: feature map %dx%d is not divisible by pool size %d",
			ErrShapeMismatch, skip[2], skip[3], k)
	}
	pooled, err = e.pool.OutputShape(skip)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encoder pooling: %w", ErrShapeMismatch, err)
	}
	return skip, pooled, nil
}

// Filters returns the channel count of the skip and pooled tensors.
func (e *EncoderBlock[B]) Filters() int { return e.filters }

// Parameters returns all trainable parameters.
func (e *EncoderBlock[B]) Parameters() []*nn.Parameter[B] { return e.convs.Parameters() }

// SetTraining toggles dropout inside the block.
func (e *EncoderBlock[B]) SetTraining(training bool) { e.convs.SetTraining(training) }

func (e *EncoderBlock[B]) String() string {
	return fmt.Sprintf("EncoderBlock(%v, %v)", e.convs, e.pool)
}

// DecoderBlock is one upsampling stage: a transposed convolution of the
// previous stage, channel concatenation with the skip tensor, then a
// convolution stack.
type DecoderBlock[B tensor.Backend] struct {
	filters int
	up      *nn.ConvTranspose2D[B]
	upAct   nn.Module[B]
	convs   *nn.Sequential[B]
}

// NewDecoderBlock creates a decoder block. skipChannels is the channel count
// of the matching encoder output and prevChannels that of the previous stage.
func NewDecoderBlock[B tensor.Backend](
	filters, skipChannels, prevChannels int,
	opts BlockOptions,
	src rand.Source,
	backend B,
) (*DecoderBlock[B], error) {
	upAct, err := nn.NewActivation[B](opts.Activation)
	if err != nil {
		return nil, fmt.Errorf("decoder block: %w", err)
	}
	up := nn.NewConvTranspose2D(prevChannels, filters, opts.UpConvSize, opts.UpConvSize, src, backend)

	convs, err := convStack(filters, filters+skipChannels, opts.Depth, opts, opts.Dropout, src, backend)
	if err != nil {
		return nil, fmt.Errorf("decoder block: %w", err)
	}
	return &DecoderBlock[B]{filters: filters, up: up, upAct: upAct, convs: convs}, nil
}

// Forward upsamples prev, concatenates [upsampled, skip] along channels and
// runs the convolution stack.
func (d *DecoderBlock[B]) Forward(skip, prev *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	up := d.upAct.Forward(d.up.Forward(prev))
	merged := tensor.Cat([]*tensor.Tensor[float32, B]{up, skip}, 1)
	return d.convs.Forward(merged)
}

// OutputShape infers the output shape from the skip and previous-stage shapes.
func (d *DecoderBlock[B]) OutputShape(skip, prev tensor.Shape) (tensor.Shape, error) {
	up, err := d.up.OutputShape(prev)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder up-convolution: %w", ErrShapeMismatch, err)
	}
	if len(skip) != 4 || skip[0] != up[0] || skip[2] != up[2] || skip[3] != up[3] {
		return nil, fmt.Errorf("%w: cannot concatenate upsampled %v with skip %v",
			ErrShapeMismatch, up, skip)
	}
	merged := tensor.Shape{up[0], up[1] + skip[1], up[2], up[3]}
	out, err := d.convs.OutputShape(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder convolutions: %w", ErrShapeMismatch, err)
	}
	return out, nil
}

// Filters returns the output channel count.
func (d *DecoderBlock[B]) Filters() int { return d.filters }

// Parameters returns all trainable parameters.
func (d *DecoderBlock[B]) Parameters() []*nn.Parameter[B] {
	return append(d.up.Parameters(), d.convs.Parameters()...)
}

// SetTraining toggles dropout inside the block.
func (d *DecoderBlock[B]) SetTraining(training bool) { d.convs.SetTraining(training) }

func (d *DecoderBlock[B]) String() string {
	return fmt.Sprintf("DecoderBlock(%v, %v, %v)", d.up, d.upAct, d.convs)
}

// bridgeDepth is the fixed number of convolutions in a bridge.
const bridgeDepth = 2

// BridgeBlock connects the deepest encoder to the first decoder with two
// convolution -> activation steps. It neither pools nor applies dropout.
type BridgeBlock[B tensor.Backend] struct {
	filters int
	convs   *nn.Sequential[B]
}

// NewBridgeBlock creates a bridge block.
func NewBridgeBlock[B tensor.Backend](
	filters, inChannels int,
	opts BlockOptions,
	src rand.Source,
	backend B,
) (*BridgeBlock[B], error) {
	convs, err := convStack(filters, inChannels, bridgeDepth, opts, 0, src, backend)
	if err != nil {
		return nil, fmt.Errorf("bridge block: %w", err)
	}
	return &BridgeBlock[B]{filters: filters, convs: convs}, nil
}

// Forward runs the bridge convolutions.
func (b *BridgeBlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.convs.Forward(input)
}

// OutputShape implements nn.ShapeInferer.
func (b *BridgeBlock[B]) OutputShape(input tensor.Shape) (tensor.Shape, error) {
	out, err := b.convs.OutputShape(input)
	if err != nil {
		return nil, fmt.Errorf("%w: bridge convolutions: %w", ErrShapeMismatch, err)
	}
	return out, nil
}

// Filters returns the output channel count.
func (b *BridgeBlock[B]) Filters() int { return b.filters }

// Parameters returns all trainable parameters.
func (b *BridgeBlock[B]) Parameters() []*nn.Parameter[B] { return b.convs.Parameters() }

func (b *BridgeBlock[B]) String() string {
	return fmt.Sprintf("BridgeBlock(%v)", b.convs)
}
