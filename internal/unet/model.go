// Package unet assembles U-Net segmentation networks from encoder, decoder
// and bridge blocks.
//
// Build wires one encoder per block size, a bridge at the deepest point and
// one decoder per block size in reverse order. Each decoder concatenates the
// output of the encoder at the same depth (the skip connection) with its
// upsampled input. A 1x1 convolution head maps the last decoder to the
// target classes.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	cfg := unet.Config{KernelSize: 3, BlockSizes: []int{16, 32, 64}, TargetClasses: 2}
//	model, err := unet.Build(unet.InputSpec{Height: 128, Width: 128, Channels: 3}, cfg, backend)
//	if err != nil {
//	    return err
//	}
//	probs := model.Forward(batch) // [N, 2, 128, 128]
package unet

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/tensor"
)

// Stage describes one step of the assembled graph for a single image.
type Stage struct {
	Name   string
	Shape  tensor.Shape
	Params int
}

// Model is an assembled U-Net.
type Model[B tensor.Backend] struct {
	input InputSpec
	cfg   Config

	normalize nn.Module[B] // nil unless NormalizeInput
	encoders  []*EncoderBlock[B]
	bridge    *BridgeBlock[B]
	decoders  []*DecoderBlock[B]
	head      *nn.Sequential[B]

	stages   []Stage
	training bool
}

// Build assembles a U-Net for input images described by input.
//
// The whole graph is shape-checked before Build returns: every error wraps
// ErrInvalidConfig or ErrShapeMismatch. cfg.BlockSizes is never modified.
// The model starts in inference mode: Forward applies no dropout until Train
// is called.
func Build[B tensor.Backend](input InputSpec, cfg Config, backend B) (*Model[B], error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model[B]{input: input, cfg: cfg}
	src := nn.NewSource(cfg.Seed)
	opts := cfg.blockOptions()

	shape := input.Shape(1)
	m.addStage("input", shape, 0)
	if cfg.NormalizeInput {
		m.normalize = nn.NewRescale[B](1.0/255, 0)
		m.addStage("rescale", shape, 0)
	}

	skipChannels := make([]int, 0, len(cfg.BlockSizes))
	skipShapes := make([]tensor.Shape, 0, len(cfg.BlockSizes))
	channels := input.Channels
	for i, filters := range cfg.BlockSizes {
		enc, err := NewEncoderBlock(filters, channels, opts, src, backend)
		if err != nil {
			return nil, fmt.Errorf("%w: encoder %d: %w", ErrInvalidConfig, i, err)
		}
		skip, pooled, err := enc.OutputShapes(shape)
		if err != nil {
			return nil, fmt.Errorf("encoder %d: %w", i, err)
		}
		m.encoders = append(m.encoders, enc)
		m.addStage(fmt.Sprintf("encoder[%d].skip", i), skip, nn.CountParameters(enc.Parameters()))
		m.addStage(fmt.Sprintf("encoder[%d].pool", i), pooled, 0)

		skipChannels = append(skipChannels, filters)
		skipShapes = append(skipShapes, skip)
		channels, shape = filters, pooled
	}

	bridgeFilters := 2 * cfg.BlockSizes[len(cfg.BlockSizes)-1]
	bridge, err := NewBridgeBlock(bridgeFilters, channels, opts, src, backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if shape, err = bridge.OutputShape(shape); err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	m.bridge = bridge
	m.addStage("bridge", shape, nn.CountParameters(bridge.Parameters()))

	sizes := reversed(cfg.BlockSizes)
	skipChannels = reversed(skipChannels)
	skipShapes = reversed(skipShapes)
	channels = bridgeFilters
	for i, filters := range sizes {
		dec, err := NewDecoderBlock(filters, skipChannels[i], channels, opts, src, backend)
		if err != nil {
			return nil, fmt.Errorf("%w: decoder %d: %w", ErrInvalidConfig, i, err)
		}
		if shape, err = dec.OutputShape(skipShapes[i], shape); err != nil {
			return nil, fmt.Errorf("decoder %d: %w", i, err)
		}
		m.decoders = append(m.decoders, dec)
		m.addStage(fmt.Sprintf("decoder[%d]", i), shape, nn.CountParameters(dec.Parameters()))
		channels = filters
	}

	target, err := nn.NewActivation[B](cfg.TargetActivation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	m.head = nn.NewSequential[B](
		nn.NewConv2D(channels, cfg.TargetClasses, 1, nn.PaddingValid, src, backend),
		target,
	)
	if shape, err = m.head.OutputShape(shape); err != nil {
		return nil, fmt.Errorf("%w: output head: %w", ErrShapeMismatch, err)
	}
	m.addStage("output", shape, nn.CountParameters(m.head.Parameters()))

	m.Eval()
	return m, nil
}

func (m *Model[B]) addStage(name string, shape tensor.Shape, params int) {
	m.stages = append(m.stages, Stage{Name: name, Shape: shape.Clone(), Params: params})
}

// reversed returns a reversed copy of s.
func reversed[S ~[]E, E any](s S) S {
	r := slices.Clone(s)
	slices.Reverse(r)
	return r
}

// Forward runs a batch of shape [N, Channels, Height, Width] through the
// network and returns [N, TargetClasses, Height', Width'].
//
// Panics if the input does not match the InputSpec the model was built for.
func (m *Model[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || !shape[1:].Equal(m.input.Shape(1)[1:]) {
		panic(fmt.Sprintf("unet: input shape %v does not match [N, %d, %d, %d]",
			shape, m.input.Channels, m.input.Height, m.input.Width))
	}

	x := input
	if m.normalize != nil {
		x = m.normalize.Forward(x)
	}

	skips := make([]*tensor.Tensor[float32, B], len(m.encoders))
	for i, enc := range m.encoders {
		skips[i], x = enc.Forward(x)
	}

	x = m.bridge.Forward(x)

	skips = reversed(skips)
	for i, dec := range m.decoders {
		x = dec.Forward(skips[i], x)
	}

	return m.head.Forward(x)
}

// Parameters returns every trainable parameter, input to output.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, enc := range m.encoders {
		params = append(params, enc.Parameters()...)
	}
	params = append(params, m.bridge.Parameters()...)
	for _, dec := range m.decoders {
		params = append(params, dec.Parameters()...)
	}
	return append(params, m.head.Parameters()...)
}

// NumParameters returns the number of scalar weights.
func (m *Model[B]) NumParameters() int {
	return nn.CountParameters(m.Parameters())
}

// Train enables dropout.
func (m *Model[B]) Train() { m.setTraining(true) }

// Eval disables dropout for inference.
func (m *Model[B]) Eval() { m.setTraining(false) }

// Training reports whether the model is in training mode.
func (m *Model[B]) Training() bool { return m.training }

func (m *Model[B]) setTraining(training bool) {
	m.training = training
	for _, enc := range m.encoders {
		enc.SetTraining(training)
	}
	for _, dec := range m.decoders {
		dec.SetTraining(training)
	}
}

// NumEncoders returns the number of encoder stages.
func (m *Model[B]) NumEncoders() int { return len(m.encoders) }

// NumDecoders returns the number of decoder stages.
func (m *Model[B]) NumDecoders() int { return len(m.decoders) }

// Encoder returns the i-th encoder, shallowest first.
func (m *Model[B]) Encoder(i int) *EncoderBlock[B] { return m.encoders[i] }

// Decoder returns the i-th decoder, deepest first.
func (m *Model[B]) Decoder(i int) *DecoderBlock[B] { return m.decoders[i] }

// Bridge returns the bridge block.
func (m *Model[B]) Bridge() *BridgeBlock[B] { return m.bridge }

// Input returns the input specification.
func (m *Model[B]) Input() InputSpec { return m.input }

// Config returns the effective configuration, defaults included.
func (m *Model[B]) Config() Config {
	cfg := m.cfg
	cfg.BlockSizes = slices.Clone(cfg.BlockSizes)
	return cfg
}

// OutputShape returns the output shape for a batch of n images.
func (m *Model[B]) OutputShape(n int) tensor.Shape {
	out := m.stages[len(m.stages)-1].Shape.Clone()
	out[0] = n
	return out
}

// Stages lists every stage with its output shape for one image.
func (m *Model[B]) Stages() []Stage {
	stages := make([]Stage, len(m.stages))
	for i, s := range m.stages {
		stages[i] = Stage{Name: s.Name, Shape: s.Shape.Clone(), Params: s.Params}
	}
	return stages
}

// Summary renders Stages as an aligned table followed by the parameter total.
func (m *Model[B]) Summary() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tOUTPUT SHAPE\tPARAMS")
	for _, s := range m.stages {
		fmt.Fprintf(w, "%s\t%v\t%d\n", s.Name, s.Shape, s.Params)
	}
	_ = w.Flush()
	fmt.Fprintf(&sb, "total parameters: %d\n", m.NumParameters())
	return sb.String()
}
