package unet

import (
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/tensor"
)

var (
	// ErrInvalidConfig is returned when a Config or InputSpec is unusable.
	ErrInvalidConfig = errors.New("unet: invalid config")
	// ErrShapeMismatch is returned when the assembled graph cannot carry the
	// input through every stage.
	ErrShapeMismatch = errors.New("unet: shape mismatch")
)

// Defaults applied by Config.WithDefaults to zero-valued fields.
const (
	DefaultBlockDepth       = 2
	DefaultPoolSize         = 2
	DefaultUpConvSize       = 2
	DefaultTargetClasses    = 1
	DefaultTargetActivation = "softmax"
	DefaultActivation       = "elu"
	DefaultPadding          = nn.PaddingSame
)

// InputSpec describes one input image. Batches are [N, Channels, Height, Width].
type InputSpec struct {
	Height   int
	Width    int
	Channels int
}

// Shape returns the NCHW shape of a batch of n images.
func (s InputSpec) Shape(n int) tensor.Shape {
	return tensor.Shape{n, s.Channels, s.Height, s.Width}
}

// Validate reports whether every dimension is positive.
func (s InputSpec) Validate() error {
	if s.Height <= 0 || s.Width <= 0 || s.Channels <= 0 {
		return fmt.Errorf("%w: input %dx%dx%d must have positive dimensions",
			ErrInvalidConfig, s.Height, s.Width, s.Channels)
	}
	return nil
}

func (s InputSpec) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Config holds the hyperparameters of a U-Net.
//
// Zero values of BlockDepth, PoolSize, UpConvSize, TargetClasses,
// TargetActivation, Activation and Padding select the package defaults.
type Config struct {
	// KernelSize is the square convolution kernel used in every block.
	KernelSize int
	// BlockSizes lists the filter count of each encoder depth, shallowest
	// first. Decoders use the same list reversed.
	BlockSizes []int
	// BlockDepth is the number of convolutions per encoder/decoder block.
	BlockDepth int
	// PoolSize is the max-pooling window and stride.
	PoolSize int
	// UpConvSize is the transposed convolution kernel and stride.
	UpConvSize int
	// Dropout is applied after every block convolution when > 0.
	Dropout float64
	// NormalizeInput divides the input by 255 before the first encoder.
	NormalizeInput bool
	// TargetClasses is the channel count of the output.
	TargetClasses int
	// TargetActivation is applied by the output head. Softmax runs over channels.
	TargetActivation string
	// Activation is used after every block convolution.
	Activation string
	// Padding is the convolution padding mode: "same" or "valid".
	Padding nn.Padding
	// Seed feeds weight initialization and dropout masks.
	Seed uint64
}

// DefaultConfig returns a Config with every default filled in and a 3x3
// kernel over block sizes 16, 32, 64.
func DefaultConfig() Config {
	return Config{KernelSize: 3, BlockSizes: []int{16, 32, 64}}.WithDefaults()
}

// WithDefaults returns a copy of c with zero-valued fields set to their
// defaults. BlockSizes is copied.
func (c Config) WithDefaults() Config {
	c.BlockSizes = slices.Clone(c.BlockSizes)
	if c.BlockDepth == 0 {
		c.BlockDepth = DefaultBlockDepth
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.UpConvSize == 0 {
		c.UpConvSize = DefaultUpConvSize
	}
	if c.TargetClasses == 0 {
		c.TargetClasses = DefaultTargetClasses
	}
	if c.TargetActivation == "" {
		c.TargetActivation = DefaultTargetActivation
	}
	if c.Activation == "" {
		c.Activation = DefaultActivation
	}
	if c.Padding == "" {
		c.Padding = DefaultPadding
	}
	return c
}

// Validate checks c after defaults have been applied.
func (c Config) Validate() error {
	c = c.WithDefaults()

	if c.KernelSize <= 0 {
		return fmt.Errorf("%w: kernel size must be positive, got %d", ErrInvalidConfig, c.KernelSize)
	}
	if _, err := nn.ParsePadding(string(c.Padding)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Padding == nn.PaddingSame && c.KernelSize%2 == 0 {
		return fmt.Errorf("%w: same padding needs an odd kernel size, got %d", ErrInvalidConfig, c.KernelSize)
	}
	if len(c.BlockSizes) == 0 {
		return fmt.Errorf("%w: at least one block size is required", ErrInvalidConfig)
	}
	for i, size := range c.BlockSizes {
		if size <= 0 {
			return fmt.Errorf("%w: block size %d must be positive, got %d", ErrInvalidConfig, i, size)
		}
	}
	if c.BlockDepth < 1 {
		return fmt.Errorf("%w: block depth must be at least 1, got %d", ErrInvalidConfig, c.BlockDepth)
	}
	if c.PoolSize < 1 || c.UpConvSize < 1 {
		return fmt.Errorf("%w: pool size %d and up-conv size %d must be positive",
			ErrInvalidConfig, c.PoolSize, c.UpConvSize)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: dropout must be in [0, 1), got %g", ErrInvalidConfig, c.Dropout)
	}
	if c.TargetClasses < 1 {
		return fmt.Errorf("%w: target classes must be at least 1, got %d", ErrInvalidConfig, c.TargetClasses)
	}
	for _, name := range []string{c.Activation, c.TargetActivation} {
		if _, err := nn.NewActivation[tensor.Backend](name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// blockOptions returns the per-block settings derived from c.
func (c Config) blockOptions() BlockOptions {
	return BlockOptions{
		KernelSize: c.KernelSize,
		Depth:      c.BlockDepth,
		PoolSize:   c.PoolSize,
		UpConvSize: c.UpConvSize,
		Dropout:    c.Dropout,
		Activation: c.Activation,
		Padding:    c.Padding,
	}
}
