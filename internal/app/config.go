package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/unet"
)

// DefaultInput is used when neither the model file nor the flags describe the input.
var DefaultInput = unet.InputSpec{Height: 128, Width: 128, Channels: 3}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // .yaml, .yml or .hcl model description
	Overrides  Overrides

	Forward bool // run one forward pass after building
	Batch   int

	LogFormat string
	LogLevel  string
}

// Overrides are command-line values that replace the model file's. Nil
// pointers and empty slices leave the file value in place.
type Overrides struct {
	Input            *unet.InputSpec
	KernelSize       *int
	BlockSizes       []int
	BlockDepth       *int
	Dropout          *float64
	NormalizeInput   *bool
	TargetClasses    *int
	TargetActivation *string
	Activation       *string
	Padding          *string
	Seed             *uint64
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Batch <= 0 {
		return nil, fmt.Errorf("batch must be positive, got %d", cfg.Batch)
	}
	if cfg.ConfigPath == "" && cfg.Overrides.BlockSizes == nil {
		return nil, errors.New("a model file or -blocks is required")
	}
	return &cfg, nil
}

// apply writes every set override onto input and cfg.
func (o Overrides) apply(input *unet.InputSpec, cfg *unet.Config) {
	if o.Input != nil {
		*input = *o.Input
	}
	if o.KernelSize != nil {
		cfg.KernelSize = *o.KernelSize
	}
	if o.BlockSizes != nil {
		cfg.BlockSizes = append([]int(nil), o.BlockSizes...)
	}
	if o.BlockDepth != nil {
		cfg.BlockDepth = *o.BlockDepth
	}
	if o.Dropout != nil {
		cfg.Dropout = *o.Dropout
	}
	if o.NormalizeInput != nil {
		cfg.NormalizeInput = *o.NormalizeInput
	}
	if o.TargetClasses != nil {
		cfg.TargetClasses = *o.TargetClasses
	}
	if o.TargetActivation != nil {
		cfg.TargetActivation = *o.TargetActivation
	}
	if o.Activation != nil {
		cfg.Activation = *o.Activation
	}
	if o.Padding != nil {
		cfg.Padding = nn.Padding(strings.ToLower(*o.Padding))
	}
	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
}
