// Package config loads U-Net model descriptions from YAML or HCL files.
//
// Both formats share one schema:
//
//	input {
//	  height   = 256
//	  width    = 256
//	  channels = 3
//	}
//	model {
//	  kernel_size       = 3
//	  block_sizes       = [16, 32, 64]
//	  target_classes    = 2
//	  target_activation = "softmax"
//	}
//
// Every attribute is optional. Merge lays the attributes present in the file
// over a base unet.Config, so omitted ones keep the base value.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/unet/internal/ctxlog"
	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/unet"
)

// ErrUnsupportedFormat is returned for file extensions other than .yaml, .yml and .hcl.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// File is a decoded model description.
type File struct {
	Input *Input `yaml:"input" hcl:"input,block"`
	Model *Model `yaml:"model" hcl:"model,block"`
}

// Input describes the images fed to the model.
type Input struct {
	Height   int `yaml:"height" hcl:"height"`
	Width    int `yaml:"width" hcl:"width"`
	Channels int `yaml:"channels" hcl:"channels"`
}

// Model holds the U-Net hyperparameters.
type Model struct {
	KernelSize       int     `yaml:"kernel_size" hcl:"kernel_size,optional"`
	BlockSizes       []int   `yaml:"block_sizes" hcl:"block_sizes,optional"`
	BlockDepth       int     `yaml:"block_depth" hcl:"block_depth,optional"`
	PoolSize         int     `yaml:"pool_size" hcl:"pool_size,optional"`
	UpConvSize       int     `yaml:"up_conv_size" hcl:"up_conv_size,optional"`
	Dropout          float64 `yaml:"dropout" hcl:"dropout,optional"`
	NormalizeInput   bool    `yaml:"normalize_input" hcl:"normalize_input,optional"`
	TargetClasses    int     `yaml:"target_classes" hcl:"target_classes,optional"`
	TargetActivation string  `yaml:"target_activation" hcl:"target_activation,optional"`
	Activation       string  `yaml:"activation" hcl:"activation,optional"`
	Padding          string  `yaml:"padding" hcl:"padding,optional"`
	Seed             uint64  `yaml:"seed" hcl:"seed,optional"`
}

// Load decodes path, choosing the parser by file extension.
func Load(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading model description.", "path", path)

	var (
		f   *File
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err = LoadYAML(path)
	case ".hcl":
		f, err = LoadHCL(path)
	default:
		return nil, fmt.Errorf("%w: %q (want .yaml, .yml or .hcl)", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Model description loaded.", "path", path, "has_input", f.Input != nil, "has_model", f.Model != nil)
	return f, nil
}

// LoadYAML decodes a YAML model description. Unknown keys are rejected.
func LoadYAML(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}
	return &f, nil
}

// LoadHCL decodes an HCL model description.
func LoadHCL(path string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var f File
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	return &f, nil
}

// InputSpec returns the described input, or the zero InputSpec when the
// file has no input section.
func (f *File) InputSpec() unet.InputSpec {
	if f.Input == nil {
		return unet.InputSpec{}
	}
	return unet.InputSpec{Height: f.Input.Height, Width: f.Input.Width, Channels: f.Input.Channels}
}

// UNetConfig converts the model section into a unet.Config. Zero fields keep
// their zero value so unet defaults apply.
func (f *File) UNetConfig() unet.Config {
	if f.Model == nil {
		return unet.Config{}
	}
	m := f.Model
	return unet.Config{
		KernelSize:       m.KernelSize,
		BlockSizes:       append([]int(nil), m.BlockSizes...),
		BlockDepth:       m.BlockDepth,
		PoolSize:         m.PoolSize,
		UpConvSize:       m.UpConvSize,
		Dropout:          m.Dropout,
		NormalizeInput:   m.NormalizeInput,
		TargetClasses:    m.TargetClasses,
		TargetActivation: m.TargetActivation,
		Activation:       m.Activation,
		Padding:          nn.Padding(strings.ToLower(m.Padding)),
		Seed:             m.Seed,
	}
}

// Merge returns base with every non-zero field of the model section written
// over it. BlockSizes is copied.
func (f *File) Merge(base unet.Config) unet.Config {
	cfg := base
	cfg.BlockSizes = append([]int(nil), base.BlockSizes...)
	if f.Model == nil {
		return cfg
	}
	m := f.UNetConfig()
	if m.KernelSize != 0 {
		cfg.KernelSize = m.KernelSize
	}
	if len(m.BlockSizes) > 0 {
		cfg.BlockSizes = m.BlockSizes
	}
	if m.BlockDepth != 0 {
		cfg.BlockDepth = m.BlockDepth
	}
	if m.PoolSize != 0 {
		cfg.PoolSize = m.PoolSize
	}
	if m.UpConvSize != 0 {
		cfg.UpConvSize = m.UpConvSize
	}
	if m.Dropout != 0 {
		cfg.Dropout = m.Dropout
	}
	if m.NormalizeInput {
		cfg.NormalizeInput = true
	}
	if m.TargetClasses != 0 {
		cfg.TargetClasses = m.TargetClasses
	}
	if m.TargetActivation != "" {
		cfg.TargetActivation = m.TargetActivation
	}
	if m.Activation != "" {
		cfg.Activation = m.Activation
	}
	if m.Padding != "" {
		cfg.Padding = m.Padding
	}
	if m.Seed != 0 {
		cfg.Seed = m.Seed
	}
	return cfg
}
