package unet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unet/internal/nn"
)

func TestConfig_WithDefaults(t *testing.T) {
	sizes := []int{8, 16}
	cfg := Config{KernelSize: 3, BlockSizes: sizes}.WithDefaults()

	assert.Equal(t, DefaultBlockDepth, cfg.BlockDepth)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, DefaultUpConvSize, cfg.UpConvSize)
	assert.Equal(t, DefaultTargetClasses, cfg.TargetClasses)
	assert.Equal(t, "softmax", cfg.TargetActivation)
	assert.Equal(t, "elu", cfg.Activation)
	assert.Equal(t, nn.PaddingSame, cfg.Padding)
	assert.Zero(t, cfg.Dropout)
	assert.False(t, cfg.NormalizeInput)

	cfg.BlockSizes[0] = 99
	assert.Equal(t, 8, sizes[0], "defaults copy the block sizes")

	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	base := Config{KernelSize: 3, BlockSizes: []int{4, 8}}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero kernel", func(c *Config) { c.KernelSize = 0 }},
		{"even kernel with same padding", func(c *Config) { c.KernelSize = 2 }},
		{"unknown padding", func(c *Config) { c.Padding = "causal" }},
		{"no blocks", func(c *Config) { c.BlockSizes = nil }},
		{"negative block", func(c *Config) { c.BlockSizes = []int{4, -1} }},
		{"negative depth", func(c *Config) { c.BlockDepth = -1 }},
		{"negative pool", func(c *Config) { c.PoolSize = -2 }},
		{"dropout one", func(c *Config) { c.Dropout = 1 }},
		{"negative dropout", func(c *Config) { c.Dropout = -0.1 }},
		{"negative classes", func(c *Config) { c.TargetClasses = -1 }},
		{"unknown activation", func(c *Config) { c.Activation = "gelu" }},
		{"unknown target activation", func(c *Config) { c.TargetActivation = "argmax" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.BlockSizes = []int{4, 8}
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	valid := base
	valid.KernelSize = 2
	valid.Padding = nn.PaddingValid
	assert.NoError(t, valid.Validate(), "even kernels are fine without padding")
}

func TestInputSpec(t *testing.T) {
	spec := InputSpec{Height: 64, Width: 32, Channels: 3}

	assert.Equal(t, []int{4, 3, 64, 32}, []int(spec.Shape(4)))
	assert.Equal(t, "64x32x3", spec.String())
	assert.NoError(t, spec.Validate())
	assert.ErrorIs(t, InputSpec{Height: 64, Width: 32}.Validate(), ErrInvalidConfig)
}

func TestReversed(t *testing.T) {
	sizes := []int{16, 32, 64}

	r := reversed(sizes)
	assert.Equal(t, []int{64, 32, 16}, r)
	assert.Equal(t, []int{16, 32, 64}, sizes)
	assert.Equal(t, sizes, reversed(reversed(sizes)))
	assert.Empty(t, reversed([]int{}))
}
