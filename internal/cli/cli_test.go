package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unet/internal/unet"
)

func TestParse_ConfigPath(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"positional", []string{"model.yaml"}},
		{"long flag", []string{"-config", "model.yaml"}},
		{"short flag", []string{"-c", "model.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg, exit, err := Parse(tt.args, &out)
			require.NoError(t, err)
			assert.False(t, exit)
			assert.Equal(t, "model.yaml", cfg.ConfigPath)
			assert.Equal(t, 1, cfg.Batch)
			assert.Equal(t, "text", cfg.LogFormat)
			assert.Equal(t, "info", cfg.LogLevel)
			assert.Nil(t, cfg.Overrides.KernelSize, "unset flags do not override the file")
			assert.Nil(t, cfg.Overrides.NormalizeInput)
		})
	}
}

func TestParse_Overrides(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-blocks", "8, 16,32", "-kernel", "5", "-input", "64x32x1", "-normalize",
		"-classes", "4", "-dropout", "0.25", "-seed", "7", "-padding", "valid",
		"-forward", "-batch", "2", "-log-format", "JSON", "-log-level", "debug",
	}, &out)
	require.NoError(t, err)
	assert.False(t, exit)

	o := cfg.Overrides
	assert.Equal(t, []int{8, 16, 32}, o.BlockSizes)
	require.NotNil(t, o.KernelSize)
	assert.Equal(t, 5, *o.KernelSize)
	assert.Equal(t, &unet.InputSpec{Height: 64, Width: 32, Channels: 1}, o.Input)
	require.NotNil(t, o.NormalizeInput)
	assert.True(t, *o.NormalizeInput)
	assert.Equal(t, 4, *o.TargetClasses)
	assert.Equal(t, 0.25, *o.Dropout)
	assert.Equal(t, uint64(7), *o.Seed)
	assert.Equal(t, "valid", *o.Padding)
	assert.Nil(t, o.Activation)
	assert.True(t, cfg.Forward)
	assert.Equal(t, 2, cfg.Batch)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Empty(t, cfg.ConfigPath)
}

func TestParse_PaddingIsCaseInsensitive(t *testing.T) {
	for _, arg := range []string{"SAME", "Same", " same "} {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"-padding", arg, "m.yaml"}, &out)
		require.NoError(t, err, arg)
		require.NotNil(t, cfg.Overrides.Padding)
		assert.Equal(t, "same", *cfg.Overrides.Padding)
	}
}

func TestParse_UsageAndHelp(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "unet [options] [CONFIG_PATH]")

	out.Reset()
	_, exit, err = Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown flag", []string{"-bogus"}, "flag provided but not defined"},
		{"bad log format", []string{"-log-format", "xml", "m.yaml"}, "invalid log-format"},
		{"bad log level", []string{"-log-level", "trace", "m.yaml"}, "invalid log-level"},
		{"bad blocks", []string{"-blocks", "8,x"}, "invalid blocks"},
		{"zero block", []string{"-blocks", "8,0"}, "invalid blocks"},
		{"bad input", []string{"-blocks", "8", "-input", "64x64"}, "invalid input"},
		{"no model", []string{"-kernel", "3"}, "a model file or -blocks is required"},
		{"bad batch", []string{"-batch", "0", "m.yaml"}, "batch must be positive"},
		{"bad padding", []string{"-padding", "full", "m.yaml"}, "invalid padding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, exit, err := Parse(tt.args, &out)
			assert.False(t, exit)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.msg)
		})
	}
}

func TestParseInput(t *testing.T) {
	spec, err := ParseInput("256X128x3")
	require.NoError(t, err)
	assert.Equal(t, unet.InputSpec{Height: 256, Width: 128, Channels: 3}, spec)

	for _, bad := range []string{"", "1x2", "0x2x3", "axbxc", "1x2x3x4"} {
		_, err := ParseInput(bad)
		assert.Error(t, err, bad)
	}
}
