package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unet/internal/unet"
)

func ptr[T any](v T) *T { return &v }

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{ConfigPath: "m.yaml"})
	assert.ErrorContains(t, err, "batch")

	_, err = NewConfig(Config{Batch: 1})
	assert.ErrorContains(t, err, "model file")

	cfg, err := NewConfig(Config{Batch: 1, Overrides: Overrides{BlockSizes: []int{4}}})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, cfg.Overrides.BlockSizes)
}

func TestOverrides_Apply(t *testing.T) {
	input := DefaultInput
	cfg := unet.DefaultConfig()

	Overrides{
		Input:      &unet.InputSpec{Height: 8, Width: 8, Channels: 1},
		BlockSizes: []int{2, 4},
		Padding:    ptr("VALID"),
		Seed:       ptr(uint64(3)),
	}.apply(&input, &cfg)

	assert.Equal(t, unet.InputSpec{Height: 8, Width: 8, Channels: 1}, input)
	assert.Equal(t, []int{2, 4}, cfg.BlockSizes)
	assert.Equal(t, "valid", string(cfg.Padding))
	assert.Equal(t, uint64(3), cfg.Seed)
	assert.Equal(t, 3, cfg.KernelSize, "unset overrides keep the base value")
}

func TestRun_FileWithOverridesAndForward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: {height: 16, width: 16, channels: 1}
model:
  kernel_size: 3
  block_sizes: [2, 4]
  target_classes: 3
  normalize_input: true
`), 0o600))

	var out, logs bytes.Buffer
	a := New(&out, &logs, &Config{
		ConfigPath: path,
		Overrides:  Overrides{TargetClasses: ptr(2)},
		Forward:    true,
		Batch:      2,
		LogFormat:  "json",
		LogLevel:   "debug",
	})
	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "encoder[1].pool")
	assert.Regexp(t, `output\s+\[1 2 16 16\]`, out.String(), "classes come from the override")
	assert.Contains(t, out.String(), "forward: input [2 1 16 16] -> output [2 2 16 16]")
	assert.Contains(t, logs.String(), `"msg":"Model built."`)
	assert.Contains(t, logs.String(), `"msg":"Forward pass finished."`)
}

func TestRun_PartialModelFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: {height: 8, width: 8, channels: 1}\nmodel: {block_sizes: [4]}\n"), 0o600))

	var out, logs bytes.Buffer
	a := New(&out, &logs, &Config{ConfigPath: path, Batch: 1, LogFormat: "text", LogLevel: "info"})
	require.NoError(t, a.Run(context.Background()))
	assert.Regexp(t, `bridge\s+\[1 8 4 4\]`, out.String())
}

func TestRun_Errors(t *testing.T) {
	var out, logs bytes.Buffer

	a := New(&out, &logs, &Config{ConfigPath: filepath.Join(t.TempDir(), "missing.hcl"), Batch: 1})
	assert.ErrorContains(t, a.Run(context.Background()), "failed to load model description")

	a = New(&out, &logs, &Config{
		Overrides: Overrides{BlockSizes: []int{2, 2}, Input: &unet.InputSpec{Height: 6, Width: 6, Channels: 1}},
		Batch:     1,
	})
	err := a.Run(context.Background())
	assert.ErrorIs(t, err, unet.ErrShapeMismatch)
	assert.ErrorContains(t, err, "failed to build model")
}
