package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unet/internal/parallel"
	"github.com/born-ml/unet/internal/tensor"
)

func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := raw32(t, tensor.Shape{1, 1, 3, 3}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	// Diagonal kernel:
	// 1 0
	// 0 1
	kernel := raw32(t, tensor.Shape{1, 1, 2, 2}, 1, 0, 0, 1)

	output := backend.Conv2D(input, kernel, 1, 0)

	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

func TestConv2D_WithPadding(t *testing.T) {
	backend := New()

	ones := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}
	input := raw32(t, tensor.Shape{1, 1, 3, 3}, ones...)
	kernel := raw32(t, tensor.Shape{1, 1, 3, 3}, ones...)

	output := backend.Conv2D(input, kernel, 1, 1)

	// Each output counts the in-bounds taps of its 3x3 window.
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, output.Shape())
	assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, output.AsFloat32())
}

func TestConv2D_MultiChannel(t *testing.T) {
	backend := New()

	// Two input channels, two output channels, 1x1 kernels mix channels.
	input := raw32(t, tensor.Shape{1, 2, 1, 2},
		1, 2, // channel 0
		10, 20) // channel 1
	kernel := raw32(t, tensor.Shape{2, 2, 1, 1},
		1, 1, // out 0 = c0 + c1
		2, -1) // out 1 = 2*c0 - c1

	output := backend.Conv2D(input, kernel, 1, 0)

	assert.Equal(t, tensor.Shape{1, 2, 1, 2}, output.Shape())
	assert.Equal(t, []float32{11, 22, -8, -16}, output.AsFloat32())
}

func TestConv2D_Stride(t *testing.T) {
	backend := New()

	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	input := raw32(t, tensor.Shape{1, 1, 4, 4}, data...)
	kernel := raw32(t, tensor.Shape{1, 1, 2, 2}, 1, 1, 1, 1)

	output := backend.Conv2D(input, kernel, 2, 0)

	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{14, 22, 46, 54}, output.AsFloat32())
}

func TestConv2D_BatchMatchesSequential(t *testing.T) {
	input := seq64(t, tensor.Shape{4, 3, 5, 5}, 0.1)
	kernel := seq64(t, tensor.Shape{2, 3, 3, 3}, 0.2)

	par := New().Conv2D(input, kernel, 1, 1)
	seq := NewWithConfig(parallel.Sequential()).Conv2D(input, kernel, 1, 1)

	assert.InDeltaSlice(t, seq.AsFloat64(), par.AsFloat64(), 1e-12)
}

// The input gradient is the adjoint of the forward map:
// <conv(x), g> == <x, conv_input_backward(g)>.
func TestConv2D_InputBackwardIsAdjoint(t *testing.T) {
	backend := New()

	for _, tc := range []struct {
		name            string
		stride, padding int
	}{
		{"valid", 1, 0},
		{"same", 1, 1},
		{"strided", 2, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			x := seq64(t, tensor.Shape{2, 3, 6, 6}, 0.3)
			k := seq64(t, tensor.Shape{4, 3, 3, 3}, 0.1)

			y := backend.Conv2D(x, k, tc.stride, tc.padding)
			g := seq64(t, y.Shape(), 0.7)

			gx := backend.Conv2DInputBackward(x, k, g, tc.stride, tc.padding)
			require.Equal(t, x.Shape(), gx.Shape())

			assert.InDelta(t, dot(y.AsFloat64(), g.AsFloat64()), dot(x.AsFloat64(), gx.AsFloat64()), 1e-9)
		})
	}
}

// Convolution is linear in the kernel too:
// <conv(x, k), g> == <k, conv_kernel_backward(x, g)>.
func TestConv2D_KernelBackwardIsAdjoint(t *testing.T) {
	backend := New()

	x := seq64(t, tensor.Shape{3, 2, 5, 5}, 0.2)
	k := seq64(t, tensor.Shape{3, 2, 3, 3}, 0.5)

	y := backend.Conv2D(x, k, 1, 1)
	g := seq64(t, y.Shape(), 0.4)

	gk := backend.Conv2DKernelBackward(x, k, g, 1, 1)
	require.Equal(t, k.Shape(), gk.Shape())

	assert.InDelta(t, dot(y.AsFloat64(), g.AsFloat64()), dot(k.AsFloat64(), gk.AsFloat64()), 1e-9)
}

func TestConv2D_Panics(t *testing.T) {
	backend := New()

	assert.Panics(t, func() {
		backend.Conv2D(raw32(t, tensor.Shape{1, 2, 3, 3}, make([]float32, 18)...),
			raw32(t, tensor.Shape{1, 1, 1, 1}, 1), 1, 0)
	}, "channel mismatch")
	assert.Panics(t, func() {
		backend.Conv2D(raw32(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4),
			raw32(t, tensor.Shape{1, 1, 3, 3}, make([]float32, 9)...), 1, 0)
	}, "kernel larger than input")
}
