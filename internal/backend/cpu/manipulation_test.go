package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/unet/internal/tensor"
)

func TestCat_ChannelAxis(t *testing.T) {
	backend := New()

	a := raw32(t, tensor.Shape{2, 1, 1, 2}, 1, 2, 3, 4)
	b := raw32(t, tensor.Shape{2, 2, 1, 2}, 10, 20, 30, 40, 50, 60, 70, 80)

	out := backend.Cat([]*tensor.RawTensor{a, b}, 1)

	assert.Equal(t, tensor.Shape{2, 3, 1, 2}, out.Shape())
	assert.Equal(t, []float32{
		1, 2, 10, 20, 30, 40, // batch 0
		3, 4, 50, 60, 70, 80, // batch 1
	}, out.AsFloat32())
}

func TestCat_NegativeDim(t *testing.T) {
	backend := New()

	a := raw32(t, tensor.Shape{2, 1}, 1, 2)
	b := raw32(t, tensor.Shape{2, 2}, 3, 4, 5, 6)

	out := backend.Cat([]*tensor.RawTensor{a, b}, -1)

	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{1, 3, 4, 2, 5, 6}, out.AsFloat32())
}

func TestCat_Panics(t *testing.T) {
	backend := New()

	assert.Panics(t, func() { backend.Cat(nil, 0) })
	assert.Panics(t, func() {
		backend.Cat([]*tensor.RawTensor{
			raw32(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4),
			raw32(t, tensor.Shape{1, 1, 1, 2}, 1, 2),
		}, 1)
	}, "spatial mismatch")
	assert.Panics(t, func() {
		backend.Cat([]*tensor.RawTensor{raw32(t, tensor.Shape{2}, 1, 2)}, 3)
	})
}
