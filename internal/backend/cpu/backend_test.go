package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/unet/internal/tensor"
)

func TestBackendMetadata(t *testing.T) {
	backend := New()

	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestAdd_SameShape(t *testing.T) {
	backend := New()

	out := backend.Add(raw32(t, tensor.Shape{2, 2}, 1, 2, 3, 4), raw32(t, tensor.Shape{2, 2}, 10, 20, 30, 40))

	assert.Equal(t, []float32{11, 22, 33, 44}, out.AsFloat32())
}

func TestAdd_BroadcastBias(t *testing.T) {
	backend := New()

	// Per-channel bias [1, C, 1, 1] added to [N, C, H, W].
	x := raw32(t, tensor.Shape{1, 2, 1, 2}, 1, 2, 3, 4)
	bias := raw32(t, tensor.Shape{1, 2, 1, 1}, 100, 200)

	out := backend.Add(x, bias)

	assert.Equal(t, tensor.Shape{1, 2, 1, 2}, out.Shape())
	assert.Equal(t, []float32{101, 102, 203, 204}, out.AsFloat32())
}

func TestSubMul_BroadcastRank(t *testing.T) {
	backend := New()

	x := raw32(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	row := raw32(t, tensor.Shape{3}, 1, 10, 100)

	assert.Equal(t, []float32{0, -8, -97, 3, -5, -94}, backend.Sub(x, row).AsFloat32())
	assert.Equal(t, []float32{1, 20, 300, 4, 50, 600}, backend.Mul(x, row).AsFloat32())
}

func TestBinary_Panics(t *testing.T) {
	backend := New()

	assert.Panics(t, func() {
		backend.Add(raw32(t, tensor.Shape{2}, 1, 2), raw32(t, tensor.Shape{3}, 1, 2, 3))
	}, "incompatible shapes")
	assert.Panics(t, func() {
		backend.Add(raw32(t, tensor.Shape{1}, 1), seq64(t, tensor.Shape{1}, 1))
	}, "dtype mismatch")
}

func TestMulScalarAndSum(t *testing.T) {
	backend := New()
	x := raw32(t, tensor.Shape{2, 2}, 1, 2, 3, 4)

	assert.Equal(t, []float32{0.5, 1, 1.5, 2}, backend.MulScalar(x, 0.5).AsFloat32())

	s := backend.Sum(x)
	assert.Equal(t, 0, len(s.Shape()))
	assert.Equal(t, []float32{10}, s.AsFloat32())
}

func TestReshape_SharesData(t *testing.T) {
	backend := New()
	x := raw32(t, tensor.Shape{2, 2}, 1, 2, 3, 4)

	y := backend.Reshape(x, tensor.Shape{4})
	y.AsFloat32()[0] = 42

	assert.Equal(t, tensor.Shape{4}, y.Shape())
	assert.Equal(t, float32(42), x.AsFloat32()[0])
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{3}) })
}
