package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/unet/internal/tensor"
)

// raw32 builds a float32 RawTensor holding data.
func raw32(t *testing.T, shape tensor.Shape, data ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	require.Len(t, data, shape.NumElements())
	copy(r.AsFloat32(), data)
	return r
}

// seq64 builds a float64 RawTensor filled with a deterministic pattern.
func seq64(t *testing.T, shape tensor.Shape, scale float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	for i := range r.AsFloat64() {
		r.AsFloat64()[i] = scale * float64((i*7)%11-5)
	}
	return r
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
