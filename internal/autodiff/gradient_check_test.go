package autodiff_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unet/internal/autodiff"
	"github.com/born-ml/unet/internal/backend/cpu"
	"github.com/born-ml/unet/internal/tensor"
)

// wave fills a float64 tensor with distinct smooth values so that max-pool
// windows have no ties.
func wave(shape tensor.Shape, phase float64) *tensor.RawTensor {
	r := tensor.MustRaw(shape, tensor.Float64, tensor.CPU)
	for i := range r.AsFloat64() {
		r.AsFloat64()[i] = math.Sin(1.37*float64(i)+phase) * (1 + 0.01*float64(i))
	}
	return r
}

// miniUNet is one encoder step, one up-convolution and a skip merge,
// reduced to a scalar through a fixed weighting.
func miniUNet(b tensor.Backend, x, k1, k2, w *tensor.RawTensor) *tensor.RawTensor {
	h := b.ELU(b.Conv2D(x, k1, 1, 1), 1)
	p := b.MaxPool2D(h, 2, 2)
	u := b.Tanh(b.ConvTranspose2D(p, k2, 2))
	s := b.Softmax(b.Cat([]*tensor.RawTensor{u, h}, 1), 1)
	return b.Sum(b.Mul(s, w))
}

func numericalGradient(f func() float64, data []float64, eps float64) []float64 {
	grad := make([]float64, len(data))
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := f()
		data[i] = orig - eps
		minus := f()
		data[i] = orig
		grad[i] = (plus - minus) / (2 * eps)
	}
	return grad
}

func TestGradientCheck_MiniUNet(t *testing.T) {
	x := wave(tensor.Shape{2, 2, 4, 4}, 0)
	k1 := wave(tensor.Shape{3, 2, 3, 3}, 0.5)
	k2 := wave(tensor.Shape{3, 2, 2, 2}, 1.1)
	w := wave(tensor.Shape{2, 5, 4, 4}, 2.3)

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	loss := miniUNet(backend, x, k1, k2, w)
	grads := autodiff.Backward(tensor.New[float64](loss, backend), backend)

	inner := cpu.New()
	f := func() float64 { return miniUNet(inner, x, k1, k2, w).AsFloat64()[0] }

	for name, param := range map[string]*tensor.RawTensor{"input": x, "encoder kernel": k1, "upconv kernel": k2} {
		t.Run(name, func(t *testing.T) {
			got, ok := grads[param]
			require.True(t, ok, "no gradient reached %s", name)
			want := numericalGradient(f, param.AsFloat64(), 1e-6)
			assert.InDeltaSlice(t, want, got.AsFloat64(), 1e-6)
		})
	}
}

func TestGradientCheck_Activations(t *testing.T) {
	activations := map[string]func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor{
		"relu":    func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor { return b.ReLU(x) },
		"elu":     func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor { return b.ELU(x, 0.7) },
		"sigmoid": func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor { return b.Sigmoid(x) },
		"tanh":    func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor { return b.Tanh(x) },
		"softmax": func(b tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor { return b.Softmax(x, 1) },
	}

	for name, act := range activations {
		t.Run(name, func(t *testing.T) {
			x := wave(tensor.Shape{1, 3, 2, 2}, 0.2)
			w := wave(tensor.Shape{1, 3, 2, 2}, 1.7)

			backend := autodiff.New(cpu.New())
			backend.Tape().StartRecording()
			loss := backend.Sum(backend.Mul(act(backend, x), w))
			grads := autodiff.Backward(tensor.New[float64](loss, backend), backend)

			inner := cpu.New()
			want := numericalGradient(func() float64 {
				return inner.Sum(inner.Mul(act(inner, x), w)).AsFloat64()[0]
			}, x.AsFloat64(), 1e-6)

			assert.InDeltaSlice(t, want, grads[x].AsFloat64(), 1e-6)
		})
	}
}
