package nn_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/unet/internal/autodiff"
	"github.com/born-ml/unet/internal/backend/cpu"
	"github.com/born-ml/unet/internal/nn"
	"github.com/born-ml/unet/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func TestParameter(t *testing.T) {
	backend := newBackend()

	data, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())

	grad, err := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())

	param.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestGlorotUniform_BoundsAndSeed(t *testing.T) {
	backend := cpu.New()

	w1 := nn.GlorotUniform(27, 48, tensor.Shape{16, 3, 3, 3}, nn.NewSource(42), backend)
	w2 := nn.GlorotUniform(27, 48, tensor.Shape{16, 3, 3, 3}, nn.NewSource(42), backend)
	w3 := nn.GlorotUniform(27, 48, tensor.Shape{16, 3, 3, 3}, nn.NewSource(43), backend)

	limit := float32(math.Sqrt(6.0 / 75))
	for _, v := range w1.Data() {
		assert.LessOrEqual(t, v, limit)
		assert.GreaterOrEqual(t, v, -limit)
	}
	assert.Equal(t, w1.Data(), w2.Data(), "same seed, same weights")
	assert.NotEqual(t, w1.Data(), w3.Data())
}

func TestConv2D_SamePadding(t *testing.T) {
	backend := newBackend()
	conv := nn.NewConv2D(3, 8, 3, nn.PaddingSame, nn.NewSource(1), backend)

	out := conv.Forward(tensor.Zeros[float32](tensor.Shape{2, 3, 16, 12}, backend))

	assert.Equal(t, tensor.Shape{2, 8, 16, 12}, out.Shape())
	assert.Equal(t, tensor.Shape{8, 3, 3, 3}, conv.Weight().Tensor().Shape())
	assert.Equal(t, tensor.Shape{8}, conv.Bias().Tensor().Shape())
	assert.Len(t, conv.Parameters(), 2)

	shape, err := conv.OutputShape(tensor.Shape{2, 3, 16, 12})
	require.NoError(t, err)
	assert.Equal(t, out.Shape(), shape)
}

func TestConv2D_ValidPadding(t *testing.T) {
	backend := newBackend()
	conv := nn.NewConv2D(1, 1, 3, nn.PaddingValid, nil, backend)

	shape, err := conv.OutputShape(tensor.Shape{1, 1, 5, 4})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1, 3, 2}, shape)

	_, err = conv.OutputShape(tensor.Shape{1, 1, 2, 5})
	assert.ErrorIs(t, err, nn.ErrShape)

	_, err = conv.OutputShape(tensor.Shape{1, 2, 5, 5})
	assert.ErrorIs(t, err, nn.ErrShape, "channel mismatch")
}

func TestConv2D_ForwardValues(t *testing.T) {
	backend := newBackend()
	conv := nn.NewConv2D(1, 1, 3, nn.PaddingSame, nil, backend)

	// Center tap only plus bias 0.5: output = input + 0.5
	w := conv.Weight().Tensor().Data()
	for i := range w {
		w[i] = 0
	}
	w[4] = 1
	conv.Bias().Tensor().Data()[0] = 0.5

	input, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	require.NoError(t, err)

	assert.Equal(t, []float32{1.5, 2.5, 3.5, 4.5}, conv.Forward(input).Data())
}

func TestConv2D_Panics(t *testing.T) {
	backend := newBackend()

	assert.Panics(t, func() { nn.NewConv2D(1, 1, 2, nn.PaddingSame, nil, backend) }, "even kernel with same padding")
	assert.Panics(t, func() { nn.NewConv2D(0, 1, 3, nn.PaddingSame, nil, backend) })
	assert.Panics(t, func() { nn.NewConv2D(1, 1, 3, nn.Padding("full"), nil, backend) })
	assert.NotPanics(t, func() { nn.NewConv2D(1, 1, 2, nn.PaddingValid, nil, backend) })
}

func TestParsePadding(t *testing.T) {
	p, err := nn.ParsePadding("valid")
	require.NoError(t, err)
	assert.Equal(t, nn.PaddingValid, p)
	assert.Equal(t, 0, p.Pixels(5))
	assert.Equal(t, 2, nn.PaddingSame.Pixels(5))

	_, err = nn.ParsePadding("reflect")
	assert.Error(t, err)
}

func TestConvTranspose2D_DoublesResolution(t *testing.T) {
	backend := newBackend()
	up := nn.NewConvTranspose2D(16, 8, 2, 2, nn.NewSource(3), backend)

	out := up.Forward(tensor.Zeros[float32](tensor.Shape{1, 16, 5, 7}, backend))

	assert.Equal(t, tensor.Shape{1, 8, 10, 14}, out.Shape())
	shape, err := up.OutputShape(tensor.Shape{1, 16, 5, 7})
	require.NoError(t, err)
	assert.Equal(t, out.Shape(), shape)
	assert.Equal(t, tensor.Shape{16, 8, 2, 2}, up.Weight().Tensor().Shape())

	_, err = up.OutputShape(tensor.Shape{1, 8, 5, 7})
	assert.ErrorIs(t, err, nn.ErrShape)
}

func TestMaxPool2D_Module(t *testing.T) {
	backend := newBackend()
	pool := nn.NewMaxPool2D(2, 2, backend)

	input, err := tensor.FromSlice([]float32{1, 5, 2, 0, 3, 4, 8, 1}, tensor.Shape{1, 1, 2, 4}, backend)
	require.NoError(t, err)

	out := pool.Forward(input)
	assert.Equal(t, []float32{5, 8}, out.Data())
	assert.Empty(t, pool.Parameters())

	shape, err := pool.OutputShape(tensor.Shape{4, 3, 7, 9})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3, 3, 4}, shape)

	_, err = pool.OutputShape(tensor.Shape{1, 1, 1, 4})
	assert.True(t, errors.Is(err, nn.ErrShape))
}

func TestNewActivation(t *testing.T) {
	backend := newBackend()
	input, err := tensor.FromSlice([]float32{-1, 0.5}, tensor.Shape{1, 2, 1, 1}, backend)
	require.NoError(t, err)

	tests := []struct {
		name string
		want []float64
	}{
		{"elu", []float64{math.Exp(-1) - 1, 0.5}},
		{"ReLU", []float64{0, 0.5}},
		{"sigmoid", []float64{1 / (1 + math.E), 1 / (1 + math.Exp(-0.5))}},
		{"tanh", []float64{math.Tanh(-1), math.Tanh(0.5)}},
		{"softmax", []float64{1 / (1 + math.Exp(1.5)), 1 / (1 + math.Exp(-1.5))}},
		{"linear", []float64{-1, 0.5}},
		{"", []float64{-1, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := nn.NewActivation[Backend](tt.name)
			require.NoError(t, err)
			assert.Empty(t, act.Parameters())

			out := act.Forward(input).Data()
			for i, w := range tt.want {
				assert.InDelta(t, w, float64(out[i]), 1e-6)
			}
		})
	}

	_, err = nn.NewActivation[Backend]("swish")
	assert.ErrorContains(t, err, "unknown activation")
	assert.Equal(t, []string{"elu", "linear", "relu", "sigmoid", "softmax", "tanh"}, nn.ActivationNames())
}

func TestDropout(t *testing.T) {
	backend := newBackend()
	drop := nn.NewDropout[Backend](0.5, nn.NewSource(11))
	input := tensor.Ones[float32](tensor.Shape{1, 4, 8, 8}, backend)

	out := drop.Forward(input).Data()
	zeros := 0
	for _, v := range out {
		if v == 0 {
			zeros++
			continue
		}
		assert.Equal(t, float32(2), v, "kept values are scaled by 1/(1-p)")
	}
	assert.Greater(t, zeros, 0)
	assert.Less(t, zeros, len(out))

	drop.SetTraining(false)
	assert.False(t, drop.Training())
	assert.Same(t, input, drop.Forward(input))

	assert.Panics(t, func() { nn.NewDropout[Backend](1, nil) })
}

func TestRescale(t *testing.T) {
	backend := newBackend()
	input, err := tensor.FromSlice([]float32{0, 51, 255}, tensor.Shape{1, 1, 1, 3}, backend)
	require.NoError(t, err)

	out := nn.NewRescale[Backend](1.0/255, 0).Forward(input).Data()
	assert.InDeltaSlice(t, []float32{0, 0.2, 1}, out, 1e-6)

	shifted := nn.NewRescale[Backend](2, -1).Forward(input).Data()
	assert.Equal(t, []float32{-1, 101, 509}, shifted)
}

func TestSequential(t *testing.T) {
	backend := newBackend()
	src := nn.NewSource(5)
	drop := nn.NewDropout[Backend](0.2, src)
	seq := nn.NewSequential[Backend](
		nn.NewConv2D(3, 4, 3, nn.PaddingSame, src, backend),
		nn.NewELU[Backend](1),
		drop,
	)
	seq.Add(nn.NewMaxPool2D(2, 2, backend))

	assert.Equal(t, 4, seq.Len())
	assert.Len(t, seq.Parameters(), 2)

	shape, err := seq.OutputShape(tensor.Shape{1, 3, 8, 8})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4, 4, 4}, shape)

	out := seq.Forward(tensor.Ones[float32](tensor.Shape{1, 3, 8, 8}, backend))
	assert.Equal(t, shape, out.Shape())

	_, err = seq.OutputShape(tensor.Shape{1, 2, 8, 8})
	assert.ErrorIs(t, err, nn.ErrShape)
	assert.ErrorContains(t, err, "layer 0")

	nn.SetTraining[Backend](seq, false)
	assert.False(t, drop.Training())

	assert.Contains(t, seq.String(), "Conv2D(in_channels=3")
	assert.Panics(t, func() { seq.Module(4) })
}

func TestAttachGradients(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	conv := nn.NewConv2D(2, 3, 3, nn.PaddingSame, nn.NewSource(9), backend)
	up := nn.NewConvTranspose2D(3, 2, 2, 2, nn.NewSource(9), backend)
	input := tensor.Ones[float32](tensor.Shape{1, 2, 4, 4}, backend)

	loss := up.Forward(conv.Forward(input)).Sum()
	grads := autodiff.Backward(loss, backend)

	params := append(conv.Parameters(), up.Parameters()...)
	assert.Equal(t, len(params), nn.AttachGradients(params, grads))
	for _, p := range params {
		require.NotNil(t, p.Grad(), p.Name())
		assert.Equal(t, p.Tensor().Shape(), p.Grad().Shape(), p.Name())
	}

	// d(Σ out)/d(bias_c) counts the output pixels of channel c.
	for _, g := range up.Parameters()[1].Grad().Data() {
		assert.InDelta(t, 64.0, float64(g), 1e-4)
	}
	assert.Equal(t, 2*3*9+3+3*2*4+2, nn.CountParameters(params))
}
