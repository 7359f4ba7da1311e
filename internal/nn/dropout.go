package nn

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/unet/internal/tensor"
)

// Dropout randomly zeroes elements during training.
//
// Inverted dropout: kept elements are scaled by 1/(1-rate) so the expected
// activation is unchanged and inference is the identity.
//
// Example:
//
//	drop := nn.NewDropout[Backend](0.1, nn.NewSource(7))
//	drop.SetTraining(false) // identity at inference
type Dropout[B tensor.Backend] struct {
	identityShape
	rate     float64
	src      rand.Source
	training bool
}

// NewDropout creates a Dropout module in training mode.
// Panics unless 0 <= rate < 1.
func NewDropout[B tensor.Backend](rate float64, src rand.Source) *Dropout[B] {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("dropout: rate must be in [0, 1), got %g", rate))
	}
	return &Dropout[B]{rate: rate, src: src, training: true}
}

// Forward applies a random keep-mask in training mode.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.rate == 0 {
		return input
	}

	keep := 1 - d.rate
	mask := tensor.Sample[float32](input.Shape(), distuv.Bernoulli{P: keep, Src: d.src}, input.Backend())
	scale := float32(1 / keep)
	data := mask.Data()
	for i := range data {
		data[i] *= scale
	}

	return input.Mul(mask)
}

// SetTraining implements ModeSetter.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Training reports whether the mask is applied.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// Rate returns the drop probability.
func (d *Dropout[B]) Rate() float64 {
	return d.rate
}

// Parameters returns nil (Dropout has no trainable parameters).
func (d *Dropout[B]) Parameters() []*Parameter[B] { return nil }

func (d *Dropout[B]) String() string { return fmt.Sprintf("Dropout(p=%g)", d.rate) }
