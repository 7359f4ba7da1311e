package nn

import (
	"fmt"

	"github.com/born-ml/unet/internal/tensor"
)

// Rescale maps x to x*scale + offset.
//
// Rescale(1.0/255, 0) turns 8-bit pixel intensities into [0, 1].
type Rescale[B tensor.Backend] struct {
	identityShape
	scale  float32
	offset float32
}

// NewRescale creates a new Rescale module.
func NewRescale[B tensor.Backend](scale, offset float32) *Rescale[B] {
	return &Rescale[B]{scale: scale, offset: offset}
}

// Forward applies the affine rescaling.
func (r *Rescale[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input.MulScalar(r.scale)
	if r.offset != 0 {
		output = output.Add(tensor.Full[float32](tensor.Shape{1}, r.offset, input.Backend()))
	}
	return output
}

// Parameters returns nil (Rescale has no trainable parameters).
func (r *Rescale[B]) Parameters() []*Parameter[B] { return nil }

func (r *Rescale[B]) String() string {
	return fmt.Sprintf("Rescale(scale=%g, offset=%g)", r.scale, r.offset)
}
