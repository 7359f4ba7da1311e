package nn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/unet/internal/tensor"
)

// NewSource returns a deterministic random source for weight initialization
// and dropout masks.
func NewSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}

// GlorotUniform (Xavier) initialization for weights.
//
// Draws from U(-limit, limit) with limit = sqrt(6 / (fan_in + fan_out)).
// src may be nil to use the global random source.
func GlorotUniform[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Sample[float32](shape, distuv.Uniform{Min: -limit, Max: limit, Src: src}, backend)
}

// Zeros creates a float32 tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
