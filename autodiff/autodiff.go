// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// New wraps any backend; while its tape is recording, every differentiable
// operation is stored so Backward can propagate gradients from a scalar
// loss to every input.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Forward(x).Sum()
//	grads := autodiff.Backward(loss, backend)
//	nn.AttachGradients(model.Parameters(), grads)
package autodiff

import (
	"github.com/born-ml/unet/internal/autodiff"
	"github.com/born-ml/unet/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// GradientTape records operations for backpropagation.
type GradientTape = autodiff.GradientTape

// BackwardCapable is implemented by backends that record a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// Backward computes gradients of t, which must be the last recorded output,
// keyed by the RawTensor of every recorded input.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
