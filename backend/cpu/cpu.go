// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU compute backend.
//
// Convolutions run as im2col + BLAS GEMM; pooling and transposed
// convolutions fan out across batch and channel planes.
package cpu

import (
	internalcpu "github.com/born-ml/unet/internal/backend/cpu"
	"github.com/born-ml/unet/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 32, 32}, backend)
func New() *Backend {
	return internalcpu.New()
}
