// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/unet/internal/tensor"
)

// Randn creates a tensor with values drawn from N(0, 1).
// src may be nil to use the global random source.
func Randn[T DType, B Backend](shape Shape, src rand.Source, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, src, b)
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
// src may be nil to use the global random source.
func Rand[T DType, B Backend](shape Shape, src rand.Source, b B) *Tensor[T, B] {
	return tensor.Rand[T, B](shape, src, b)
}
