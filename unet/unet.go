// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package unet assembles U-Net segmentation networks.
//
// Example:
//
//	backend := cpu.New()
//	model, err := unet.Build(
//	    unet.InputSpec{Height: 256, Width: 256, Channels: 3},
//	    unet.Config{KernelSize: 3, BlockSizes: []int{16, 32, 64}, TargetClasses: 2},
//	    backend,
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(model.Summary())
package unet

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/unet/internal/unet"
	"github.com/born-ml/unet/tensor"
)

// Errors returned by Build.
var (
	ErrInvalidConfig = unet.ErrInvalidConfig
	ErrShapeMismatch = unet.ErrShapeMismatch
)

// Config holds the hyperparameters of a U-Net.
type Config = unet.Config

// InputSpec describes one input image.
type InputSpec = unet.InputSpec

// BlockOptions configures the convolution stacks shared by all blocks.
type BlockOptions = unet.BlockOptions

// Stage describes one step of an assembled model.
type Stage = unet.Stage

// Model is an assembled U-Net.
type Model[B tensor.Backend] = unet.Model[B]

// Block types.
type (
	EncoderBlock[B tensor.Backend] = unet.EncoderBlock[B]
	DecoderBlock[B tensor.Backend] = unet.DecoderBlock[B]
	BridgeBlock[B tensor.Backend]  = unet.BridgeBlock[B]
)

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config { return unet.DefaultConfig() }

// Build assembles and shape-checks a U-Net.
func Build[B tensor.Backend](input InputSpec, cfg Config, backend B) (*Model[B], error) {
	return unet.Build(input, cfg, backend)
}

// NewEncoderBlock creates an encoder block reading inChannels channels.
func NewEncoderBlock[B tensor.Backend](filters, inChannels int, opts BlockOptions, src rand.Source, backend B) (*EncoderBlock[B], error) {
	return unet.NewEncoderBlock(filters, inChannels, opts, src, backend)
}

// NewDecoderBlock creates a decoder block.
func NewDecoderBlock[B tensor.Backend](filters, skipChannels, prevChannels int, opts BlockOptions, src rand.Source, backend B) (*DecoderBlock[B], error) {
	return unet.NewDecoderBlock(filters, skipChannels, prevChannels, opts, src, backend)
}

// NewBridgeBlock creates a bridge block.
func NewBridgeBlock[B tensor.Backend](filters, inChannels int, opts BlockOptions, src rand.Source, backend B) (*BridgeBlock[B], error) {
	return unet.NewBridgeBlock(filters, inChannels, opts, src, backend)
}
