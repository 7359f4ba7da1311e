// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package unet_test

import (
	"fmt"

	"github.com/born-ml/unet/backend/cpu"
	"github.com/born-ml/unet/nn"
	"github.com/born-ml/unet/tensor"
	"github.com/born-ml/unet/unet"
)

func ExampleBuild() {
	backend := cpu.New()
	model, err := unet.Build(
		unet.InputSpec{Height: 64, Width: 64, Channels: 3},
		unet.Config{KernelSize: 3, BlockSizes: []int{8, 16, 32}, TargetClasses: 2},
		backend,
	)
	if err != nil {
		panic(err)
	}

	fmt.Println(model.NumEncoders(), model.NumDecoders(), model.Bridge().Filters())
	fmt.Println(model.OutputShape(4))
	// Output:
	// 3 3 64
	// [4 2 64 64]
}

func ExampleNewEncoderBlock() {
	backend := cpu.New()
	opts := unet.BlockOptions{KernelSize: 3, Depth: 2, PoolSize: 2, Activation: "relu", Padding: nn.PaddingSame}

	enc, err := unet.NewEncoderBlock(8, 3, opts, nn.NewSource(1), backend)
	if err != nil {
		panic(err)
	}

	skip, pooled := enc.Forward(tensor.Ones[float32](tensor.Shape{1, 3, 16, 16}, backend))
	fmt.Println(skip.Shape(), pooled.Shape())
	// Output:
	// [1 8 16 16] [1 8 8 8]
}
