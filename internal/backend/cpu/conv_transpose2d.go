package cpu

import (
	"fmt"

	"github.com/born-ml/unet/internal/parallel"
	"github.com/born-ml/unet/internal/tensor"
)

// ConvTranspose2D performs a 2D transposed convolution without padding.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [in_channels, out_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
//	out_h = (height - 1) * stride + kernel_h
//	out_w = (width - 1) * stride + kernel_w
//
// It is the adjoint of Conv2D: each input pixel scatters a kernel-sized patch
// into the output. With kernel == stride (the U-Net up-convolution) the
// patches tile the output exactly and spatial size is multiplied by stride.
func (cpu *CPUBackend) ConvTranspose2D(input, kernel *tensor.RawTensor, stride int) *tensor.RawTensor {
	g, batch, cIn := convTranspose2dGeom("conv_transpose2d", input, kernel, stride)

	output := tensor.MustRaw(tensor.Shape{batch, g.channels, g.height, g.width}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		convTranspose2dForward[float32](g, batch, cIn, input, kernel, output, cpu.imageParallel())
	case tensor.Float64:
		convTranspose2dForward[float64](g, batch, cIn, input, kernel, output, cpu.imageParallel())
	default:
		panic(fmt.Sprintf("conv_transpose2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// ConvTranspose2DInputBackward computes ∂L/∂input for ConvTranspose2D,
// which is an ordinary convolution of the output gradient with the kernel.
func (cpu *CPUBackend) ConvTranspose2DInputBackward(input, kernel, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	g, batch, cIn := convTranspose2dGeom("conv_transpose2d backward", input, kernel, stride)
	checkGradShape("conv_transpose2d backward", grad, tensor.Shape{batch, g.channels, g.height, g.width})

	inputGrad := tensor.MustRaw(input.Shape(), grad.DType(), cpu.device)

	switch grad.DType() {
	case tensor.Float32:
		convTranspose2dInputBackward[float32](g, batch, cIn, kernel, grad, inputGrad, cpu.imageParallel())
	case tensor.Float64:
		convTranspose2dInputBackward[float64](g, batch, cIn, kernel, grad, inputGrad, cpu.imageParallel())
	default:
		panic(fmt.Sprintf("conv_transpose2d backward: unsupported dtype %s", grad.DType()))
	}

	return inputGrad
}

// ConvTranspose2DKernelBackward computes ∂L/∂kernel for ConvTranspose2D.
func (cpu *CPUBackend) ConvTranspose2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride int) *tensor.RawTensor {
	g, batch, cIn := convTranspose2dGeom("conv_transpose2d backward", input, kernel, stride)
	checkGradShape("conv_transpose2d backward", grad, tensor.Shape{batch, g.channels, g.height, g.width})

	kernelGrad := tensor.MustRaw(kernel.Shape(), grad.DType(), cpu.device)

	switch grad.DType() {
	case tensor.Float32:
		convTranspose2dKernelBackward[float32](g, batch, cIn, input, grad, kernelGrad)
	case tensor.Float64:
		convTranspose2dKernelBackward[float64](g, batch, cIn, input, grad, kernelGrad)
	default:
		panic(fmt.Sprintf("conv_transpose2d backward: unsupported dtype %s", grad.DType()))
	}

	return kernelGrad
}

// convTranspose2dGeom returns the geometry of the equivalent forward
// convolution: the "image" is the transposed-conv output, and the column
// matrix has one column per transposed-conv input pixel.
func convTranspose2dGeom(op string, input, kernel *tensor.RawTensor, stride int) (convGeom, int, int) {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(input.Shape())))
	}
	if len(kernel.Shape()) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_in,C_out,K_h,K_w], got %dD", op, len(kernel.Shape())))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", op, stride))
	}
	checkSameDType(op, input, kernel)

	batch, cIn, h, w := input.Shape().NCHW()
	cInK, cOut, kh, kw := kernel.Shape().NCHW()
	if cIn != cInK {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, cIn, cInK))
	}

	return convGeom{
		channels: cOut, height: (h-1)*stride + kh, width: (w-1)*stride + kw,
		kernelH: kh, kernelW: kw,
		outH: h, outW: w,
		stride: stride,
	}, batch, cIn
}

func convTranspose2dForward[T tensor.DType](g convGeom, batch, cIn int, input, kernel, output *tensor.RawTensor, cfg parallel.Config) {
	in := tensor.As[T](input)
	k := tensor.As[T](kernel)
	out := tensor.As[T](output)
	inSize := cIn * g.colCols()
	outSize := g.imageSize()

	parallel.For(batch, func(b int) {
		col := make([]T, g.colRows()*g.colCols())
		gemm(true, false, g.colRows(), g.colCols(), cIn, k, in[b*inSize:(b+1)*inSize], 0, col)
		col2im(g, col, out[b*outSize:(b+1)*outSize])
	}, cfg)
}

func convTranspose2dInputBackward[T tensor.DType](g convGeom, batch, cIn int, kernel, grad, inputGrad *tensor.RawTensor, cfg parallel.Config) {
	k := tensor.As[T](kernel)
	gd := tensor.As[T](grad)
	ig := tensor.As[T](inputGrad)
	inSize := cIn * g.colCols()
	gradSize := g.imageSize()

	parallel.For(batch, func(b int) {
		col := make([]T, g.colRows()*g.colCols())
		im2col(g, gd[b*gradSize:(b+1)*gradSize], col)
		gemm(false, false, cIn, g.colCols(), g.colRows(), k, col, 0, ig[b*inSize:(b+1)*inSize])
	}, cfg)
}

func convTranspose2dKernelBackward[T tensor.DType](g convGeom, batch, cIn int, input, grad, kernelGrad *tensor.RawTensor) {
	in := tensor.As[T](input)
	gd := tensor.As[T](grad)
	kg := tensor.As[T](kernelGrad)
	inSize := cIn * g.colCols()
	gradSize := g.imageSize()

	col := make([]T, g.colRows()*g.colCols())
	for b := 0; b < batch; b++ {
		im2col(g, gd[b*gradSize:(b+1)*gradSize], col)
		gemm(false, true, cIn, g.colRows(), g.colCols(), in[b*inSize:(b+1)*inSize], col, 1, kg)
	}
}
