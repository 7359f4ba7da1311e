package cpu

import (
	"fmt"

	"github.com/born-ml/unet/internal/parallel"
	"github.com/born-ml/unet/internal/tensor"
)

// Conv2D performs 2D convolution using im2col + GEMM.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// Per image the kernel, viewed as a [C_out, C_in*K_h*K_w] matrix, is
// multiplied by the unfolded input [C_in*K_h*K_w, out_h*out_w]. The product
// is already laid out as [C_out, out_h, out_w].
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g, batch, cOut := conv2dGeom("conv2d", input, kernel, stride, padding)

	output := tensor.MustRaw(tensor.Shape{batch, cOut, g.outH, g.outW}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		conv2dForward[float32](g, batch, cOut, input, kernel, output, cpu.imageParallel())
	case tensor.Float64:
		conv2dForward[float64](g, batch, cOut, input, kernel, output, cpu.imageParallel())
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// Conv2DInputBackward computes ∂L/∂input for Conv2D.
//
// Per image: col = kernelᵀ @ grad, then col2im folds the taps back onto the
// input plane.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g, batch, cOut := conv2dGeom("conv2d backward", input, kernel, stride, padding)
	checkGradShape("conv2d backward", grad, tensor.Shape{batch, cOut, g.outH, g.outW})

	inputGrad := tensor.MustRaw(input.Shape(), grad.DType(), cpu.device)

	switch grad.DType() {
	case tensor.Float32:
		conv2dInputBackward[float32](g, batch, cOut, kernel, grad, inputGrad, cpu.imageParallel())
	case tensor.Float64:
		conv2dInputBackward[float64](g, batch, cOut, kernel, grad, inputGrad, cpu.imageParallel())
	default:
		panic(fmt.Sprintf("conv2d backward: unsupported dtype %s", grad.DType()))
	}

	return inputGrad
}

// Conv2DKernelBackward computes ∂L/∂kernel for Conv2D.
//
// The kernel gradient sums grad @ colᵀ over the batch.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g, batch, cOut := conv2dGeom("conv2d backward", input, kernel, stride, padding)
	checkGradShape("conv2d backward", grad, tensor.Shape{batch, cOut, g.outH, g.outW})

	kernelGrad := tensor.MustRaw(kernel.Shape(), grad.DType(), cpu.device)

	switch grad.DType() {
	case tensor.Float32:
		conv2dKernelBackward[float32](g, batch, cOut, input, grad, kernelGrad)
	case tensor.Float64:
		conv2dKernelBackward[float64](g, batch, cOut, input, grad, kernelGrad)
	default:
		panic(fmt.Sprintf("conv2d backward: unsupported dtype %s", grad.DType()))
	}

	return kernelGrad
}

// conv2dGeom validates Conv2D operands and derives the sliding geometry.
func conv2dGeom(op string, input, kernel *tensor.RawTensor, stride, padding int) (convGeom, int, int) {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(input.Shape())))
	}
	if len(kernel.Shape()) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernel.Shape())))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", op, stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("%s: invalid padding %d", op, padding))
	}
	checkSameDType(op, input, kernel)

	batch, cIn, h, w := input.Shape().NCHW()
	cOut, cInK, kh, kw := kernel.Shape().NCHW()
	if cIn != cInK {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, cIn, cInK))
	}

	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1
	if h+2*padding < kh || w+2*padding < kw {
		panic(fmt.Sprintf("%s: kernel %dx%d larger than padded input %dx%d", op, kh, kw, h+2*padding, w+2*padding))
	}

	return convGeom{
		channels: cIn, height: h, width: w,
		kernelH: kh, kernelW: kw,
		outH: hOut, outW: wOut,
		stride: stride, padding: padding,
	}, batch, cOut
}

func checkGradShape(op string, grad *tensor.RawTensor, want tensor.Shape) {
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: gradient shape %v, expected %v", op, grad.Shape(), want))
	}
}

// imageParallel fans out one image per goroutine.
func (cpu *CPUBackend) imageParallel() parallel.Config {
	return cpu.parallel.WithMinChunkSize(1)
}

func conv2dForward[T tensor.DType](g convGeom, batch, cOut int, input, kernel, output *tensor.RawTensor, cfg parallel.Config) {
	in := tensor.As[T](input)
	k := tensor.As[T](kernel)
	out := tensor.As[T](output)
	imgSize := g.imageSize()
	outSize := cOut * g.colCols()

	parallel.For(batch, func(b int) {
		col := make([]T, g.colRows()*g.colCols())
		im2col(g, in[b*imgSize:(b+1)*imgSize], col)
		gemm(false, false, cOut, g.colCols(), g.colRows(), k, col, 0, out[b*outSize:(b+1)*outSize])
	}, cfg)
}

func conv2dInputBackward[T tensor.DType](g convGeom, batch, cOut int, kernel, grad, inputGrad *tensor.RawTensor, cfg parallel.Config) {
	k := tensor.As[T](kernel)
	gd := tensor.As[T](grad)
	ig := tensor.As[T](inputGrad)
	imgSize := g.imageSize()
	gradSize := cOut * g.colCols()

	parallel.For(batch, func(b int) {
		col := make([]T, g.colRows()*g.colCols())
		gemm(true, false, g.colRows(), g.colCols(), cOut, k, gd[b*gradSize:(b+1)*gradSize], 0, col)
		col2im(g, col, ig[b*imgSize:(b+1)*imgSize])
	}, cfg)
}

func conv2dKernelBackward[T tensor.DType](g convGeom, batch, cOut int, input, grad, kernelGrad *tensor.RawTensor) {
	in := tensor.As[T](input)
	gd := tensor.As[T](grad)
	kg := tensor.As[T](kernelGrad)
	imgSize := g.imageSize()
	gradSize := cOut * g.colCols()

	col := make([]T, g.colRows()*g.colCols())
	for b := 0; b < batch; b++ {
		im2col(g, in[b*imgSize:(b+1)*imgSize], col)
		gemm(false, true, cOut, g.colRows(), g.colCols(), gd[b*gradSize:(b+1)*gradSize], col, 1, kg)
	}
}
