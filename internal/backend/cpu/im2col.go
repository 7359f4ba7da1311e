package cpu

import "github.com/born-ml/unet/internal/tensor"

// convGeom describes how a kernel slides over one [C, H, W] image.
//
// The column matrix produced by im2col has one row per (channel, kh, kw)
// kernel tap and one column per output position:
//
//	col: [C * K_h * K_w, H_out * W_out]
type convGeom struct {
	channels, height, width int
	kernelH, kernelW        int
	outH, outW              int
	stride, padding         int
}

func (g convGeom) imageSize() int { return g.channels * g.height * g.width }
func (g convGeom) colRows() int   { return g.channels * g.kernelH * g.kernelW }
func (g convGeom) colCols() int   { return g.outH * g.outW }

// im2col unfolds img into col. Taps that fall into the zero padding are 0.
func im2col[T tensor.DType](g convGeom, img, col []T) {
	cols := g.colCols()
	row := 0
	for c := 0; c < g.channels; c++ {
		plane := img[c*g.height*g.width : (c+1)*g.height*g.width]
		for kh := 0; kh < g.kernelH; kh++ {
			for kw := 0; kw < g.kernelW; kw++ {
				dst := col[row*cols : (row+1)*cols]
				i := 0
				for oh := 0; oh < g.outH; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.outW; ow++ {
						w := ow*g.stride - g.padding + kw
						if h >= 0 && h < g.height && w >= 0 && w < g.width {
							dst[i] = plane[h*g.width+w]
						} else {
							dst[i] = 0
						}
						i++
					}
				}
				row++
			}
		}
	}
}

// col2im is the adjoint of im2col: it folds col back into img, summing the
// contributions of overlapping taps. img must be zeroed by the caller.
func col2im[T tensor.DType](g convGeom, col, img []T) {
	cols := g.colCols()
	row := 0
	for c := 0; c < g.channels; c++ {
		plane := img[c*g.height*g.width : (c+1)*g.height*g.width]
		for kh := 0; kh < g.kernelH; kh++ {
			for kw := 0; kw < g.kernelW; kw++ {
				src := col[row*cols : (row+1)*cols]
				i := 0
				for oh := 0; oh < g.outH; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.outW; ow++ {
						w := ow*g.stride - g.padding + kw
						if h >= 0 && h < g.height && w >= 0 && w < g.width {
							plane[h*g.width+w] += src[i]
						}
						i++
					}
				}
				row++
			}
		}
	}
}
