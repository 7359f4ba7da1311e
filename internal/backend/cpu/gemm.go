package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/unet/internal/tensor"
)

// gemm computes c = op(a) @ op(b) + beta*c on dense row-major matrices.
//
// op(a) is m×k and op(b) is k×n; c is m×n. When transA is set, a is stored
// as k×m (likewise b as n×k for transB).
func gemm[T tensor.DType](transA, transB bool, m, n, k int, a, b []T, beta T, c []T) {
	tA, aRows, aCols := blas.NoTrans, m, k
	if transA {
		tA, aRows, aCols = blas.Trans, k, m
	}
	tB, bRows, bCols := blas.NoTrans, k, n
	if transB {
		tB, bRows, bCols = blas.Trans, n, k
	}

	switch cData := any(c).(type) {
	case []float32:
		blas32.Gemm(tA, tB, 1,
			blas32.General{Rows: aRows, Cols: aCols, Stride: aCols, Data: any(a).([]float32)},
			blas32.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float32)},
			float32(beta),
			blas32.General{Rows: m, Cols: n, Stride: n, Data: cData})
	case []float64:
		blas64.Gemm(tA, tB, 1,
			blas64.General{Rows: aRows, Cols: aCols, Stride: aCols, Data: any(a).([]float64)},
			blas64.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float64)},
			float64(beta),
			blas64.General{Rows: m, Cols: n, Stride: n, Data: cData})
	}
}
