package svm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/parallel"
)

// Kernel names accepted by WithKernel.
const (
	KernelLinear = "linear"
	KernelPoly   = "poly"
	KernelRBF    = "rbf"
)

// kernel evaluates K(x, z) from the inner product <x, z> and, for rbf, the
// squared norms of x and z.
type kernel struct {
	name   string
	gamma  float64
	coef0  float64
	degree int
}

func (k kernel) fromDot(dot, xx, zz float64) float64 {
	switch k.name {
	case KernelLinear:
		return dot
	case KernelPoly:
		return powi(k.gamma*dot+k.coef0, k.degree)
	case KernelRBF:
		d := xx + zz - 2*dot
		if d < 0 {
			d = 0
		}
		return math.Exp(-k.gamma * d)
	}
	panic("svm: unknown kernel " + k.name)
}

// powi computes base^n by repeated squaring, like libsvm's powi.
func powi(base float64, n int) float64 {
	result := 1.0
	for t := n; t > 0; t /= 2 {
		if t%2 == 1 {
			result *= base
		}
		base *= base
	}
	return result
}

func rowSquaredNorms(X mat.Matrix) []float64 {
	r, c := X.Dims()
	norms := make([]float64, r)
	for i := 0; i < r; i++ {
		var s float64
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			s += v * v
		}
		norms[i] = s
	}
	return norms
}

// matrix returns the n x m kernel matrix K[i][j] = K(A_i, B_j).
func (k kernel) matrix(A, B mat.Matrix) *mat.Dense {
	n, _ := A.Dims()
	m, _ := B.Dims()

	K := mat.NewDense(n, m, nil)
	K.Mul(A, B.T())

	var aa, bb []float64
	if k.name == KernelRBF {
		aa = rowSquaredNorms(A)
		bb = rowSquaredNorms(B)
	}

	parallel.ParallelizeWithThreshold(n, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := K.RawRowView(i)
			for j, dot := range row {
				var xx, zz float64
				if aa != nil {
					xx, zz = aa[i], bb[j]
				}
				row[j] = k.fromDot(dot, xx, zz)
			}
		}
	})
	return K
}
