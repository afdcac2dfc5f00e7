package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/parallel"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// Flatten は各サンプル行列を行優先で1行に展開し n x (r*c) の行列を返す。
// 学習パラメータを持たないステートレスな変換で、全サンプルの形状が一致している必要がある。
func Flatten(X []mat.Matrix) (*mat.Dense, error) {
	if len(X) == 0 {
		return nil, errors.NewModelError("Flatten", "empty data", errors.ErrEmptyData)
	}
	r, c := X[0].Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("Flatten", "empty sample", errors.ErrEmptyData)
	}
	for i, x := range X {
		xr, xc := x.Dims()
		if xr != r || xc != c {
			return nil, errors.NewInputShapeError("transform", i, []int{r, c}, []int{xr, xc})
		}
	}

	width := r * c
	out := mat.NewDense(len(X), width, nil)
	parallel.ParallelizeWithThreshold(len(X), parallel.DefaultThreshold, func(start, end int) {
		for n := start; n < end; n++ {
			row := out.RawRowView(n)
			flattenInto(row, X[n], r, c)
		}
	})
	return out, nil
}

func flattenInto(dst []float64, x mat.Matrix, r, c int) {
	if d, ok := x.(*mat.Dense); ok {
		raw := d.RawMatrix()
		for i := 0; i < r; i++ {
			copy(dst[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
		}
		return
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst[i*c+j] = x.At(i, j)
		}
	}
}

// Unflatten は Flatten の逆変換で、各行を rows x cols の行列に戻す
func Unflatten(X mat.Matrix, rows, cols int) ([]mat.Matrix, error) {
	n, width := X.Dims()
	if width != rows*cols {
		return nil, errors.NewDimensionError("Unflatten", rows*cols, width, 1)
	}
	out := make([]mat.Matrix, n)
	for i := 0; i < n; i++ {
		data := make([]float64, width)
		mat.Row(data, i, X)
		out[i] = mat.NewDense(rows, cols, data)
	}
	return out, nil
}
