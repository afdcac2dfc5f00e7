// Package linear_model は最小二乗法とリッジ回帰による線形回帰モデルを提供する。
// どちらのモデルも fitIntercept が有効な場合は X と y を中心化してから係数を解き、
// 切片を intercept = ȳ - x̄·w として復元する。
package linear_model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/metrics"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// linearBase は学習済みパラメータと予測処理を共有する
type linearBase struct {
	state     *model.StateManager
	modelType string

	fitIntercept bool

	coef_      []float64
	intercept_ float64

	logger log.Logger
}

func newLinearBase(modelType string) linearBase {
	return linearBase{
		state:        model.NewStateManager(),
		modelType:    modelType,
		fitIntercept: true,
		logger:       log.GetLoggerWithName("linear_model").With(log.ModelNameKey, modelType),
	}
}

// validateFitInput はFitの入力を検証し y を列ベクトルとして返す
func (b *linearBase) validateFitInput(X, y mat.Matrix) (*mat.VecDense, error) {
	op := b.modelType + ".Fit"
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if rows != yRows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}
	yv := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yv.SetVec(i, y.At(i, 0))
	}
	return yv, nil
}

// center は列平均を引いた X のコピーと平均値を返す。
// fitIntercept が無効な場合は平均0として扱う。
func (b *linearBase) center(X mat.Matrix, y *mat.VecDense) (*mat.Dense, *mat.VecDense, []float64, float64) {
	rows, cols := X.Dims()
	Xc := mat.DenseCopyOf(X)
	yc := mat.VecDenseCopyOf(y)
	xMean := make([]float64, cols)
	yMean := 0.0
	if !b.fitIntercept {
		return Xc, yc, xMean, yMean
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, Xc)
		xMean[j] = floats.Sum(col) / float64(rows)
		floats.AddConst(-xMean[j], col)
		Xc.SetCol(j, col)
	}
	yMean = mat.Sum(yc) / float64(rows)
	for i := 0; i < rows; i++ {
		yc.SetVec(i, yc.AtVec(i)-yMean)
	}
	return Xc, yc, xMean, yMean
}

// finish は中心化された解から切片を復元し、学習済み状態にする
func (b *linearBase) finish(w *mat.VecDense, xMean []float64, yMean float64, nSamples int) {
	b.coef_ = make([]float64, w.Len())
	for j := range b.coef_ {
		b.coef_[j] = w.AtVec(j)
	}
	b.intercept_ = 0
	if b.fitIntercept {
		b.intercept_ = yMean - floats.Dot(xMean, b.coef_)
	}
	b.state.SetDimensions(len(b.coef_), nSamples)
	b.state.SetFitted()
}

// Predict は X·w + intercept を n×1 行列で返す
func (b *linearBase) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := b.state.RequireFitted(b.modelType, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := b.state.CheckFeatures(b.modelType+".Predict", cols); err != nil {
		return nil, err
	}

	pred := mat.NewVecDense(rows, nil)
	pred.MulVec(X, mat.NewVecDense(cols, b.Coef()))
	for i := 0; i < rows; i++ {
		pred.SetVec(i, pred.AtVec(i)+b.intercept_)
	}
	return mat.NewDense(rows, 1, pred.RawVector().Data), nil
}

// Score はモデルの決定係数（R²）を計算
func (b *linearBase) Score(X, y mat.Matrix) (float64, error) {
	pred, err := b.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	pRows, _ := pred.Dims()
	if rows != pRows {
		return 0, errors.NewDimensionError(b.modelType+".Score", pRows, rows, 0)
	}
	yTrue := mat.NewVecDense(rows, nil)
	yPred := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yTrue.SetVec(i, y.At(i, 0))
		yPred.SetVec(i, pred.At(i, 0))
	}
	return metrics.R2Score(yTrue, yPred)
}

// Coef は学習された重み係数のコピーを返す
func (b *linearBase) Coef() []float64 {
	if b.coef_ == nil {
		return nil
	}
	coef := make([]float64, len(b.coef_))
	copy(coef, b.coef_)
	return coef
}

// Intercept は学習された切片を返す
func (b *linearBase) Intercept() float64 {
	return b.intercept_
}

// IsFitted returns whether the model has been fitted
func (b *linearBase) IsFitted() bool {
	return b.state.IsFitted()
}

func (b *linearBase) exportWeights(hyper map[string]interface{}) (*model.ModelWeights, error) {
	if err := b.state.RequireFitted(b.modelType, "ExportWeights"); err != nil {
		return nil, err
	}
	weights := model.NewModelWeights(b.modelType, b.coef_, b.intercept_)
	for k, v := range hyper {
		weights.Hyperparameters[k] = v
	}
	nFeatures, nSamples := b.state.GetDimensions()
	weights.Metadata["n_features"] = nFeatures
	weights.Metadata["n_samples"] = nSamples
	return weights, nil
}
