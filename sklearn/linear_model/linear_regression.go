package linear_model

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// LinearRegression is a linear regression model using ordinary least squares.
//
// The system is solved through a thin SVD, which yields the minimum-norm
// solution when X is rank deficient (for example a high-degree polynomial
// expansion of a handful of points), matching scikit-learn's lstsq-based fit.
type LinearRegression struct {
	linearBase

	// rcond は特異値を切り捨てる相対閾値。0以下なら eps·max(n, p) を使う
	rcond float64

	rank_           int
	singularValues_ []float64
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithRcond は特異値の切り捨て閾値を設定
func WithRcond(rcond float64) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.rcond = rcond
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		linearBase: newLinearBase("LinearRegression"),
		rcond:      -1,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")
	lr.state.Reset()

	yv, err := lr.validateFitInput(X, y)
	if err != nil {
		return err
	}
	start := time.Now()
	rows, cols := X.Dims()

	Xc, yc, xMean, yMean := lr.center(X, yv)

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}

	rcond := lr.rcond
	if rcond <= 0 {
		rcond = 2.220446049250313e-16 * math.Max(float64(rows), float64(cols))
	}
	lr.singularValues_ = svd.Values(nil)
	lr.rank_ = svd.Rank(rcond)

	w := mat.NewVecDense(cols, nil)
	if lr.rank_ > 0 {
		var sol mat.Dense
		svd.SolveTo(&sol, yc, lr.rank_)
		w.CopyVec(sol.ColView(0))
	}

	lr.finish(w, xMean, yMean, rows)

	lr.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"rank", lr.rank_,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Rank は学習時の行列ランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank_
}

// SingularValues は中心化された X の特異値を返す
func (lr *LinearRegression) SingularValues() []float64 {
	return append([]float64(nil), lr.singularValues_...)
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// ExportWeights はモデルの重みをエクスポート
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	weights, err := lr.exportWeights(lr.GetParams())
	if err != nil {
		return nil, err
	}
	weights.Metadata["rank"] = lr.rank_
	return weights, nil
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, fitted=true)",
		lr.fitIntercept, nFeatures)
}
