package linear_model

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// Ridge は L2 正則化付き最小二乗回帰
//
//	minimize ||y - Xw||² + alpha·||w||²
//
// 中心化した正規方程式 (XᵀX + αI) w = Xᵀy をCholesky分解で解く。
// 正定値でない場合（alpha = 0 かつ X がランク落ち）はLU分解に切り替える。
type Ridge struct {
	linearBase

	alpha float64
}

// RidgeOption は設定オプション
type RidgeOption func(*Ridge)

// WithAlpha は正則化の強さを設定
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) {
		r.alpha = alpha
	}
}

// WithRidgeFitIntercept は切片の学習有無を設定（Ridge用）
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) {
		r.fitIntercept = fit
	}
}

// NewRidge は新しいRidgeモデルを作成する。alpha のデフォルトは1.0
func NewRidge(options ...RidgeOption) (*Ridge, error) {
	r := &Ridge{
		linearBase: newLinearBase("Ridge"),
		alpha:      1.0,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.alpha < 0 {
		return nil, errors.NewValidationError("alpha", "must be non-negative", r.alpha)
	}
	return r, nil
}

// Fit はモデルを訓練データで学習
func (r *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")
	r.state.Reset()

	yv, err := r.validateFitInput(X, y)
	if err != nil {
		return err
	}
	start := time.Now()
	rows, cols := X.Dims()

	Xc, yc, xMean, yMean := r.center(X, yv)

	// A = XᵀX + αI
	A := mat.NewSymDense(cols, nil)
	A.SymOuterK(1, Xc.T())
	for j := 0; j < cols; j++ {
		A.SetSym(j, j, A.At(j, j)+r.alpha)
	}

	b := mat.NewVecDense(cols, nil)
	b.MulVec(Xc.T(), yc)

	w := mat.NewVecDense(cols, nil)
	solver := "cholesky"
	var chol mat.Cholesky
	if ok := chol.Factorize(A); ok {
		if err := chol.SolveVecTo(w, b); err != nil {
			return errors.NewModelError("Ridge.Fit", "cholesky solve failed", err)
		}
	} else {
		solver = "lu"
		if err := w.SolveVec(A, b); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return errors.NewModelError("Ridge.Fit", "singular matrix", errors.ErrSingularMatrix)
			}
			r.logger.Warn("Ill-conditioned normal equations",
				log.OperationKey, log.OperationFit,
				"condition", float64(cond),
			)
		}
	}

	if err := errors.CheckNumericalStability("Ridge.Fit", w.RawVector().Data, 0); err != nil {
		return err
	}

	r.finish(w, xMean, yMean, rows)

	r.logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.RegularizationKey, r.alpha,
		"solver", solver,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Alpha は正則化の強さを返す
func (r *Ridge) Alpha() float64 {
	return r.alpha
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.alpha,
		"fit_intercept": r.fitIntercept,
	}
}

// ExportWeights はモデルの重みをエクスポート
func (r *Ridge) ExportWeights() (*model.ModelWeights, error) {
	return r.exportWeights(r.GetParams())
}

// String returns the string representation of the model
func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.alpha, r.fitIntercept)
}

var (
	_ model.Regressor      = (*Ridge)(nil)
	_ model.LinearModel    = (*Ridge)(nil)
	_ model.WeightExporter = (*Ridge)(nil)
	_ model.Regressor      = (*LinearRegression)(nil)
	_ model.LinearModel    = (*LinearRegression)(nil)
	_ model.WeightExporter = (*LinearRegression)(nil)
)
