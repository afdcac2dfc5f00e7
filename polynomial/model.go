package polynomial

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
	"github.com/YuminosukeSato/mlsandbox/preprocessing"
	"github.com/YuminosukeSato/mlsandbox/sklearn/linear_model"
	"github.com/YuminosukeSato/mlsandbox/sklearn/pipeline"
)

// Step names of the pipeline built by NewModel and NewRegularizedModel.
const (
	FeaturesStep   = "polynomial_features"
	RegressionStep = "linear_regression"
)

// DefaultRegularization はNewRegularizedModelのRidge係数のデフォルト値
const DefaultRegularization = 1e-7

// Predictor はスカラー入力から予測値を返すモデル
type Predictor interface {
	Predict(X []float64) ([]float64, error)
}

// Model は多項式特徴量と線形回帰をつないだパイプライン
type Model struct {
	degree      int
	regularized bool
	alpha       float64
	features    *preprocessing.PolynomialFeatures
	pipeline    *pipeline.Pipeline
	logger      log.Logger
}

// ModelOption はNewRegularizedModelの設定オプション
type ModelOption func(*Model)

// WithRegularization はRidgeの正則化係数alphaを設定する
func WithRegularization(alpha float64) ModelOption {
	return func(m *Model) { m.alpha = alpha }
}

func newModel(degree int, regularized bool, opts []ModelOption) (*Model, error) {
	m := &Model{
		degree:      degree,
		regularized: regularized,
		alpha:       DefaultRegularization,
		logger:      log.GetLoggerWithName("polynomial"),
	}
	for _, opt := range opts {
		opt(m)
	}

	if degree < 0 {
		return nil, errors.NewValidationError("degree", "must be non-negative", degree)
	}
	features, err := preprocessing.NewPolynomialFeatures(degree, preprocessing.WithIncludeBias(false))
	if err != nil {
		return nil, err
	}

	var regression interface{}
	if regularized {
		ridge, err := linear_model.NewRidge(linear_model.WithAlpha(m.alpha))
		if err != nil {
			return nil, err
		}
		regression = ridge
	} else {
		regression = linear_model.NewLinearRegression()
	}

	p, err := pipeline.New(
		pipeline.Step{Name: FeaturesStep, Estimator: features},
		pipeline.Step{Name: RegressionStep, Estimator: regression},
	)
	if err != nil {
		return nil, err
	}
	m.features = features
	m.pipeline = p
	return m, nil
}

// NewModel は次数 degree の多項式特徴量（バイアス項なし）と最小二乗法の線形回帰を組み合わせる
func NewModel(degree int) (*Model, error) {
	return newModel(degree, false, nil)
}

// NewRegularizedModel は NewModel の線形回帰をRidge回帰に置き換えたモデルを作る。
// 正則化係数のデフォルトは DefaultRegularization。
func NewRegularizedModel(degree int, opts ...ModelOption) (*Model, error) {
	return newModel(degree, true, opts)
}

func column(X []float64) *mat.Dense {
	if len(X) == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(len(X), 1, append([]float64(nil), X...))
}

// Fit はスカラー入力を1特徴量の列に変形して学習する
func (m *Model) Fit(X, y []float64) (err error) {
	defer errors.Recover(&err, "polynomial.Model.Fit")
	if len(X) != len(y) {
		return errors.NewDimensionError("polynomial.Model.Fit", len(X), len(y), 0)
	}
	if len(X) == 0 {
		return errors.NewModelError("polynomial.Model.Fit", "empty data", errors.ErrEmptyData)
	}

	start := time.Now()
	if err := m.pipeline.Fit(column(X), column(y)); err != nil {
		return err
	}
	m.logger.Debug("Polynomial model fitted",
		log.OperationKey, log.OperationFit,
		"degree", m.degree,
		log.RegularizationKey, m.regularizationValue(),
		log.SamplesKey, len(X),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict は各入力に対する予測値を返す
func (m *Model) Predict(X []float64) (_ []float64, err error) {
	defer errors.Recover(&err, "polynomial.Model.Predict")
	if len(X) == 0 {
		return nil, errors.NewModelError("polynomial.Model.Predict", "empty data", errors.ErrEmptyData)
	}
	pred, err := m.pipeline.Predict(column(X))
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// Score は決定係数 R² を返す
func (m *Model) Score(X, y []float64) (float64, error) {
	if len(X) != len(y) {
		return 0, errors.NewDimensionError("polynomial.Model.Score", len(X), len(y), 0)
	}
	if len(X) == 0 {
		return 0, errors.NewModelError("polynomial.Model.Score", "empty data", errors.ErrEmptyData)
	}
	r2, err := m.pipeline.Score(column(X), column(y))
	if err != nil {
		return 0, err
	}
	m.logger.Debug("Polynomial model scored",
		log.OperationKey, log.OperationScore,
		"degree", m.degree,
		log.SamplesKey, len(X),
		log.R2ScoreKey, r2,
	)
	return r2, nil
}

// Pipeline は内部のパイプラインを返す
func (m *Model) Pipeline() *pipeline.Pipeline {
	return m.pipeline
}

// Degree は多項式の次数を返す
func (m *Model) Degree() int {
	return m.degree
}

// Regularized はRidge回帰を使っているかを返す
func (m *Model) Regularized() bool {
	return m.regularized
}

func (m *Model) regularizationValue() float64 {
	if !m.regularized {
		return 0
	}
	return m.alpha
}

// Weights は最終段の線形モデルの係数を、特徴量名付きで書き出す
func (m *Model) Weights() (*model.ModelWeights, error) {
	step, _ := m.pipeline.NamedStep(RegressionStep)
	exporter, ok := step.(model.WeightExporter)
	if !ok {
		return nil, errors.NewValueError("polynomial.Model.Weights", "final step cannot export weights")
	}
	w, err := exporter.ExportWeights()
	if err != nil {
		return nil, err
	}
	w.Features = m.features.FeatureNames()
	w.Hyperparameters["degree"] = m.degree
	return w, nil
}
