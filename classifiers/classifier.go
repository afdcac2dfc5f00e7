// Package classifiers は画像などの多次元サンプルを扱う分類器ラッパーを提供する。
//
// 各ラッパーは未学習のモデルを1つだけ保持し、Train のたびに最初から学習し直す。
// サンプルは行優先で1次元に平坦化してからモデルに渡される。
//
// 使用例:
//
//	clf, err := classifiers.NewPolynomialClassifier(3)
//	if err != nil {
//	    return err
//	}
//	if err := clf.Train(XTrain, yTrain); err != nil {
//	    return err
//	}
//	acc, err := clf.Accuracy(XTest, yTest)
package classifiers

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/metrics"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
	"github.com/YuminosukeSato/mlsandbox/preprocessing"
)

// Classifier は学習・予測・評価をまとめた分類器の共通インターフェース
type Classifier interface {
	// Train は X（各要素は同じ形状）と y でモデルを学習し直す
	Train(X []mat.Matrix, y []int) error
	// Predict は X の各要素のラベルを入力順に返す
	Predict(X []mat.Matrix) ([]int, error)
	// Accuracy は正解率を [0, 1] で返す
	Accuracy(X []mat.Matrix, y []int) (float64, error)
	// Error は予測確率に対する真のラベルの平均交差エントロピーを返す
	Error(X []mat.Matrix, y []int) (float64, error)
}

// config は両ラッパー共通の設定
type config struct {
	regularization *float64
	randomState    *int64
	logger         log.Logger
}

// Option はラッパーの設定オプション
type Option func(*config)

// WithRegularization は正則化の強さを設定する。
// 多項式カーネルではSVMのC（大きいほど弱い正則化）、ニューラルネットではL2係数alpha。
func WithRegularization(r float64) Option {
	return func(c *config) { c.regularization = &r }
}

// WithRandomState は内部の乱数シードを固定する。未指定なら実行ごとに異なる
func WithRandomState(seed int64) Option {
	return func(c *config) { c.randomState = &seed }
}

// WithLogger はロガーを差し替える
func WithLogger(logger log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wrapper は model.Classifier を保持し、Classifier の共通処理を実装する
type wrapper struct {
	name   string
	model  model.Classifier
	logger log.Logger
}

func newWrapper(name string, m model.Classifier, c *config) wrapper {
	logger := c.logger
	if logger == nil {
		logger = log.GetLoggerWithName("classifiers")
	}
	if c.randomState != nil {
		logger = logger.With(log.RandomSeedKey, *c.randomState)
	}
	return wrapper{name: name, model: m, logger: logger.With(log.ModelNameKey, name)}
}

func checkLengths(op string, X []mat.Matrix, y []int) error {
	if len(X) != len(y) {
		return errors.NewDimensionError(op, len(X), len(y), 0)
	}
	return nil
}

// Train はサンプルを平坦化してモデルを学習する
func (w *wrapper) Train(X []mat.Matrix, y []int) (err error) {
	defer errors.Recover(&err, w.name+".Train")
	if err := checkLengths(w.name+".Train", X, y); err != nil {
		return err
	}
	flat, err := preprocessing.Flatten(X)
	if err != nil {
		return err
	}
	labels := mat.NewDense(len(y), 1, nil)
	for i, v := range y {
		labels.Set(i, 0, float64(v))
	}

	start := time.Now()
	if err := w.model.Fit(flat, labels); err != nil {
		w.logger.Error("Training failed", err, log.OperationKey, log.OperationFit)
		return err
	}
	_, cols := flat.Dims()
	w.logger.Info("Classifier trained",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(X),
		log.FeaturesKey, cols,
		log.ClassesKey, len(w.model.Classes()),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict はサンプルを平坦化してラベルを予測する
func (w *wrapper) Predict(X []mat.Matrix) (_ []int, err error) {
	defer errors.Recover(&err, w.name+".Predict")
	flat, err := preprocessing.Flatten(X)
	if err != nil {
		return nil, err
	}
	pred, err := w.model.Predict(flat)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(X))
	for i := range out {
		out[i] = int(pred.At(i, 0))
	}
	return out, nil
}

// Accuracy は正しく予測できたサンプルの割合を返す
func (w *wrapper) Accuracy(X []mat.Matrix, y []int) (float64, error) {
	if err := checkLengths(w.name+".Accuracy", X, y); err != nil {
		return 0, err
	}
	pred, err := w.Predict(X)
	if err != nil {
		return 0, err
	}
	acc, err := metrics.Accuracy(y, pred)
	if err != nil {
		return 0, err
	}
	w.logger.Debug("Accuracy computed", log.OperationKey, log.OperationScore, log.AccuracyKey, acc)
	return acc, nil
}

// Error は予測確率の下での y の平均交差エントロピー（log loss）を返す。
// y に学習時に存在しなかったラベルが含まれる場合はエラー。
func (w *wrapper) Error(X []mat.Matrix, y []int) (_ float64, err error) {
	defer errors.Recover(&err, w.name+".Error")
	if err := checkLengths(w.name+".Error", X, y); err != nil {
		return 0, err
	}
	flat, err := preprocessing.Flatten(X)
	if err != nil {
		return 0, err
	}
	proba, err := w.model.PredictProba(flat)
	if err != nil {
		return 0, err
	}
	loss, err := metrics.LogLoss(y, proba, w.model.Classes())
	if err != nil {
		return 0, err
	}
	w.logger.Debug("Log loss computed", log.OperationKey, log.OperationScore, log.LossKey, loss)
	return loss, nil
}

// Model は保持しているモデルを返す
func (w *wrapper) Model() model.Classifier {
	return w.model
}
