// Package neural_network は多層パーセプトロンによる分類器を提供する。
//
// MLPClassifier はscikit-learnの同名クラスにならい、隠れ層の活性化関数、
// 二値ならロジスティック出力、多クラスならソフトマックス出力を持つ。
// 重みはL-BFGS（gonum/optimize）で正則化付き交差エントロピーを最小化して学習する。
package neural_network

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/metrics"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// SolverLBFGS is the only supported solver.
const SolverLBFGS = "lbfgs"

// MLPClassifier は多層パーセプトロン分類器
type MLPClassifier struct {
	state  *model.StateManager
	logger log.Logger

	// ハイパーパラメータ
	hiddenLayerSizes []int
	activation       string
	solver           string
	alpha            float64
	maxIter          int
	maxFun           int
	tol              float64
	earlyStopping    bool
	randomState      *int64

	// nil のときは LBFGS 既定の MoreThuente
	linesearcher optimize.Linesearcher

	// 学習済みパラメータ
	classes_ []int
	net_     *network
	params_  []float64
	nIter_   int
	loss_    float64
}

// Option はMLPClassifierの設定オプション
type Option func(*MLPClassifier)

// WithHiddenLayerSizes は隠れ層のユニット数を設定する（デフォルト: [100]）
func WithHiddenLayerSizes(sizes ...int) Option {
	return func(m *MLPClassifier) {
		m.hiddenLayerSizes = append([]int(nil), sizes...)
	}
}

// WithActivation は隠れ層の活性化関数を設定する（デフォルト: "relu"）
func WithActivation(activation string) Option {
	return func(m *MLPClassifier) { m.activation = activation }
}

// WithSolver は最適化手法を設定する。現在は "lbfgs" のみ
func WithSolver(solver string) Option {
	return func(m *MLPClassifier) { m.solver = solver }
}

// WithAlpha はL2正則化の強さを設定する（デフォルト: 1e-4）
func WithAlpha(alpha float64) Option {
	return func(m *MLPClassifier) { m.alpha = alpha }
}

// WithMaxIter は最大反復回数を設定する（デフォルト: 200）
func WithMaxIter(maxIter int) Option {
	return func(m *MLPClassifier) { m.maxIter = maxIter }
}

// WithMaxFun は損失関数の最大評価回数を設定する（デフォルト: 15000）
func WithMaxFun(maxFun int) Option {
	return func(m *MLPClassifier) { m.maxFun = maxFun }
}

// WithTol は勾配ノルムによる停止の許容誤差を設定する（デフォルト: 1e-4）
func WithTol(tol float64) Option {
	return func(m *MLPClassifier) { m.tol = tol }
}

// WithEarlyStopping は早期終了を設定する。lbfgs では false のみ有効
func WithEarlyStopping(earlyStopping bool) Option {
	return func(m *MLPClassifier) { m.earlyStopping = earlyStopping }
}

// WithRandomState は重み初期化の乱数シードを固定する。未指定なら毎回異なる初期値になる
func WithRandomState(seed int64) Option {
	return func(m *MLPClassifier) { m.randomState = &seed }
}

// WithLogger はロガーを差し替える
func WithLogger(logger log.Logger) Option {
	return func(m *MLPClassifier) { m.logger = logger }
}

// NewMLPClassifier は新しいMLPClassifierを作成する
//
// 使用例:
//
//	clf, err := neural_network.NewMLPClassifier(
//	    neural_network.WithHiddenLayerSizes(10, 10),
//	    neural_network.WithMaxIter(10000),
//	)
func NewMLPClassifier(opts ...Option) (*MLPClassifier, error) {
	m := &MLPClassifier{
		state:            model.NewStateManager(),
		logger:           log.GetLoggerWithName("neural_network").With(log.ModelNameKey, "MLPClassifier"),
		hiddenLayerSizes: []int{100},
		activation:       ActivationReLU,
		solver:           SolverLBFGS,
		alpha:            1e-4,
		maxIter:          200,
		maxFun:           15000,
		tol:              1e-4,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.validateParams(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MLPClassifier) validateParams() error {
	for _, h := range m.hiddenLayerSizes {
		if h <= 0 {
			return errors.NewValidationError("hidden_layer_sizes", "must contain positive sizes", m.hiddenLayerSizes)
		}
	}
	if _, ok := activations[m.activation]; !ok {
		return errors.NewValidationError("activation", "must be one of identity, logistic, tanh, relu", m.activation)
	}
	if m.solver != SolverLBFGS {
		return errors.NewValidationError("solver", "only lbfgs is supported", m.solver)
	}
	if m.earlyStopping {
		return errors.NewValidationError("early_stopping", "not supported by the lbfgs solver", m.earlyStopping)
	}
	if m.alpha < 0 || math.IsNaN(m.alpha) {
		return errors.NewValidationError("alpha", "must be non-negative", m.alpha)
	}
	if m.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", m.maxIter)
	}
	if m.maxFun <= 0 {
		return errors.NewValidationError("max_fun", "must be positive", m.maxFun)
	}
	if m.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", m.tol)
	}
	return nil
}

func (m *MLPClassifier) newSource() rand.Source {
	if m.randomState == nil {
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return rand.NewPCG(uint64(*m.randomState), 0)
}

// encodeTargets は y を二値なら n×1 の0/1、多クラスなら one-hot にする
func encodeTargets(labels, classes []int) *mat.Dense {
	index := make(map[int]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	if len(classes) == 2 {
		Y := mat.NewDense(len(labels), 1, nil)
		for i, l := range labels {
			Y.Set(i, 0, float64(index[l]))
		}
		return Y
	}
	Y := mat.NewDense(len(labels), len(classes), nil)
	for i, l := range labels {
		Y.Set(i, index[l], 1)
	}
	return Y
}

func columnLabels(op string, y mat.Matrix) ([]int, error) {
	rows, cols := y.Dims()
	if cols != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}
	labels := make([]int, rows)
	for i := range labels {
		v := y.At(i, 0)
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError(op, fmt.Sprintf("label %v at row %d is not an integer", v, i))
		}
		labels[i] = int(v)
	}
	return labels, nil
}

// Fit はネットワークを学習する。y は整数ラベルを持つ n×1 行列。
// 呼び出すたびに重みを初期化し直す。
func (m *MLPClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLPClassifier.Fit")
	m.state.Reset()

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("MLPClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("MLPClassifier.Fit", rows, yRows, 0)
	}
	labels, err := columnLabels("MLPClassifier.Fit", y)
	if err != nil {
		return err
	}

	seen := make(map[int]bool)
	var classes []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Ints(classes)
	if len(classes) < 2 {
		return errors.NewValueError("MLPClassifier.Fit",
			fmt.Sprintf("the number of classes has to be greater than one; got %d class", len(classes)))
	}

	nOut := len(classes)
	if nOut == 2 {
		nOut = 1
	}
	sizes := append([]int{cols}, m.hiddenLayerSizes...)
	sizes = append(sizes, nOut)
	net := &network{
		sizes:  sizes,
		hidden: activations[m.activation],
		binary: nOut == 1,
		alpha:  m.alpha,
	}

	start := time.Now()
	m.logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(classes),
		"hidden_layer_sizes", m.hiddenLayerSizes,
	)

	Xd := mat.DenseCopyOf(X)
	Y := encodeTargets(labels, classes)
	initX := net.initParams(m.newSource(), m.activation == ActivationLogistic)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return net.lossAndGrad(Xd, Y, x, nil)
		},
		Grad: func(grad, x []float64) {
			net.lossAndGrad(Xd, Y, x, grad)
		},
	}
	result, err := m.minimize(problem, initX)
	if err != nil {
		return err
	}
	if err := errors.CheckNumericalStability("mlp_loss", []float64{result.F}, result.MajorIterations); err != nil {
		return err
	}

	m.classes_ = classes
	m.net_ = net
	m.params_ = append([]float64(nil), result.X...)
	m.nIter_ = result.iterations
	m.loss_ = result.F
	m.state.SetDimensions(cols, rows)
	m.state.SetFitted()

	m.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.IterationKey, m.nIter_,
		log.LossKey, m.loss_,
		"status", result.Status.String(),
		"restarts", result.restarts,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// maxLinesearchRestarts は直線探索が失敗したときに最後の点から L-BFGS を
// 再開する回数の上限
const maxLinesearchRestarts = 5

// minimizeResult は再開を含めた最適化全体の結果
type minimizeResult struct {
	*optimize.Result
	iterations  int
	evaluations int
	restarts    int
	lastErr     error
}

// minimize は L-BFGS を実行する。直線探索が失敗した場合は履歴を捨てて
// 到達点から再開し、反復と関数評価の予算は全体で共有する。
// 勾配が tol を下回らずに終わった場合は ConvergenceWarning を出す。
func (m *MLPClassifier) minimize(problem optimize.Problem, initX []float64) (*minimizeResult, error) {
	out := &minimizeResult{}
	x := initX
	for {
		settings := &optimize.Settings{
			GradientThreshold: m.tol,
			MajorIterations:   m.maxIter - out.iterations,
			FuncEvaluations:   m.maxFun - out.evaluations,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-10,
				Relative:   2.22e-9,
				Iterations: 20,
			},
		}
		result, err := optimize.Minimize(problem, x, settings, &optimize.LBFGS{Store: 10, Linesearcher: m.linesearcher})
		if result == nil {
			return nil, errors.Wrap(err, "MLPClassifier.Fit: optimization failed")
		}
		out.Result = result
		out.iterations += result.MajorIterations
		out.evaluations += result.FuncEvaluations
		out.lastErr = err

		if result.Status != optimize.Failure || out.restarts == maxLinesearchRestarts ||
			out.iterations >= m.maxIter || out.evaluations >= m.maxFun {
			break
		}
		out.restarts++
		m.logger.Debug("Restarting optimizer after line search failure",
			log.IterationKey, out.iterations,
			log.LossKey, result.F,
			"restart", out.restarts,
			"error", err,
		)
		x = result.X
	}

	if out.Status.Early() {
		reason := out.Status.Err()
		if out.lastErr != nil {
			reason = out.lastErr
		}
		errors.Warn(errors.NewConvergenceWarning("lbfgs", out.iterations,
			fmt.Sprintf("%v after %d restarts (status %s, gradient norm %.3g > tol %g); increase max_iter (%d) or max_fun (%d) or scale the data",
				reason, out.restarts, out.Status, floats.Norm(out.Gradient, math.Inf(1)), m.tol, m.maxIter, m.maxFun)))
	}
	return out, nil
}

func (m *MLPClassifier) checkPredictInput(method string, X mat.Matrix) error {
	if err := m.state.RequireFitted("MLPClassifier", method); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.NewModelError("MLPClassifier."+method, "empty data", errors.ErrEmptyData)
	}
	return m.state.CheckFeatures("MLPClassifier."+method, cols)
}

// PredictProba は各クラスの確率を n × n_classes 行列で返す
func (m *MLPClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "MLPClassifier.PredictProba")
	if err := m.checkPredictInput("PredictProba", X); err != nil {
		return nil, err
	}
	return m.proba(X), nil
}

func (m *MLPClassifier) proba(X mat.Matrix) *mat.Dense {
	acts := m.net_.forward(X, m.params_)
	out := acts[len(acts)-1]
	if !m.net_.binary {
		return out
	}
	rows, _ := out.Dims()
	P := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		p := out.At(i, 0)
		P.Set(i, 0, 1-p)
		P.Set(i, 1, p)
	}
	return P
}

// Predict は確率が最大のクラスを返す
func (m *MLPClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "MLPClassifier.Predict")
	if err := m.checkPredictInput("Predict", X); err != nil {
		return nil, err
	}
	P := m.proba(X)
	rows, _ := P.Dims()
	pred := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred.Set(i, 0, float64(m.classes_[floats.MaxIdx(P.RawRowView(i))]))
	}
	return pred, nil
}

// Score は平均正解率を返す
func (m *MLPClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := columnLabels("MLPClassifier.Score", y)
	if err != nil {
		return 0, err
	}
	yPred := make([]int, len(yTrue))
	if r, _ := pred.Dims(); r != len(yTrue) {
		return 0, errors.NewDimensionError("MLPClassifier.Score", r, len(yTrue), 0)
	}
	for i := range yPred {
		yPred[i] = int(pred.At(i, 0))
	}
	return metrics.Accuracy(yTrue, yPred)
}

// Classes は学習時に見たクラスを昇順で返す
func (m *MLPClassifier) Classes() []int {
	return append([]int(nil), m.classes_...)
}

// NIter はL-BFGSの反復回数を返す
func (m *MLPClassifier) NIter() int {
	return m.nIter_
}

// Loss は学習終了時の損失（正則化項込み）を返す
func (m *MLPClassifier) Loss() float64 {
	return m.loss_
}

// Coefs は層ごとの重み行列のコピーを返す
func (m *MLPClassifier) Coefs() []mat.Matrix {
	if m.net_ == nil {
		return nil
	}
	W, _ := m.net_.unpack(m.params_)
	out := make([]mat.Matrix, len(W))
	for l, w := range W {
		out[l] = mat.DenseCopyOf(w)
	}
	return out
}

// Intercepts は層ごとのバイアスのコピーを返す
func (m *MLPClassifier) Intercepts() [][]float64 {
	if m.net_ == nil {
		return nil
	}
	_, b := m.net_.unpack(m.params_)
	out := make([][]float64, len(b))
	for l, v := range b {
		out[l] = append([]float64(nil), v...)
	}
	return out
}

// GetParams はハイパーパラメータを返す
func (m *MLPClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": append([]int(nil), m.hiddenLayerSizes...),
		"activation":         m.activation,
		"solver":             m.solver,
		"alpha":              m.alpha,
		"max_iter":           m.maxIter,
		"max_fun":            m.maxFun,
		"tol":                m.tol,
		"early_stopping":     m.earlyStopping,
	}
}

func (m *MLPClassifier) String() string {
	return fmt.Sprintf("MLPClassifier(hidden_layer_sizes=%v, activation=%q, alpha=%g)",
		m.hiddenLayerSizes, m.activation, m.alpha)
}

var _ model.Classifier = (*MLPClassifier)(nil)
