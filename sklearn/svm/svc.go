// Package svm はサポートベクターマシンによる分類器を提供する。
//
// SVC は libsvm と同じ定式化の C-SVC で、多クラスは one-vs-one で扱う。
// 各クラス対の双対問題を2次の作業集合選択付きSMOで解き、確率推定には
// 5分割交差検証による Platt スケーリングとペアワイズ結合を用いる。
package svm

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/metrics"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// probabilityFolds は確率推定の内部交差検証の分割数
const probabilityFolds = 5

func logger() log.Logger {
	return log.GetLoggerWithName("svm").With(log.ModelNameKey, "SVC")
}

// gammaMode はgammaの決め方
type gammaMode int

const (
	gammaScale gammaMode = iota // 1 / (n_features · Var(X))
	gammaAuto                   // 1 / n_features
	gammaValue                  // 明示的な値
)

// SVC はscikit-learn互換のカーネルSVM分類器
type SVC struct {
	state  *model.StateManager
	logger log.Logger

	// ハイパーパラメータ
	kernelName  string
	degree      int
	C           float64
	gamma       float64
	gammaMode   gammaMode
	coef0       float64
	tol         float64
	maxIter     int
	probability bool
	randomState *int64

	// 学習済みパラメータ
	classes_        []int
	gamma_          float64
	supportVectors_ *mat.Dense
	support_        []int
	nSupport_       []int
	dualCoef_       [][]float64 // ペアごとの、supportVectors_ の各行に対する α·y
	intercept_      []float64   // ペアごとの -ρ
	probA_          []float64
	probB_          []float64
	nIter_          []int
}

// Option はSVCの設定オプション
type Option func(*SVC)

// WithKernel はカーネルを設定する ("linear", "poly", "rbf")。デフォルトは "rbf"
func WithKernel(kernel string) Option {
	return func(s *SVC) { s.kernelName = kernel }
}

// WithDegree は多項式カーネルの次数を設定する（デフォルト: 3）
func WithDegree(degree int) Option {
	return func(s *SVC) { s.degree = degree }
}

// WithC は正則化パラメータCを設定する（デフォルト: 1.0）。小さいほど正則化が強い
func WithC(C float64) Option {
	return func(s *SVC) { s.C = C }
}

// WithGamma はカーネル係数を明示的に設定する。未指定時は "scale" 相当
func WithGamma(gamma float64) Option {
	return func(s *SVC) {
		s.gamma = gamma
		s.gammaMode = gammaValue
	}
}

// WithGammaAuto は gamma = 1 / n_features を使う
func WithGammaAuto() Option {
	return func(s *SVC) { s.gammaMode = gammaAuto }
}

// WithCoef0 は多項式カーネルの定数項を設定する（デフォルト: 0）
func WithCoef0(coef0 float64) Option {
	return func(s *SVC) { s.coef0 = coef0 }
}

// WithTol は停止条件の許容誤差を設定する（デフォルト: 1e-3）
func WithTol(tol float64) Option {
	return func(s *SVC) { s.tol = tol }
}

// WithMaxIter はSMOの反復回数の上限を設定する。-1 は無制限（デフォルト）
func WithMaxIter(maxIter int) Option {
	return func(s *SVC) { s.maxIter = maxIter }
}

// WithProbability はPlattスケーリングによる確率推定を有効にする
func WithProbability(probability bool) Option {
	return func(s *SVC) { s.probability = probability }
}

// WithRandomState は確率推定の交差検証で使う乱数シードを固定する
func WithRandomState(seed int64) Option {
	return func(s *SVC) { s.randomState = &seed }
}

// WithLogger はロガーを差し替える（デフォルトは svm コンポーネントのロガー）
func WithLogger(l log.Logger) Option {
	return func(s *SVC) { s.logger = l }
}

// NewSVC は新しいSVCを作成する
//
// 使用例:
//
//	clf := svm.NewSVC(svm.WithKernel("poly"), svm.WithDegree(3), svm.WithProbability(true))
//	err := clf.Fit(X, y)
//	proba, err := clf.PredictProba(X)
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		state:      model.NewStateManager(),
		logger:     logger(),
		kernelName: KernelRBF,
		degree:     3,
		C:          1.0,
		gammaMode:  gammaScale,
		tol:        1e-3,
		maxIter:    -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SVC) validateParams() error {
	switch s.kernelName {
	case KernelLinear, KernelPoly, KernelRBF:
	default:
		return errors.NewValidationError("kernel", "must be one of linear, poly, rbf", s.kernelName)
	}
	if s.degree < 0 {
		return errors.NewValidationError("degree", "must be non-negative", s.degree)
	}
	if s.C <= 0 || math.IsNaN(s.C) {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.gammaMode == gammaValue && s.gamma <= 0 {
		return errors.NewValidationError("gamma", "must be positive", s.gamma)
	}
	if s.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", s.tol)
	}
	if s.maxIter == 0 || s.maxIter < -1 {
		return errors.NewValidationError("max_iter", "must be positive or -1", s.maxIter)
	}
	return nil
}

// labelsFromColumn は n×1 行列を整数ラベルに変換する
func labelsFromColumn(op string, y mat.Matrix) ([]int, error) {
	rows, cols := y.Dims()
	if cols != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, errors.NewValueError(op, fmt.Sprintf("label %v at row %d is not an integer", v, i))
		}
		labels[i] = int(v)
	}
	return labels, nil
}

func uniqueSorted(labels []int) []int {
	seen := make(map[int]bool)
	var classes []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Ints(classes)
	return classes
}

func (s *SVC) newRand() *rand.Rand {
	if s.randomState == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(*s.randomState), 0))
}

func (s *SVC) kernel() kernel {
	return kernel{name: s.kernelName, gamma: s.gamma_, coef0: s.coef0, degree: s.degree}
}

// Fit はSVCを訓練データで学習する。y は整数ラベルを持つ n×1 行列
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")
	s.state.Reset()

	if err := s.validateParams(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, _ := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("SVC.Fit", rows, yRows, 0)
	}
	labels, err := labelsFromColumn("SVC.Fit", y)
	if err != nil {
		return err
	}
	classes := uniqueSorted(labels)
	if len(classes) < 2 {
		return errors.NewValueError("SVC.Fit",
			fmt.Sprintf("the number of classes has to be greater than one; got %d class", len(classes)))
	}

	start := time.Now()
	lg := s.logger
	lg.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(classes),
	)

	Xd := mat.DenseCopyOf(X)
	s.gamma_ = s.resolveGamma(Xd)
	K := s.kernel().matrix(Xd, Xd)
	kf := func(i, j int) float64 { return K.At(i, j) }

	// クラスごとのサンプル位置（元の順序を保つ）
	byClass := make([][]int, len(classes))
	classIndex := make(map[int]int, len(classes))
	for k, c := range classes {
		classIndex[c] = k
	}
	for i, l := range labels {
		k := classIndex[l]
		byClass[k] = append(byClass[k], i)
	}

	solver := &smo{K: kf, C: s.C, eps: s.tol, maxIter: s.maxIter}
	rng := s.newRand()

	nPairs := len(classes) * (len(classes) - 1) / 2
	problems := make([]binaryProblem, 0, nPairs)
	solutions := make([]binarySolution, 0, nPairs)
	s.probA_, s.probB_ = nil, nil
	s.nIter_ = make([]int, 0, nPairs)
	terminatedEarly := false

	for a := 0; a < len(classes); a++ {
		for b := a + 1; b < len(classes); b++ {
			p := pairProblem(byClass[a], byClass[b])

			if s.probability {
				A, B, early := s.probabilityParams(solver, p, kf, rng)
				terminatedEarly = terminatedEarly || early
				s.probA_ = append(s.probA_, A)
				s.probB_ = append(s.probB_, B)
			}

			sol := solver.solve(p)
			if !sol.converged {
				terminatedEarly = true
			}
			problems = append(problems, p)
			solutions = append(solutions, sol)
			s.nIter_ = append(s.nIter_, sol.iterations)

			lg.Debug("Pair solved",
				"pair", fmt.Sprintf("%d-%d", classes[a], classes[b]),
				log.IterationKey, sol.iterations,
				"rho", sol.rho,
			)
		}
	}

	if terminatedEarly {
		errors.Warn(errors.NewConvergenceWarning("SVC", s.maxIter,
			fmt.Sprintf("solver terminated early (max_iter=%d); consider scaling the data", s.maxIter)))
	}

	s.classes_ = classes
	s.collectSupport(Xd, labels, classIndex, problems, solutions)
	s.state.SetDimensions(cols, rows)
	s.state.SetFitted()

	lg.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.ClassesKey, len(classes),
		"n_support", len(s.support_),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// resolveGamma は gammaMode に従って実際のgammaを決める
func (s *SVC) resolveGamma(X *mat.Dense) float64 {
	_, cols := X.Dims()
	switch s.gammaMode {
	case gammaValue:
		return s.gamma
	case gammaAuto:
		return 1 / float64(cols)
	}
	raw := X.RawMatrix()
	data := raw.Data
	if raw.Stride != raw.Cols {
		data = mat.DenseCopyOf(X).RawMatrix().Data
	}
	v := stat.PopVariance(data, nil)
	if v == 0 {
		return 1
	}
	return 1 / (float64(cols) * v)
}

// pairProblem は正例（pos）を +1、負例（neg）を -1 とする二値問題を作る
func pairProblem(pos, neg []int) binaryProblem {
	p := binaryProblem{
		idx: make([]int, 0, len(pos)+len(neg)),
		y:   make([]float64, 0, len(pos)+len(neg)),
	}
	for _, i := range pos {
		p.idx = append(p.idx, i)
		p.y = append(p.y, 1)
	}
	for _, i := range neg {
		p.idx = append(p.idx, i)
		p.y = append(p.y, -1)
	}
	return p
}

// probabilityParams は交差検証で得た決定値にシグモイドを当てはめる
func (s *SVC) probabilityParams(solver *smo, p binaryProblem, K func(i, j int) float64, rng *rand.Rand) (A, B float64, terminatedEarly bool) {
	l := len(p.idx)
	perm := rng.Perm(l)
	dec := make([]float64, l)

	for fold := 0; fold < probabilityFolds; fold++ {
		begin := fold * l / probabilityFolds
		end := (fold + 1) * l / probabilityFolds

		var sub binaryProblem
		var pos, neg int
		for _, k := range append(append([]int(nil), perm[:begin]...), perm[end:]...) {
			sub.idx = append(sub.idx, p.idx[k])
			sub.y = append(sub.y, p.y[k])
			if p.y[k] > 0 {
				pos++
			} else {
				neg++
			}
		}

		switch {
		case pos == 0 && neg == 0:
			for _, k := range perm[begin:end] {
				dec[k] = 0
			}
		case neg == 0:
			for _, k := range perm[begin:end] {
				dec[k] = 1
			}
		case pos == 0:
			for _, k := range perm[begin:end] {
				dec[k] = -1
			}
		default:
			sol := solver.solve(sub)
			if !sol.converged {
				terminatedEarly = true
			}
			for _, k := range perm[begin:end] {
				dec[k] = sol.decision(sub, K, p.idx[k])
			}
		}
	}

	A, B = sigmoidTrain(dec, p.y, s.logger)
	return A, B, terminatedEarly
}

// collectSupport はすべてのクラス対のサポートベクターを集め、クラス順に並べる
func (s *SVC) collectSupport(X *mat.Dense, labels []int, classIndex map[int]int, problems []binaryProblem, solutions []binarySolution) {
	isSV := make(map[int]bool)
	for pi, sol := range solutions {
		for k, a := range sol.alpha {
			if a > 0 {
				isSV[problems[pi].idx[k]] = true
			}
		}
	}

	support := make([]int, 0, len(isSV))
	for i := range isSV {
		support = append(support, i)
	}
	sort.Slice(support, func(a, b int) bool {
		ca, cb := classIndex[labels[support[a]]], classIndex[labels[support[b]]]
		if ca != cb {
			return ca < cb
		}
		return support[a] < support[b]
	})

	position := make(map[int]int, len(support))
	s.nSupport_ = make([]int, len(s.classes_))
	for pos, i := range support {
		position[i] = pos
		s.nSupport_[classIndex[labels[i]]]++
	}

	_, cols := X.Dims()
	s.support_ = support
	if len(support) > 0 {
		s.supportVectors_ = mat.NewDense(len(support), cols, nil)
		for pos, i := range support {
			s.supportVectors_.SetRow(pos, X.RawRowView(i))
		}
	} else {
		s.supportVectors_ = nil
	}

	s.dualCoef_ = make([][]float64, len(solutions))
	s.intercept_ = make([]float64, len(solutions))
	for pi, sol := range solutions {
		coef := make([]float64, len(support))
		for k, a := range sol.alpha {
			if a > 0 {
				coef[position[problems[pi].idx[k]]] = a * problems[pi].y[k]
			}
		}
		s.dualCoef_[pi] = coef
		s.intercept_[pi] = -sol.rho
	}
}

// checkPredictInput は予測時の入力を検証する
func (s *SVC) checkPredictInput(method string, X mat.Matrix) error {
	if err := s.state.RequireFitted("SVC", method); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.NewModelError("SVC."+method, "empty data", errors.ErrEmptyData)
	}
	return s.state.CheckFeatures("SVC."+method, cols)
}

// decisionValues は n × n_pairs の one-vs-one 決定値を計算する
func (s *SVC) decisionValues(X mat.Matrix) *mat.Dense {
	rows, _ := X.Dims()
	nPairs := len(s.dualCoef_)
	dec := mat.NewDense(rows, nPairs, nil)

	if s.supportVectors_ == nil {
		for i := 0; i < rows; i++ {
			for p := 0; p < nPairs; p++ {
				dec.Set(i, p, s.intercept_[p])
			}
		}
		return dec
	}

	Ksv := s.kernel().matrix(X, s.supportVectors_)
	for p := 0; p < nPairs; p++ {
		col := mat.NewVecDense(rows, nil)
		col.MulVec(Ksv, mat.NewVecDense(len(s.dualCoef_[p]), s.dualCoef_[p]))
		for i := 0; i < rows; i++ {
			dec.Set(i, p, col.AtVec(i)+s.intercept_[p])
		}
	}
	return dec
}

// DecisionFunction は one-vs-one の決定値を n × k(k-1)/2 行列で返す。
// 列はクラス対 (0,1), (0,2), …, (k-2,k-1) の順で、正の値は対の前側のクラスを支持する。
func (s *SVC) DecisionFunction(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "SVC.DecisionFunction")
	if err := s.checkPredictInput("DecisionFunction", X); err != nil {
		return nil, err
	}
	return s.decisionValues(X), nil
}

// Predict は one-vs-one 投票でクラスを予測する。同票の場合は小さいクラスを選ぶ
func (s *SVC) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "SVC.Predict")
	if err := s.checkPredictInput("Predict", X); err != nil {
		return nil, err
	}

	dec := s.decisionValues(X)
	rows, _ := X.Dims()
	k := len(s.classes_)
	pred := mat.NewDense(rows, 1, nil)
	votes := make([]int, k)
	for i := 0; i < rows; i++ {
		for c := range votes {
			votes[c] = 0
		}
		p := 0
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				if dec.At(i, p) > 0 {
					votes[a]++
				} else {
					votes[b]++
				}
				p++
			}
		}
		best := 0
		for c := 1; c < k; c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		pred.Set(i, 0, float64(s.classes_[best]))
	}
	return pred, nil
}

// PredictProba は各クラスの確率を n × n_classes 行列で返す。列は Classes() の順
func (s *SVC) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "SVC.PredictProba")
	if err := s.checkPredictInput("PredictProba", X); err != nil {
		return nil, err
	}
	if s.probA_ == nil {
		return nil, errors.NewValueError("SVC.PredictProba",
			"probability estimates are not available; fit with WithProbability(true)")
	}

	dec := s.decisionValues(X)
	rows, _ := X.Dims()
	k := len(s.classes_)
	proba := mat.NewDense(rows, k, nil)

	r := make([][]float64, k)
	for a := range r {
		r[a] = make([]float64, k)
	}
	p := make([]float64, k)

	for i := 0; i < rows; i++ {
		pair := 0
		for a := 0; a < k; a++ {
			for b := a + 1; b < k; b++ {
				v := sigmoidPredict(dec.At(i, pair), s.probA_[pair], s.probB_[pair])
				v = errors.ClipValue(v, minPairwiseProb, 1-minPairwiseProb)
				r[a][b] = v
				r[b][a] = 1 - v
				pair++
			}
		}
		if k == 2 {
			p[0], p[1] = r[0][1], r[1][0]
		} else {
			multiclassProbability(r, p, s.logger)
		}
		proba.SetRow(i, p)
	}
	return proba, nil
}

// Score は平均正解率を返す
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := labelsFromColumn("SVC.Score", y)
	if err != nil {
		return 0, err
	}
	rows, _ := pred.Dims()
	yPred := make([]int, rows)
	for i := range yPred {
		yPred[i] = int(pred.At(i, 0))
	}
	return metrics.Accuracy(yTrue, yPred)
}

// Classes は学習時に見たクラスを昇順で返す
func (s *SVC) Classes() []int {
	return append([]int(nil), s.classes_...)
}

// NSupport はクラスごとのサポートベクター数を返す
func (s *SVC) NSupport() []int {
	return append([]int(nil), s.nSupport_...)
}

// Support は訓練データ中のサポートベクターの位置を返す
func (s *SVC) Support() []int {
	return append([]int(nil), s.support_...)
}

// SupportVectors はサポートベクターを行列で返す
func (s *SVC) SupportVectors() mat.Matrix {
	if s.supportVectors_ == nil {
		return nil
	}
	return mat.DenseCopyOf(s.supportVectors_)
}

// Gamma は学習時に使ったカーネル係数を返す
func (s *SVC) Gamma() float64 {
	return s.gamma_
}

// NIter はクラス対ごとのSMO反復回数を返す
func (s *SVC) NIter() []int {
	return append([]int(nil), s.nIter_...)
}

// GetParams はハイパーパラメータを返す
func (s *SVC) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"kernel":      s.kernelName,
		"degree":      s.degree,
		"C":           s.C,
		"coef0":       s.coef0,
		"tol":         s.tol,
		"max_iter":    s.maxIter,
		"probability": s.probability,
	}
	switch s.gammaMode {
	case gammaScale:
		params["gamma"] = "scale"
	case gammaAuto:
		params["gamma"] = "auto"
	default:
		params["gamma"] = s.gamma
	}
	return params
}

func (s *SVC) String() string {
	return fmt.Sprintf("SVC(kernel=%q, degree=%d, C=%g, probability=%t)", s.kernelName, s.degree, s.C, s.probability)
}

var _ model.Classifier = (*SVC)(nil)
