package preprocessing

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// PolynomialFeatures はscikit-learn互換の多項式特徴量生成器
//
// 入力 [a, b] に対して degree=2 の場合 [1, a, b, a^2, ab, b^2] を生成する。
// 列は次数の昇順、同じ次数内では重複組合せの辞書順に並ぶ。
type PolynomialFeatures struct {
	state *model.StateManager

	// Degree は最大次数
	Degree int

	// IncludeBias は全て1の列（0次の項）を含めるかどうか (デフォルト: true)
	IncludeBias bool

	// InteractionOnly は同じ特徴量の累乗を含めず交互作用項のみを生成するかどうか
	InteractionOnly bool

	// nFeaturesIn_ は学習時の入力特徴量数
	nFeaturesIn_ int

	// powers_ は出力列ごとの入力特徴量インデックスの組合せ
	powers_ [][]int
}

// PolynomialFeaturesOption はPolynomialFeaturesの設定オプション
type PolynomialFeaturesOption func(*PolynomialFeatures)

// WithIncludeBias は0次の項を含めるかどうかを設定する
func WithIncludeBias(include bool) PolynomialFeaturesOption {
	return func(p *PolynomialFeatures) {
		p.IncludeBias = include
	}
}

// WithInteractionOnly は交互作用項のみを生成するかどうかを設定する
func WithInteractionOnly(only bool) PolynomialFeaturesOption {
	return func(p *PolynomialFeatures) {
		p.InteractionOnly = only
	}
}

// NewPolynomialFeatures は新しいPolynomialFeaturesを作成する
//
// 使用例:
//
//	poly, err := preprocessing.NewPolynomialFeatures(3, preprocessing.WithIncludeBias(false))
//	XPoly, err := poly.FitTransform(X)
func NewPolynomialFeatures(degree int, opts ...PolynomialFeaturesOption) (*PolynomialFeatures, error) {
	if degree < 0 {
		return nil, errors.NewValidationError("degree", "must be non-negative", degree)
	}
	p := &PolynomialFeatures{
		state:       model.NewStateManager(),
		Degree:      degree,
		IncludeBias: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if degree == 0 && !p.IncludeBias {
		return nil, errors.NewValidationError("degree", "degree 0 without bias produces no output features", degree)
	}
	return p, nil
}

// Fit は入力特徴量数を記録し出力列の組合せを決定する
func (p *PolynomialFeatures) Fit(X mat.Matrix) error {
	p.state.Reset()
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("PolynomialFeatures.Fit", "empty data", errors.ErrEmptyData)
	}

	p.nFeaturesIn_ = c
	p.powers_ = p.combinations(c)
	p.state.SetDimensions(c, r)
	p.state.SetFitted()
	return nil
}

// combinations は出力列ごとの入力インデックスの組を列挙する
func (p *PolynomialFeatures) combinations(nFeatures int) [][]int {
	var combos [][]int
	start := 1
	if p.IncludeBias {
		start = 0
	}
	for d := start; d <= p.Degree; d++ {
		combos = appendCombinations(combos, nil, 0, nFeatures, d, p.InteractionOnly)
	}
	return combos
}

// appendCombinations は itertools.combinations(_with_replacement) と同じ順序で
// 長さ k の非減少インデックス列を生成する
func appendCombinations(out [][]int, prefix []int, from, n, k int, distinct bool) [][]int {
	if k == 0 {
		combo := make([]int, len(prefix))
		copy(combo, prefix)
		return append(out, combo)
	}
	for i := from; i < n; i++ {
		next := i
		if distinct {
			next = i + 1
		}
		out = appendCombinations(out, append(prefix, i), next, n, k-1, distinct)
	}
	return out
}

// NOutputFeatures は出力特徴量の数を返す
func (p *PolynomialFeatures) NOutputFeatures() int {
	return len(p.powers_)
}

// Transform は多項式特徴量を生成する
func (p *PolynomialFeatures) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PolynomialFeatures", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := p.state.CheckFeatures("PolynomialFeatures.Transform", c); err != nil {
		return nil, err
	}
	if len(p.powers_) == 0 {
		return nil, errors.NewValueError("PolynomialFeatures.Transform", "no output features")
	}

	out := mat.NewDense(r, len(p.powers_), nil)
	for i := 0; i < r; i++ {
		for j, combo := range p.powers_ {
			v := 1.0
			for _, idx := range combo {
				v *= X.At(i, idx)
			}
			out.Set(i, j, v)
		}
	}
	log.GetLoggerWithName("preprocessing").Debug("Polynomial features generated",
		log.ModelNameKey, "PolynomialFeatures",
		log.OperationKey, log.OperationTransform,
		log.SamplesKey, r,
		log.FeaturesKey, len(p.powers_),
		"degree", p.Degree,
	)
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (p *PolynomialFeatures) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// FeatureNames は出力列の名前を返す（例: "1", "x0", "x0^2", "x0 x1"）
func (p *PolynomialFeatures) FeatureNames() []string {
	names := make([]string, len(p.powers_))
	for j, combo := range p.powers_ {
		if len(combo) == 0 {
			names[j] = "1"
			continue
		}
		var parts []string
		for k := 0; k < len(combo); {
			run := 1
			for k+run < len(combo) && combo[k+run] == combo[k] {
				run++
			}
			if run == 1 {
				parts = append(parts, fmt.Sprintf("x%d", combo[k]))
			} else {
				parts = append(parts, fmt.Sprintf("x%d^%d", combo[k], run))
			}
			k += run
		}
		names[j] = strings.Join(parts, " ")
	}
	return names
}

// GetParams はハイパーパラメータを返す
func (p *PolynomialFeatures) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"degree":           p.Degree,
		"include_bias":     p.IncludeBias,
		"interaction_only": p.InteractionOnly,
	}
}

// String はPolynomialFeaturesの文字列表現を返す
func (p *PolynomialFeatures) String() string {
	return fmt.Sprintf("PolynomialFeatures(degree=%d, include_bias=%t, interaction_only=%t)",
		p.Degree, p.IncludeBias, p.InteractionOnly)
}
