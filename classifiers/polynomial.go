package classifiers

import (
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/sklearn/svm"
)

// PolynomialClassifier の固定設定
const (
	polynomialMaxIter = 10000
	polynomialTol     = 1e-6
)

// PolynomialClassifier は多項式カーネルSVMによる分類器。
// 確率はPlattスケーリングで校正される。
type PolynomialClassifier struct {
	wrapper
	degree int
	c      float64
}

// NewPolynomialClassifier は次数 degree の多項式カーネル分類器を作成する。
// 正則化（SVMのC）のデフォルトは1。
func NewPolynomialClassifier(degree int, opts ...Option) (*PolynomialClassifier, error) {
	cfg := newConfig(opts)
	if degree <= 0 {
		return nil, errors.NewValidationError("degree", "must be a positive integer", degree)
	}
	c := 1.0
	if cfg.regularization != nil {
		c = *cfg.regularization
	}
	if c <= 0 {
		return nil, errors.NewValidationError("regularization", "must be positive", c)
	}

	svmOpts := []svm.Option{
		svm.WithKernel(svm.KernelPoly),
		svm.WithDegree(degree),
		svm.WithC(c),
		svm.WithMaxIter(polynomialMaxIter),
		svm.WithTol(polynomialTol),
		svm.WithProbability(true),
	}
	if cfg.randomState != nil {
		svmOpts = append(svmOpts, svm.WithRandomState(*cfg.randomState))
	}
	if cfg.logger != nil {
		svmOpts = append(svmOpts, svm.WithLogger(cfg.logger))
	}

	return &PolynomialClassifier{
		wrapper: newWrapper("PolynomialClassifier", svm.NewSVC(svmOpts...), cfg),
		degree:  degree,
		c:       c,
	}, nil
}

// Degree は多項式カーネルの次数を返す
func (p *PolynomialClassifier) Degree() int { return p.degree }

// Regularization はSVMのCを返す
func (p *PolynomialClassifier) Regularization() float64 { return p.c }

var _ Classifier = (*PolynomialClassifier)(nil)
