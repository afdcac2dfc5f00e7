package classifiers

import (
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/sklearn/neural_network"
)

// NeuralNetworkClassifier の固定設定
const (
	neuralNetworkMaxIter = 10000
	neuralNetworkMaxFun  = 1_000_000
	neuralNetworkTol     = 1e-6
)

// NeuralNetworkClassifier はReLU隠れ層とL-BFGSで学習する全結合ネットワーク分類器
type NeuralNetworkClassifier struct {
	wrapper
	hiddenLayerSizes []int
	alpha            float64
}

// NewNeuralNetworkClassifier は隠れ層のユニット数を指定して分類器を作成する。
// 正則化（L2係数alpha）のデフォルトは1e-4。
//
// 重み初期化は WithRandomState を指定しない限り実行ごとに異なる。
func NewNeuralNetworkClassifier(hiddenLayerSizes []int, opts ...Option) (*NeuralNetworkClassifier, error) {
	cfg := newConfig(opts)
	if len(hiddenLayerSizes) == 0 {
		return nil, errors.NewValidationError("hidden_layer_sizes", "must contain at least one layer", hiddenLayerSizes)
	}
	alpha := 1e-4
	if cfg.regularization != nil {
		alpha = *cfg.regularization
	}

	nnOpts := []neural_network.Option{
		neural_network.WithHiddenLayerSizes(hiddenLayerSizes...),
		neural_network.WithActivation(neural_network.ActivationReLU),
		neural_network.WithSolver(neural_network.SolverLBFGS),
		neural_network.WithAlpha(alpha),
		neural_network.WithEarlyStopping(false),
		neural_network.WithMaxIter(neuralNetworkMaxIter),
		neural_network.WithMaxFun(neuralNetworkMaxFun),
		neural_network.WithTol(neuralNetworkTol),
	}
	if cfg.randomState != nil {
		nnOpts = append(nnOpts, neural_network.WithRandomState(*cfg.randomState))
	}
	if cfg.logger != nil {
		nnOpts = append(nnOpts, neural_network.WithLogger(cfg.logger))
	}
	mlp, err := neural_network.NewMLPClassifier(nnOpts...)
	if err != nil {
		return nil, err
	}

	return &NeuralNetworkClassifier{
		wrapper:          newWrapper("NeuralNetworkClassifier", mlp, cfg),
		hiddenLayerSizes: append([]int(nil), hiddenLayerSizes...),
		alpha:            alpha,
	}, nil
}

// HiddenLayerSizes は隠れ層のユニット数を返す
func (n *NeuralNetworkClassifier) HiddenLayerSizes() []int {
	return append([]int(nil), n.hiddenLayerSizes...)
}

// Regularization はL2係数alphaを返す
func (n *NeuralNetworkClassifier) Regularization() float64 { return n.alpha }

var _ Classifier = (*NeuralNetworkClassifier)(nil)
