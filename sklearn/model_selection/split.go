// Package model_selection はデータ分割ユーティリティを提供する。
package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// DefaultTestSize はtrain/testどちらのサイズも指定されない場合のテスト比率
const DefaultTestSize = 0.25

type splitConfig struct {
	trainSize   float64
	testSize    float64
	shuffle     bool
	randomState *int64
}

// SplitOption はTrainTestSplitの設定オプション
type SplitOption func(*splitConfig)

// WithTrainSize は訓練データの比率 (0, 1) を設定する
func WithTrainSize(size float64) SplitOption {
	return func(c *splitConfig) {
		c.trainSize = size
	}
}

// WithTestSize はテストデータの比率 (0, 1) を設定する
func WithTestSize(size float64) SplitOption {
	return func(c *splitConfig) {
		c.testSize = size
	}
}

// WithShuffle は分割前にシャッフルするかどうかを設定する (デフォルト: true)
func WithShuffle(shuffle bool) SplitOption {
	return func(c *splitConfig) {
		c.shuffle = shuffle
	}
}

// WithRandomState はシャッフルの乱数シードを固定する。指定しない場合は実行ごとに異なる分割になる
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) {
		c.randomState = &seed
	}
}

// TrainTestSplit はサンプルとラベルを訓練用とテスト用に分割する
//
// サイズはscikit-learnと同じ規則で決まる: n_test = ceil(test·n)、n_train = floor(train·n)。
// 片方だけ指定された場合はもう片方が残り全てになる。シャッフル時はランダムな順列の先頭
// n_test 個がテスト、続く n_train 個が訓練になる。
//
// 使用例:
//
//	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(images, labels,
//	    model_selection.WithTrainSize(0.33))
func TrainTestSplit[S any, L any](X []S, y []L, opts ...SplitOption) (XTrain, XTest []S, yTrain, yTest []L, err error) {
	cfg := &splitConfig{shuffle: true}
	for _, opt := range opts {
		opt(cfg)
	}

	n := len(X)
	if n == 0 {
		return nil, nil, nil, nil, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", n, len(y), 0)
	}

	nTrain, nTest, err := splitSizes(n, cfg.trainSize, cfg.testSize)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	var testIdx, trainIdx []int
	if cfg.shuffle {
		perm := newRand(cfg.randomState).Perm(n)
		testIdx = perm[:nTest]
		trainIdx = perm[nTest : nTest+nTrain]
	} else {
		trainIdx = indices[:nTrain]
		testIdx = indices[nTrain : nTrain+nTest]
	}

	XTrain, yTrain = gather(X, y, trainIdx)
	XTest, yTest = gather(X, y, testIdx)
	return XTrain, XTest, yTrain, yTest, nil
}

func gather[S any, L any](X []S, y []L, idx []int) ([]S, []L) {
	xs := make([]S, len(idx))
	ys := make([]L, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = y[i]
	}
	return xs, ys
}

// splitSizes は訓練・テストのサンプル数を計算する
func splitSizes(n int, trainSize, testSize float64) (nTrain, nTest int, err error) {
	for _, p := range []struct {
		name string
		v    float64
	}{{"train_size", trainSize}, {"test_size", testSize}} {
		if p.v < 0 || p.v >= 1 || math.IsNaN(p.v) {
			return 0, 0, errors.NewValidationError(p.name, "must be in the open interval (0, 1)", p.v)
		}
	}
	if trainSize == 0 && testSize == 0 {
		testSize = DefaultTestSize
	}

	if testSize > 0 {
		nTest = int(math.Ceil(testSize * float64(n)))
	}
	if trainSize > 0 {
		nTrain = int(math.Floor(trainSize * float64(n)))
	}
	switch {
	case trainSize == 0:
		nTrain = n - nTest
	case testSize == 0:
		nTest = n - nTrain
	}

	if nTrain+nTest > n {
		return 0, 0, errors.NewValidationError("train_size",
			"train_size + test_size exceeds the number of samples", nTrain+nTest)
	}
	if nTrain == 0 || nTest == 0 {
		return 0, 0, errors.NewValueError("TrainTestSplit",
			"the resulting train or test set would be empty; adjust the split sizes")
	}
	return nTrain, nTest, nil
}

func newRand(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(*seed), 0))
}
