// Package imagedata はノイズを加えた8x8の数字画像データセットを訓練用とテスト用に分けて提供する。
//
// すべての画素に N(0, 1) のノイズを加えたあと、データセット全体の20%を抽出し、
// それをさらに訓練33%、テスト67%に分割する。訓練データは小さく、テストデータは大きい。
package imagedata

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
	"github.com/YuminosukeSato/mlsandbox/preprocessing"
	"github.com/YuminosukeSato/mlsandbox/sklearn/datasets"
	"github.com/YuminosukeSato/mlsandbox/sklearn/model_selection"
)

const (
	// BaseResolution is the side length of the bundled digit images.
	BaseResolution = datasets.DigitsRows

	subsampleFraction = 0.2
	trainFraction     = 0.33
	pixelNoiseStd     = 1.0
)

type config struct {
	randomState *int64
	resolution  int
	digitsFile  string
}

// Option はLoadの設定オプション
type Option func(*config)

// WithRandomState はノイズと分割の乱数シードを固定する。未指定なら呼び出しごとに異なる
func WithRandomState(seed int64) Option {
	return func(c *config) { c.randomState = &seed }
}

// WithDigitsFile は同梱データの代わりに digits.csv(.gz) 形式のファイルを読む
func WithDigitsFile(path string) Option {
	return func(c *config) { c.digitsFile = path }
}

// WithResolution は画像を最近傍補間で resolution×resolution に拡大する。
// resolution は8の倍数（デフォルト: 8、拡大なし）。
func WithResolution(resolution int) Option {
	return func(c *config) { c.resolution = resolution }
}

// Dataset は訓練用とテスト用の画像とラベル
type Dataset struct {
	XTrain, XTest []mat.Matrix
	YTrain, YTest []int
}

// Load は数字画像を読み込み、ノイズを加えて訓練・テストに分割する。
//
//	data, err := imagedata.Load()
//	err = clf.Train(data.XTrain, data.YTrain)
func Load(opts ...Option) (*Dataset, error) {
	cfg := &config{resolution: BaseResolution}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.resolution < BaseResolution || cfg.resolution%BaseResolution != 0 {
		return nil, errors.NewValidationError("resolution",
			fmt.Sprintf("must be a positive multiple of %d", BaseResolution), cfg.resolution)
	}

	var rng *rand.Rand
	if cfg.randomState != nil {
		rng = rand.New(rand.NewPCG(uint64(*cfg.randomState), 0))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	digits := datasets.LoadDigits()
	if cfg.digitsFile != "" {
		var err error
		if digits, err = datasets.LoadDigitsFile(cfg.digitsFile); err != nil {
			return nil, err
		}
	}
	images := make([]mat.Matrix, len(digits.Images))
	for i, img := range digits.Images {
		images[i] = upscale(img, cfg.resolution)
	}

	flat, err := preprocessing.Flatten(images)
	if err != nil {
		return nil, err
	}
	addPixelNoise(flat, rng)
	noisy, err := preprocessing.Unflatten(flat, cfg.resolution, cfg.resolution)
	if err != nil {
		return nil, err
	}

	subset, _, ySubset, _, err := model_selection.TrainTestSplit(noisy, digits.Target,
		model_selection.WithTrainSize(subsampleFraction),
		model_selection.WithRandomState(rng.Int64()),
	)
	if err != nil {
		return nil, err
	}
	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(subset, ySubset,
		model_selection.WithTrainSize(trainFraction),
		model_selection.WithRandomState(rng.Int64()),
	)
	if err != nil {
		return nil, err
	}

	fields := []any{
		"resolution", cfg.resolution,
		"n_train", len(XTrain),
		"n_test", len(XTest),
	}
	if cfg.randomState != nil {
		fields = append(fields, log.RandomSeedKey, *cfg.randomState)
	}
	if cfg.digitsFile != "" {
		fields = append(fields, "digits_file", cfg.digitsFile)
	}
	log.GetLoggerWithName("imagedata").Debug("Image data loaded", fields...)
	return &Dataset{XTrain: XTrain, XTest: XTest, YTrain: yTrain, YTest: yTest}, nil
}

// addPixelNoise は各画素に N(0, 1) のノイズを加える
func addPixelNoise(X *mat.Dense, src rand.Source) {
	noise := distuv.Normal{Mu: 0, Sigma: pixelNoiseStd, Src: src}
	X.Apply(func(_, _ int, v float64) float64 { return v + noise.Rand() }, X)
}

// upscale は各画素を (resolution/8)² ブロックに複製する
func upscale(img mat.Matrix, resolution int) mat.Matrix {
	r, c := img.Dims()
	if resolution == r && resolution == c {
		return img
	}
	scale := resolution / r
	out := mat.NewDense(resolution, resolution, nil)
	for i := 0; i < resolution; i++ {
		for j := 0; j < resolution; j++ {
			out.Set(i, j, img.At(i/scale, j/scale))
		}
	}
	return out
}
