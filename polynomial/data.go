// Package polynomial は1次元の多項式回帰のデモ一式を提供する。
//
// 真の関数 10·sin(3.3πx) + 20x + 5 にガウスノイズを加えた訓練・テストデータの生成、
// 多項式特徴量と線形回帰（またはRidge）を組み合わせたモデル、
// そしてデータ・モデル・真の関数を重ねて描画する可視化を含む。
package polynomial

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// データ生成の固定値
const (
	dataSeed   = 0
	noiseMean  = 0.0
	noiseStdev = 3.0
)

// TrueFunction はデータを生成する真の関数 10·sin(3.3πx) + 20x + 5
func TrueFunction(x float64) float64 {
	return 10*math.Sin(3.3*math.Pi*x) + 20*x + 5
}

// AddGaussianNoise は values の各要素に N(mean, std²) のノイズを加えた新しいスライスを返す。
// src が nil の場合はグローバルな乱数源を使う。
func AddGaussianNoise(values []float64, mean, std float64, src rand.Source) []float64 {
	noise := distuv.Normal{Mu: mean, Sigma: std, Src: src}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v + noise.Rand()
	}
	return out
}

func newSource() rand.Source {
	return rand.NewPCG(dataSeed, 0)
}

func apply(f func(float64) float64, X []float64) []float64 {
	y := make([]float64, len(X))
	for i, x := range X {
		y[i] = f(x)
	}
	return y
}

// TrainingData は [0, 1] を等間隔に分割した n 点と、ノイズ付きの目的変数を返す。
// シードは固定なので同じ n に対して常に同じ結果になる。
func TrainingData(n int) (X, y []float64) {
	if n <= 0 {
		return []float64{}, []float64{}
	}
	X = make([]float64, n)
	if n == 1 {
		X[0] = 0
	} else {
		floats.Span(X, 0, 1)
	}
	return X, AddGaussianNoise(apply(TrueFunction, X), noiseMean, noiseStdev, newSource())
}

// TestData は [0, 1) から一様に n 点を引いて昇順に並べ、ノイズ付きの目的変数を返す。
// 入力とノイズは同じ固定シードの乱数列から順に引く。
func TestData(n int) (X, y []float64) {
	if n <= 0 {
		return []float64{}, []float64{}
	}
	src := newSource()
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	X = make([]float64, n)
	for i := range X {
		X[i] = u.Rand()
	}
	sort.Float64s(X)
	return X, AddGaussianNoise(apply(TrueFunction, X), noiseMean, noiseStdev, src)
}
