package neural_network

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// network は全結合ネットワークの構造を表す。パラメータは層ごとに
// 重み (fanIn×fanOut, 行優先) とバイアス (fanOut) の順で1本のベクトルに並ぶ。
type network struct {
	sizes  []int // 入力, 隠れ層..., 出力
	hidden activation
	binary bool // 出力がロジスティック1ユニットか（false ならソフトマックス）
	alpha  float64
}

func (n *network) nLayers() int { return len(n.sizes) - 1 }

func (n *network) nParams() int {
	total := 0
	for l := 0; l < n.nLayers(); l++ {
		total += n.sizes[l]*n.sizes[l+1] + n.sizes[l+1]
	}
	return total
}

// unpack は params を共有する重み行列とバイアスのビューを返す
func (n *network) unpack(params []float64) ([]*mat.Dense, [][]float64) {
	W := make([]*mat.Dense, n.nLayers())
	b := make([][]float64, n.nLayers())
	off := 0
	for l := 0; l < n.nLayers(); l++ {
		in, out := n.sizes[l], n.sizes[l+1]
		W[l] = mat.NewDense(in, out, params[off:off+in*out])
		off += in * out
		b[l] = params[off : off+out]
		off += out
	}
	return W, b
}

// initParams はGlorotの一様分布で重みとバイアスを初期化する
func (n *network) initParams(rng rand.Source, logistic bool) []float64 {
	params := make([]float64, n.nParams())
	factor := 6.0
	if logistic {
		factor = 2.0
	}
	off := 0
	for l := 0; l < n.nLayers(); l++ {
		in, out := n.sizes[l], n.sizes[l+1]
		bound := math.Sqrt(factor / float64(in+out))
		u := distuv.Uniform{Min: -bound, Max: bound, Src: rng}
		for k := 0; k < in*out+out; k++ {
			params[off+k] = u.Rand()
		}
		off += in*out + out
	}
	return params
}

// forward は各層の活性化を返す。activations[0] は入力、最後が出力確率
func (n *network) forward(X mat.Matrix, params []float64) []*mat.Dense {
	W, b := n.unpack(params)
	rows, _ := X.Dims()
	acts := make([]*mat.Dense, n.nLayers()+1)
	acts[0] = mat.DenseCopyOf(X)
	for l := 0; l < n.nLayers(); l++ {
		Z := mat.NewDense(rows, n.sizes[l+1], nil)
		Z.Mul(acts[l], W[l])
		for i := 0; i < rows; i++ {
			floats.Add(Z.RawRowView(i), b[l])
		}
		switch {
		case l < n.nLayers()-1:
			n.hidden.forward(Z)
		case n.binary:
			activations[ActivationLogistic].forward(Z)
		default:
			softmax(Z)
		}
		acts[l+1] = Z
	}
	return acts
}

// lossAndGrad は正則化付き交差エントロピー損失を計算し、grad が非nilなら勾配を書き込む。
// Y は二値なら n×1 の0/1、多クラスなら n×k のone-hot。
func (n *network) lossAndGrad(X mat.Matrix, Y *mat.Dense, params, grad []float64) float64 {
	acts := n.forward(X, params)
	out := acts[len(acts)-1]
	rows, cols := out.Dims()
	ns := float64(rows)

	eps := math.Nextafter(1, 2) - 1
	var loss float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := math.Min(math.Max(out.At(i, j), eps), 1-eps)
			y := Y.At(i, j)
			if n.binary {
				loss -= y*math.Log(p) + (1-y)*math.Log(1-p)
			} else if y != 0 {
				loss -= y * math.Log(p)
			}
		}
	}
	loss /= ns

	W, _ := n.unpack(params)
	var sq float64
	for _, w := range W {
		sq += mat.Norm(w, 2) * mat.Norm(w, 2)
	}
	loss += 0.5 * n.alpha * sq / ns

	if grad == nil {
		return loss
	}

	gW, gb := n.unpack(grad)
	// 出力層の誤差はロジスティック/ソフトマックスとも (p - y) / n
	delta := mat.NewDense(rows, cols, nil)
	delta.Sub(out, Y)
	delta.Scale(1/ns, delta)

	for l := n.nLayers() - 1; l >= 0; l-- {
		gW[l].Mul(acts[l].T(), delta)
		gW[l].Add(gW[l], scaled(n.alpha/ns, W[l]))
		for j := range gb[l] {
			gb[l][j] = floats.Sum(mat.Col(nil, j, delta))
		}
		if l == 0 {
			break
		}
		prev := mat.NewDense(rows, n.sizes[l], nil)
		prev.Mul(delta, W[l].T())
		n.hidden.backward(acts[l], prev)
		delta = prev
	}
	return loss
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var s mat.Dense
	s.Scale(f, m)
	return &s
}
