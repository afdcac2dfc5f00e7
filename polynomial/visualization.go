package polynomial

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// 描画の固定値
const (
	curvePoints = 100
	yMargin     = 5.0
	plotWidth   = 6 * vg.Inch
	plotHeight  = 4 * vg.Inch
)

var (
	dataColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	modelColor = color.RGBA{R: 255, G: 165, A: 255}
	predColor  = color.RGBA{R: 255, A: 255}
	trueColor  = color.RGBA{G: 128, A: 255}
)

type visualizeConfig struct {
	model        Predictor
	trueFunction func(float64) float64
	title        string
}

// VisualizeOption はVisualizeModelの設定オプション
type VisualizeOption func(*visualizeConfig)

// WithModel は学習済みモデルの曲線と訓練点での予測値を重ねて描く
func WithModel(m Predictor) VisualizeOption {
	return func(c *visualizeConfig) { c.model = m }
}

// WithTrueFunction は真の関数の曲線を重ねて描く
func WithTrueFunction(f func(float64) float64) VisualizeOption {
	return func(c *visualizeConfig) { c.trueFunction = f }
}

// WithTitle はプロットのタイトルを設定する
func WithTitle(title string) VisualizeOption {
	return func(c *visualizeConfig) { c.title = title }
}

func xys(X, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(X))
	for i := range X {
		pts[i].X = X[i]
		pts[i].Y = y[i]
	}
	return pts
}

// VisualizeModel は生データの散布図を描き、指定に応じてモデルの曲線、
// 訓練点での予測値、真の関数を重ねたプロットを返す。
// y軸の範囲は [min(y)-5, max(y)+5] に固定される。
func VisualizeModel(X, y []float64, opts ...VisualizeOption) (*plot.Plot, error) {
	if len(X) != len(y) {
		return nil, errors.NewDimensionError("polynomial.VisualizeModel", len(X), len(y), 0)
	}
	if len(X) == 0 {
		return nil, errors.NewModelError("polynomial.VisualizeModel", "empty data", errors.ErrEmptyData)
	}
	cfg := &visualizeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	p := plot.New()
	p.Title.Text = cfg.title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "y"
	p.Y.Min = floats.Min(y) - yMargin
	p.Y.Max = floats.Max(y) + yMargin
	p.Legend.Top = true

	raw, err := plotter.NewScatter(xys(X, y))
	if err != nil {
		return nil, errors.Wrap(err, "raw data scatter")
	}
	raw.GlyphStyle.Color = dataColor
	raw.GlyphStyle.Radius = vg.Points(2)
	raw.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(raw)
	p.Legend.Add("Raw data", raw)

	axis := make([]float64, curvePoints)
	floats.Span(axis, 0, 1)

	if cfg.model != nil {
		curve, err := cfg.model.Predict(axis)
		if err != nil {
			return nil, err
		}
		line, err := plotter.NewLine(xys(axis, curve))
		if err != nil {
			return nil, errors.Wrap(err, "model curve")
		}
		line.LineStyle.Color = modelColor
		line.LineStyle.Width = vg.Points(1.5)

		pred, err := cfg.model.Predict(X)
		if err != nil {
			return nil, err
		}
		predicted, err := plotter.NewScatter(xys(X, pred))
		if err != nil {
			return nil, errors.Wrap(err, "predicted scatter")
		}
		predicted.GlyphStyle.Color = predColor
		predicted.GlyphStyle.Radius = vg.Points(2.5)
		predicted.GlyphStyle.Shape = draw.CrossGlyph{}

		p.Add(line, predicted)
		p.Legend.Add("Trained model", line)
		p.Legend.Add("Predicted data", predicted)
	}

	if cfg.trueFunction != nil {
		truth := make([]float64, curvePoints)
		for i, x := range axis {
			truth[i] = cfg.trueFunction(x)
		}
		line, err := plotter.NewLine(xys(axis, truth))
		if err != nil {
			return nil, errors.Wrap(err, "true function curve")
		}
		line.LineStyle.Color = trueColor
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("True function", line)
	}

	return p, nil
}

// SavePlot はプロットをファイルに書き出す。形式は拡張子（.png, .svg, .pdf など）で決まる。
// 親ディレクトリがなければ作成する。
func SavePlot(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create directory for %s", path)
		}
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return errors.Wrapf(err, "save plot to %s", path)
	}
	return nil
}

// FitAndPlot は次数 degree のモデル（regularized ならRidge）を X, y で学習し、
// データ・モデル・真の関数を重ねたプロットを path に保存する。学習済みモデルを返す。
func FitAndPlot(degree int, X, y []float64, regularized bool, path string) (*Model, error) {
	var (
		m   *Model
		err error
	)
	if regularized {
		m, err = NewRegularizedModel(degree)
	} else {
		m, err = NewModel(degree)
	}
	if err != nil {
		return nil, err
	}
	if err := m.Fit(X, y); err != nil {
		return nil, err
	}

	p, err := VisualizeModel(X, y, WithModel(m), WithTrueFunction(TrueFunction))
	if err != nil {
		return nil, err
	}
	if err := SavePlot(p, path); err != nil {
		return nil, err
	}
	m.logger.Info("Polynomial fit plotted", "degree", degree, "path", path)
	return m, nil
}
