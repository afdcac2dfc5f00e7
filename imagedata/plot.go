package imagedata

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// imageGrid は画像を plotter.GridXYZ として見せる。行0が上端に来るよう上下を反転する。
type imageGrid struct {
	img        mat.Matrix
	rows, cols int
}

func (g imageGrid) Dims() (c, r int)   { return g.cols, g.rows }
func (g imageGrid) Z(c, r int) float64 { return g.img.At(g.rows-1-r, c) }
func (g imageGrid) X(c int) float64    { return float64(c) }
func (g imageGrid) Y(r int) float64    { return float64(r) }

// PlotImage は画像を白地に黒の濃淡（値が大きいほど黒）で描き、タイトルにラベルを付ける
func PlotImage(image mat.Matrix, label int) (*plot.Plot, error) {
	rows, cols := image.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError("imagedata.PlotImage", "empty image", errors.ErrEmptyData)
	}
	greys, err := brewer.GetPalette(brewer.TypeSequential, "Greys", 9)
	if err != nil {
		return nil, errors.Wrap(err, "greys palette")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Label %d", label)
	p.HideAxes()

	hm := plotter.NewHeatMap(imageGrid{img: image, rows: rows, cols: cols}, greys)
	p.Add(hm)
	return p, nil
}

// SaveImage は PlotImage の結果を path に書き出す。形式は拡張子で決まる
func SaveImage(image mat.Matrix, label int, path string) error {
	p, err := PlotImage(image, label)
	if err != nil {
		return err
	}
	if err := p.Save(2*vg.Inch, 1.5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save image to %s", path)
	}
	return nil
}
