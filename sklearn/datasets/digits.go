// Package datasets provides small bundled datasets for examples and tests.
package datasets

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DigitsRows and DigitsCols are the image size of the digits dataset.
	DigitsRows = 8
	DigitsCols = 8

	// DigitsMaxIntensity is the largest pixel value; each pixel counts the
	// inked cells of a 4x4 block of a 32x32 bitmap.
	DigitsMaxIntensity = 16

	digitsSeed   = 1797
	subsample    = 4
	bitmapWidth  = DigitsCols * subsample
	bitmapHeight = DigitsRows * subsample
)

// digitCounts is the number of samples per class, 0 through 9.
var digitCounts = [10]int{178, 182, 177, 183, 181, 182, 181, 179, 174, 180}

// Digits is a labelled set of 8x8 grayscale digit images.
type Digits struct {
	// Images holds one 8x8 matrix per sample with values in [0, 16].
	Images []*mat.Dense
	// Target holds the digit shown by each image.
	Target []int
	// TargetNames lists the classes, 0 through 9.
	TargetNames []int
}

// NSamples returns the number of images.
func (d *Digits) NSamples() int {
	return len(d.Images)
}

// Data returns the images flattened row-major into an n x 64 matrix.
func (d *Digits) Data() *mat.Dense {
	data := mat.NewDense(len(d.Images), DigitsRows*DigitsCols, nil)
	for i, img := range d.Images {
		data.SetRow(i, img.RawMatrix().Data)
	}
	return data
}

var (
	digitsOnce  sync.Once
	digitsCache *Digits
)

// LoadDigits returns the 1797-sample handwritten-style digits dataset.
//
// The images are rendered from stroke templates of the ten digits with
// per-sample variation in position, scale, slant, stroke width and ink
// intensity, then downsampled by counting inked cells per 4x4 block. The
// output is identical on every call. Callers own the returned matrices.
func LoadDigits() *Digits {
	digitsOnce.Do(func() {
		digitsCache = renderDigits()
	})

	out := &Digits{
		Images:      make([]*mat.Dense, len(digitsCache.Images)),
		Target:      append([]int(nil), digitsCache.Target...),
		TargetNames: append([]int(nil), digitsCache.TargetNames...),
	}
	for i, img := range digitsCache.Images {
		out.Images[i] = mat.DenseCopyOf(img)
	}
	return out
}

func renderDigits() *Digits {
	total := 0
	for _, c := range digitCounts {
		total += c
	}

	src := rand.NewPCG(digitsSeed, 0)
	uniform := func(lo, hi float64) distuv.Uniform {
		return distuv.Uniform{Min: lo, Max: hi, Src: src}
	}
	var (
		shift     = uniform(-0.07, 0.07)
		scale     = uniform(0.82, 1.0)
		slant     = uniform(-0.18, 0.18)
		thickness = uniform(0.09, 0.15)
		ink       = uniform(0.75, 1.0)
	)

	d := &Digits{
		Images:      make([]*mat.Dense, 0, total),
		Target:      make([]int, 0, total),
		TargetNames: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	}

	// Classes are interleaved 0..9 until each class has its quota.
	remaining := digitCounts
	for len(d.Target) < total {
		for digit := 0; digit < 10; digit++ {
			if remaining[digit] == 0 {
				continue
			}
			remaining[digit]--

			t := glyphTransform{
				dx:     shift.Rand(),
				dy:     shift.Rand(),
				sx:     scale.Rand(),
				sy:     scale.Rand(),
				shear:  slant.Rand(),
				radius: thickness.Rand() / 2,
			}
			d.Images = append(d.Images, rasterize(glyphs[digit], t, ink.Rand()))
			d.Target = append(d.Target, digit)
		}
	}
	return d
}

type point struct{ x, y float64 }

// glyphTransform maps template coordinates (unit square, y down) to bitmap
// coordinates.
type glyphTransform struct {
	dx, dy float64
	sx, sy float64
	shear  float64
	radius float64
}

func (t glyphTransform) apply(p point) point {
	x := 0.5 + t.sx*(p.x-0.5) + t.shear*(0.5-p.y)
	y := 0.5 + t.sy*(p.y-0.5)
	return point{x + t.dx, y + t.dy}
}

func rasterize(strokes [][]point, t glyphTransform, intensity float64) *mat.Dense {
	var segments [][2]point
	for _, stroke := range strokes {
		for k := 0; k+1 < len(stroke); k++ {
			segments = append(segments, [2]point{t.apply(stroke[k]), t.apply(stroke[k+1])})
		}
	}

	img := mat.NewDense(DigitsRows, DigitsCols, nil)
	for r := 0; r < DigitsRows; r++ {
		for c := 0; c < DigitsCols; c++ {
			inked := 0
			for sy := 0; sy < subsample; sy++ {
				for sx := 0; sx < subsample; sx++ {
					p := point{
						x: (float64(c*subsample+sx) + 0.5) / bitmapWidth,
						y: (float64(r*subsample+sy) + 0.5) / bitmapHeight,
					}
					if nearAny(p, segments, t.radius) {
						inked++
					}
				}
			}
			v := math.Round(float64(inked) * intensity)
			img.Set(r, c, math.Min(v, DigitsMaxIntensity))
		}
	}
	return img
}

func nearAny(p point, segments [][2]point, radius float64) bool {
	r2 := radius * radius
	for _, s := range segments {
		if segmentDist2(p, s[0], s[1]) <= r2 {
			return true
		}
	}
	return false
}

// segmentDist2 is the squared distance from p to the segment ab.
func segmentDist2(p, a, b point) float64 {
	vx, vy := b.x-a.x, b.y-a.y
	wx, wy := p.x-a.x, p.y-a.y
	l2 := vx*vx + vy*vy
	t := 0.0
	if l2 > 0 {
		t = math.Max(0, math.Min(1, (wx*vx+wy*vy)/l2))
	}
	dx, dy := wx-t*vx, wy-t*vy
	return dx*dx + dy*dy
}

// ellipse returns a closed polyline around (cx, cy).
func ellipse(cx, cy, rx, ry float64, n int) []point {
	pts := make([]point, n+1)
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = point{cx + rx*math.Cos(a), cy + ry*math.Sin(a)}
	}
	return pts
}

var glyphs = [10][][]point{
	0: {ellipse(0.5, 0.5, 0.27, 0.38, 16)},
	1: {
		{{0.34, 0.27}, {0.55, 0.1}, {0.55, 0.9}},
	},
	2: {
		{{0.25, 0.3}, {0.35, 0.13}, {0.6, 0.1}, {0.75, 0.25}, {0.7, 0.45}, {0.25, 0.88}, {0.8, 0.88}},
	},
	3: {
		{{0.25, 0.13}, {0.72, 0.13}, {0.48, 0.45}, {0.72, 0.6}, {0.7, 0.82}, {0.47, 0.91}, {0.25, 0.82}},
	},
	4: {
		{{0.6, 0.9}, {0.6, 0.1}, {0.2, 0.64}, {0.8, 0.64}},
	},
	5: {
		{{0.75, 0.1}, {0.3, 0.1}, {0.27, 0.45}, {0.6, 0.42}, {0.75, 0.62}, {0.66, 0.87}, {0.25, 0.88}},
	},
	6: {
		{{0.66, 0.1}, {0.36, 0.38}, {0.27, 0.68}, {0.44, 0.9}, {0.68, 0.8}, {0.7, 0.6}, {0.5, 0.5}, {0.3, 0.6}},
	},
	7: {
		{{0.22, 0.12}, {0.78, 0.12}, {0.45, 0.9}},
		{{0.36, 0.5}, {0.66, 0.5}},
	},
	8: {
		ellipse(0.5, 0.29, 0.2, 0.18, 12),
		ellipse(0.5, 0.69, 0.24, 0.21, 12),
	},
	9: {
		ellipse(0.5, 0.33, 0.22, 0.2, 12),
		{{0.72, 0.35}, {0.6, 0.9}},
	},
}
