package svm

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// blobs は各中心のまわりに格子状に点を置いたデータを返す
func blobs(centers [][2]float64, labels []int, perClass int) (*mat.Dense, *mat.Dense) {
	n := len(centers) * perClass
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	row := 0
	for c, center := range centers {
		for k := 0; k < perClass; k++ {
			dx := 0.3 * float64(k%3-1)
			dy := 0.3 * float64((k/3)%3-1)
			X.SetRow(row, []float64{center[0] + dx, center[1] + dy})
			y.Set(row, 0, float64(labels[c]))
			row++
		}
	}
	return X, y
}

func TestSVCSeparatesLinearData(t *testing.T) {
	X, y := blobs([][2]float64{{-2, -2}, {2, 2}}, []int{0, 1}, 9)

	for _, kernel := range []string{KernelLinear, KernelPoly, KernelRBF} {
		t.Run(kernel, func(t *testing.T) {
			clf := NewSVC(WithKernel(kernel))
			if err := clf.Fit(X, y); err != nil {
				t.Fatalf("Fit: %v", err)
			}
			score, err := clf.Score(X, y)
			if err != nil {
				t.Fatal(err)
			}
			if score != 1 {
				t.Errorf("training accuracy = %v, want 1", score)
			}
			if got := clf.Classes(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
				t.Errorf("Classes() = %v", got)
			}
		})
	}
}

func TestSVCDecisionFunctionSign(t *testing.T) {
	X, y := blobs([][2]float64{{-2, -2}, {2, 2}}, []int{3, 7}, 9)
	clf := NewSVC(WithKernel(KernelLinear))
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	query := mat.NewDense(2, 2, []float64{-3, -3, 3, 3})
	dec, err := clf.DecisionFunction(query)
	if err != nil {
		t.Fatal(err)
	}
	r, c := dec.Dims()
	if r != 2 || c != 1 {
		t.Fatalf("decision shape = %dx%d, want 2x1", r, c)
	}
	// 正の値は前側のクラス (3) を支持する
	if dec.At(0, 0) <= 0 || dec.At(1, 0) >= 0 {
		t.Errorf("decision values = %v, %v", dec.At(0, 0), dec.At(1, 0))
	}

	pred, err := clf.Predict(query)
	if err != nil {
		t.Fatal(err)
	}
	if pred.At(0, 0) != 3 || pred.At(1, 0) != 7 {
		t.Errorf("predictions = %v, %v", pred.At(0, 0), pred.At(1, 0))
	}
}

func TestSVCMulticlassProbability(t *testing.T) {
	centers := [][2]float64{{0, 4}, {-4, -2}, {4, -2}}
	X, y := blobs(centers, []int{0, 1, 2}, 9)

	clf := NewSVC(WithKernel(KernelPoly), WithDegree(3), WithProbability(true), WithRandomState(0))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	dec, err := clf.DecisionFunction(X)
	if err != nil {
		t.Fatal(err)
	}
	if _, c := dec.Dims(); c != 3 {
		t.Errorf("pairwise columns = %d, want 3", c)
	}

	proba, err := clf.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	rows, cols := proba.Dims()
	if cols != 3 {
		t.Fatalf("proba columns = %d, want 3", cols)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := proba.At(i, j)
			if p < 0 || p > 1 {
				t.Errorf("proba[%d][%d] = %v out of [0,1]", i, j, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("row %d sums to %v", i, sum)
		}
	}

	// クラス中心では正しいクラスの確率が最大になる
	query := mat.NewDense(3, 2, []float64{0, 4, -4, -2, 4, -2})
	proba, err = clf.PredictProba(query)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		best := 0
		for j := 1; j < 3; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		if best != i {
			t.Errorf("center %d: argmax proba = %d, row = %v", i, best, mat.Row(nil, i, proba))
		}
	}

	nSupport := clf.NSupport()
	total := 0
	for _, n := range nSupport {
		total += n
	}
	if len(nSupport) != 3 || total != len(clf.Support()) || total == 0 {
		t.Errorf("NSupport = %v, support = %d", nSupport, len(clf.Support()))
	}
	if sv := clf.SupportVectors(); sv == nil {
		t.Error("SupportVectors() = nil")
	} else if r, _ := sv.Dims(); r != total {
		t.Errorf("support vector rows = %d, want %d", r, total)
	}
}

func TestSVCBinaryProbabilityComplement(t *testing.T) {
	X, y := blobs([][2]float64{{-2, 0}, {2, 0}}, []int{0, 1}, 9)
	clf := NewSVC(WithKernel(KernelLinear), WithProbability(true), WithRandomState(42))
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, err := clf.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := proba.Dims()
	for i := 0; i < rows; i++ {
		if s := proba.At(i, 0) + proba.At(i, 1); math.Abs(s-1) > 1e-12 {
			t.Errorf("row %d sums to %v", i, s)
		}
	}
}

func TestSVCGamma(t *testing.T) {
	X, y := blobs([][2]float64{{-2, -2}, {2, 2}}, []int{0, 1}, 9)

	clf := NewSVC(WithGammaAuto())
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if clf.Gamma() != 0.5 {
		t.Errorf("auto gamma = %v, want 0.5", clf.Gamma())
	}

	clf = NewSVC(WithGamma(0.25))
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if clf.Gamma() != 0.25 {
		t.Errorf("gamma = %v, want 0.25", clf.Gamma())
	}

	// 定数入力では分散が0なので gamma=1
	Xc := mat.NewDense(4, 2, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	yc := mat.NewDense(4, 1, []float64{0, 1, 0, 1})
	clf = NewSVC()
	if err := clf.Fit(Xc, yc); err != nil {
		t.Fatal(err)
	}
	if clf.Gamma() != 1 {
		t.Errorf("scale gamma on constant data = %v, want 1", clf.Gamma())
	}
}

func TestSVCErrors(t *testing.T) {
	X, y := blobs([][2]float64{{-2, -2}, {2, 2}}, []int{0, 1}, 9)

	t.Run("not fitted", func(t *testing.T) {
		_, err := NewSVC().Predict(X)
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("got %v, want NotFittedError", err)
		}
	})

	t.Run("single class", func(t *testing.T) {
		yc := mat.NewDense(18, 1, nil)
		err := NewSVC().Fit(X, yc)
		var ve *errors.ValueError
		if !errors.As(err, &ve) {
			t.Errorf("got %v, want ValueError", err)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		err := NewSVC().Fit(X, mat.NewDense(3, 1, []float64{0, 1, 0}))
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Errorf("got %v, want DimensionError", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		err := NewSVC().Fit(&mat.Dense{}, &mat.Dense{})
		if !errors.Is(err, errors.ErrEmptyData) {
			t.Errorf("got %v, want ErrEmptyData", err)
		}
	})

	params := []struct {
		name string
		opt  Option
	}{
		{"C zero", WithC(0)},
		{"C negative", WithC(-1)},
		{"degree negative", WithDegree(-1)},
		{"unknown kernel", WithKernel("sigmoid")},
		{"gamma zero", WithGamma(0)},
		{"max_iter zero", WithMaxIter(0)},
	}
	for _, tc := range params {
		t.Run(tc.name, func(t *testing.T) {
			err := NewSVC(tc.opt).Fit(X, y)
			var ve *errors.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}

	clf := NewSVC()
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	t.Run("probability disabled", func(t *testing.T) {
		_, err := clf.PredictProba(X)
		var ve *errors.ValueError
		if !errors.As(err, &ve) {
			t.Errorf("got %v, want ValueError", err)
		}
	})

	t.Run("feature mismatch", func(t *testing.T) {
		_, err := clf.Predict(mat.NewDense(1, 3, nil))
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Errorf("got %v, want DimensionError", err)
		}
	})
}

func TestSVCMaxIterWarnsOnce(t *testing.T) {
	provider, buffer := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(provider)
	defer log.SetProvider(log.NewZerologProvider(&bytes.Buffer{}, log.LevelWarn))

	// 重なりのある3クラスでは1反復では収束しない
	X, y := blobs([][2]float64{{0, 0}, {0.2, 0}, {0, 0.2}}, []int{0, 1, 2}, 9)
	clf := NewSVC(WithMaxIter(1), WithProbability(true), WithRandomState(1))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	count := 0
	for _, line := range strings.Split(buffer.String(), "\n") {
		if strings.Contains(line, "solver terminated early (max_iter=1)") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("convergence warnings = %d, want 1\n%s", count, buffer.String())
	}
	for _, n := range clf.NIter() {
		if n > 1 {
			t.Errorf("NIter = %v exceeds max_iter", clf.NIter())
		}
	}
}

func TestSVCRefitResetsState(t *testing.T) {
	X2, y2 := blobs([][2]float64{{-2, -2}, {2, 2}}, []int{0, 1}, 9)
	X3, y3 := blobs([][2]float64{{0, 4}, {-4, -2}, {4, -2}}, []int{0, 1, 2}, 9)

	clf := NewSVC()
	if err := clf.Fit(X3, y3); err != nil {
		t.Fatal(err)
	}
	if err := clf.Fit(X2, y2); err != nil {
		t.Fatal(err)
	}
	if got := clf.Classes(); len(got) != 2 {
		t.Errorf("Classes() after refit = %v", got)
	}
	dec, err := clf.DecisionFunction(X2)
	if err != nil {
		t.Fatal(err)
	}
	if _, c := dec.Dims(); c != 1 {
		t.Errorf("pairwise columns after refit = %d, want 1", c)
	}
}

func TestSVCWithLogger(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	X, y := blobs([][2]float64{{-2, -2}, {2, 2}}, []int{0, 1}, 9)

	clf := NewSVC(WithKernel(KernelLinear), WithLogger(logger))
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if !logger.ContainsMessage("Training completed") {
		t.Error("expected training log in the injected logger")
	}
	if !logger.ContainsField(log.OperationKey, log.OperationFit) {
		t.Error("expected fit operation field")
	}
}
