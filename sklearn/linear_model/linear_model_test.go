package linear_model

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// cubicData は y = 2 - x + 0.5x² + 3x³ を [x, x², x³] 特徴量で返す
func cubicData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := -1 + 2*float64(i)/float64(n-1)
		X.SetRow(i, []float64{x, x * x, x * x * x})
		y.Set(i, 0, 2-x+0.5*x*x+3*x*x*x)
	}
	return X, y
}

func TestLinearRegressionRecoversExactCubic(t *testing.T) {
	X, y := cubicData(20)

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	want := []float64{-1, 0.5, 3}
	for j, w := range want {
		if got := lr.Coef()[j]; math.Abs(got-w) > 1e-9 {
			t.Errorf("coef[%d] = %v, want %v", j, got, w)
		}
	}
	if math.Abs(lr.Intercept()-2) > 1e-9 {
		t.Errorf("intercept = %v, want 2", lr.Intercept())
	}
	if lr.Rank() != 3 {
		t.Errorf("rank = %d, want 3", lr.Rank())
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1) > 1e-12 {
		t.Errorf("R² = %v, want 1", score)
	}
}

func TestLinearRegressionWithoutIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})

	lr := NewLinearRegression(WithLRFitIntercept(false))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if math.Abs(lr.Coef()[0]-2) > 1e-12 || lr.Intercept() != 0 {
		t.Errorf("coef = %v, intercept = %v", lr.Coef(), lr.Intercept())
	}
}

// 特徴量がサンプル数より多い場合でも最小ノルム解で補間できる
func TestLinearRegressionUnderdetermined(t *testing.T) {
	X := mat.NewDense(3, 5, nil)
	y := mat.NewDense(3, 1, []float64{1, -2, 0.5})
	for i := 0; i < 3; i++ {
		x := float64(i) / 2
		v := x
		for j := 0; j < 5; j++ {
			X.Set(i, j, v)
			v *= x
		}
	}

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	pred, err := lr.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(pred.At(i, 0)-y.At(i, 0)) > 1e-8 {
			t.Errorf("pred[%d] = %v, want %v", i, pred.At(i, 0), y.At(i, 0))
		}
	}
	if lr.Rank() > 2 {
		t.Errorf("rank = %d, centred 3-sample design has rank at most 2", lr.Rank())
	}
}

func TestRidgeShrinksCoefficients(t *testing.T) {
	X, y := cubicData(30)

	norm := func(alpha float64) float64 {
		r, err := NewRidge(WithAlpha(alpha))
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Fit(X, y); err != nil {
			t.Fatalf("Fit(alpha=%v): %v", alpha, err)
		}
		return mat.Norm(mat.NewVecDense(3, r.Coef()), 2)
	}

	prev := math.Inf(1)
	for _, alpha := range []float64{0, 0.1, 1, 10, 100} {
		n := norm(alpha)
		if n > prev+1e-12 {
			t.Errorf("‖w‖ grew from %v to %v at alpha=%v", prev, n, alpha)
		}
		prev = n
	}
}

func TestRidgeZeroAlphaMatchesOLS(t *testing.T) {
	X, y := cubicData(15)

	ols := NewLinearRegression()
	if err := ols.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	ridge, err := NewRidge(WithAlpha(0))
	if err != nil {
		t.Fatal(err)
	}
	if err := ridge.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	for j := range ols.Coef() {
		if math.Abs(ols.Coef()[j]-ridge.Coef()[j]) > 1e-6 {
			t.Errorf("coef[%d]: ols %v, ridge %v", j, ols.Coef()[j], ridge.Coef()[j])
		}
	}
	if math.Abs(ols.Intercept()-ridge.Intercept()) > 1e-6 {
		t.Errorf("intercept: ols %v, ridge %v", ols.Intercept(), ridge.Intercept())
	}
}

func TestRidgeKnownSolution(t *testing.T) {
	// 中心化後 x = [-1, 0, 1], y = [-2, 0, 2]: w = Σxy / (Σx² + α) = 4 / (2 + 2) = 1
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{3, 5, 7})

	r, err := NewRidge(WithAlpha(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.Coef()[0]-1) > 1e-12 {
		t.Errorf("coef = %v, want 1", r.Coef()[0])
	}
	if math.Abs(r.Intercept()-3) > 1e-12 {
		t.Errorf("intercept = %v, want 3", r.Intercept())
	}
}

func TestLinearModelErrors(t *testing.T) {
	estimators := map[string]model.Regressor{
		"LinearRegression": NewLinearRegression(),
		"Ridge": func() model.Regressor {
			r, _ := NewRidge()
			return r
		}(),
	}

	for name, est := range estimators {
		t.Run(name, func(t *testing.T) {
			var nfe *errors.NotFittedError
			if _, err := est.Predict(mat.NewDense(1, 1, []float64{1})); !errors.As(err, &nfe) {
				t.Errorf("Predict before Fit: expected NotFittedError, got %v", err)
			}

			var de *errors.DimensionError
			err := est.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
			if !errors.As(err, &de) {
				t.Errorf("row mismatch: expected DimensionError, got %v", err)
			}

			if err := est.Fit(mat.NewDense(3, 2, []float64{1, 0, 2, 1, 3, 5}), mat.NewDense(3, 1, []float64{1, 2, 4})); err != nil {
				t.Fatal(err)
			}
			if _, err := est.Predict(mat.NewDense(1, 3, []float64{1, 2, 3})); !errors.As(err, &de) {
				t.Errorf("feature mismatch: expected DimensionError, got %v", err)
			}
		})
	}

	if _, err := NewRidge(WithAlpha(-1)); err == nil {
		t.Error("negative alpha should be rejected")
	}
}

func TestExportWeights(t *testing.T) {
	X, y := cubicData(10)
	r, _ := NewRidge(WithAlpha(1e-7))

	if _, err := r.ExportWeights(); err == nil {
		t.Error("ExportWeights before Fit should fail")
	}
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	weights, err := r.ExportWeights()
	if err != nil {
		t.Fatal(err)
	}
	if weights.ModelType != "Ridge" || weights.Hyperparameters["alpha"] != 1e-7 {
		t.Errorf("unexpected weights: %+v", weights)
	}

	data, err := weights.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.ModelWeights
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for i, c := range r.Coef() {
		if decoded.Coefficients[i] != c {
			t.Errorf("coefficient %d changed through JSON: %v vs %v", i, decoded.Coefficients[i], c)
		}
	}
}
