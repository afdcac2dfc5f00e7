package classifiers

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// twoClassImages は 2x2 画像10枚を返す。クラス0は左上、クラス1は右下が明るい
func twoClassImages() ([]mat.Matrix, []int) {
	var X []mat.Matrix
	var y []int
	for i := 0; i < 5; i++ {
		v := 0.1 * float64(i)
		X = append(X, mat.NewDense(2, 2, []float64{1 + v, 0.5, 0.5, v}))
		y = append(y, 0)
		X = append(X, mat.NewDense(2, 2, []float64{v, 0.5, 0.5, 1 + v}))
		y = append(y, 1)
	}
	return X, y
}

func newClassifiers(t *testing.T) map[string]Classifier {
	t.Helper()
	poly, err := NewPolynomialClassifier(3, WithRegularization(1), WithRandomState(0))
	if err != nil {
		t.Fatal(err)
	}
	nn, err := NewNeuralNetworkClassifier([]int{5}, WithRandomState(0))
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Classifier{"polynomial": poly, "neural_network": nn}
}

func TestClassifierContract(t *testing.T) {
	X, y := twoClassImages()

	for name, clf := range newClassifiers(t) {
		t.Run(name, func(t *testing.T) {
			if err := clf.Train(X, y); err != nil {
				t.Fatalf("Train: %v", err)
			}

			pred, err := clf.Predict(X)
			if err != nil {
				t.Fatal(err)
			}
			if len(pred) != len(X) {
				t.Fatalf("len(pred) = %d, want %d", len(pred), len(X))
			}
			for i, p := range pred {
				if p != 0 && p != 1 {
					t.Errorf("pred[%d] = %d not a training label", i, p)
				}
			}

			acc, err := clf.Accuracy(X, y)
			if err != nil {
				t.Fatal(err)
			}
			if acc < 0.5 || acc > 1 {
				t.Errorf("accuracy = %v, want in [0.5, 1]", acc)
			}

			// 予測そのものを正解とすれば正解率は1
			self, err := clf.Accuracy(X, pred)
			if err != nil {
				t.Fatal(err)
			}
			if self != 1 {
				t.Errorf("accuracy against own predictions = %v", self)
			}

			loss, err := clf.Error(X, y)
			if err != nil {
				t.Fatal(err)
			}
			if loss < 0 || math.IsNaN(loss) {
				t.Errorf("error = %v, want non-negative", loss)
			}
		})
	}
}

func TestClassifierErrors(t *testing.T) {
	X, y := twoClassImages()

	for name, clf := range newClassifiers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := clf.Predict(X)
			var nf *errors.NotFittedError
			if !errors.As(err, &nf) {
				t.Errorf("Predict before Train: got %v, want NotFittedError", err)
			}

			var de *errors.DimensionError
			if err := clf.Train(X, y[:3]); !errors.As(err, &de) {
				t.Errorf("length mismatch: got %v, want DimensionError", err)
			}

			ones := make([]int, len(X))
			var ve *errors.ValueError
			if err := clf.Train(X, ones); !errors.As(err, &ve) {
				t.Errorf("single class: got %v, want ValueError", err)
			}

			bad := append([]mat.Matrix{mat.NewDense(3, 1, nil)}, X[1:]...)
			var se *errors.InputShapeError
			if err := clf.Train(bad, y); !errors.As(err, &se) {
				t.Errorf("inner shape mismatch: got %v, want InputShapeError", err)
			}

			if err := clf.Train(X, y); err != nil {
				t.Fatal(err)
			}

			wide := []mat.Matrix{mat.NewDense(3, 3, nil)}
			if _, err := clf.Predict(wide); !errors.As(err, &de) {
				t.Errorf("feature mismatch: got %v, want DimensionError", err)
			}

			if _, err := clf.Accuracy(X, y[:2]); !errors.As(err, &de) {
				t.Errorf("accuracy length mismatch: got %v, want DimensionError", err)
			}

			unseen := append([]int(nil), y...)
			unseen[0] = 7
			if _, err := clf.Error(X, unseen); !errors.As(err, &ve) {
				t.Errorf("unseen label: got %v, want ValueError", err)
			}
		})
	}
}

// 再学習は前回の学習結果を上書きする
func TestClassifierRetrainOverwrites(t *testing.T) {
	X, y := twoClassImages()
	clf, err := NewPolynomialClassifier(2, WithRandomState(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := clf.Train(X, y); err != nil {
		t.Fatal(err)
	}

	flipped := make([]int, len(y))
	for i, v := range y {
		flipped[i] = 5 + v
	}
	if err := clf.Train(X, flipped); err != nil {
		t.Fatal(err)
	}
	if got := clf.Model().Classes(); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("classes after retrain = %v, want [5 6]", got)
	}
}

func TestConstructorValidation(t *testing.T) {
	var ve *errors.ValidationError
	if _, err := NewPolynomialClassifier(0); !errors.As(err, &ve) {
		t.Errorf("degree 0: got %v, want ValidationError", err)
	}
	if _, err := NewPolynomialClassifier(3, WithRegularization(0)); !errors.As(err, &ve) {
		t.Errorf("C = 0: got %v, want ValidationError", err)
	}
	if _, err := NewNeuralNetworkClassifier(nil); !errors.As(err, &ve) {
		t.Errorf("no hidden layers: got %v, want ValidationError", err)
	}
	if _, err := NewNeuralNetworkClassifier([]int{10, 0}); !errors.As(err, &ve) {
		t.Errorf("zero-width layer: got %v, want ValidationError", err)
	}

	poly, err := NewPolynomialClassifier(4)
	if err != nil {
		t.Fatal(err)
	}
	if poly.Degree() != 4 || poly.Regularization() != 1 {
		t.Errorf("defaults: degree=%d C=%v", poly.Degree(), poly.Regularization())
	}
	nn, err := NewNeuralNetworkClassifier([]int{10, 10})
	if err != nil {
		t.Fatal(err)
	}
	if nn.Regularization() != 1e-4 || len(nn.HiddenLayerSizes()) != 2 {
		t.Errorf("defaults: alpha=%v hidden=%v", nn.Regularization(), nn.HiddenLayerSizes())
	}
}

func TestClassifierLogsTraining(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	X, y := twoClassImages()

	clf, err := NewPolynomialClassifier(3, WithLogger(logger), WithRandomState(0))
	if err != nil {
		t.Fatal(err)
	}
	if err := clf.Train(X, y); err != nil {
		t.Fatal(err)
	}
	if !logger.ContainsMessage("Classifier trained") {
		t.Error("expected training log message")
	}
	if !logger.ContainsField(log.ModelNameKey, "PolynomialClassifier") {
		t.Error("expected model name field")
	}
	if !logger.ContainsField(log.RandomSeedKey, float64(0)) {
		t.Error("expected random seed field")
	}
	// SVC 自身の学習ログも同じロガーに出る
	if !logger.ContainsMessage("Training completed") {
		t.Error("expected SVC training log in the injected logger")
	}
}

func TestNeuralNetworkClassifierLogging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	X, y := twoClassImages()

	clf, err := NewNeuralNetworkClassifier([]int{3}, WithLogger(logger), WithRandomState(7))
	if err != nil {
		t.Fatal(err)
	}
	if err := clf.Train(X, y); err != nil {
		t.Fatal(err)
	}
	if !logger.ContainsMessage("Classifier trained") {
		t.Error("expected wrapper training log")
	}
	if !logger.ContainsMessage("Training completed") {
		t.Error("expected MLP training log in the injected logger")
	}
	if !logger.ContainsField(log.RandomSeedKey, float64(7)) {
		t.Error("expected random seed field")
	}
}
