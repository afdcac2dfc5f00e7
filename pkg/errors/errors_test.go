package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "mlsandbox: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "mlsandbox: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			// 基本的なエラーメッセージの確認
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("SVC.Predict", 64, 16, 1)

	want := "mlsandbox: SVC.Predict: dimension mismatch on axis 1 (features). Expected 64, got 16"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 64 || dimErr.Got != 16 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("MLPClassifier", "Predict")

	want := "mlsandbox: MLPClassifier: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValueError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		message string
		wantMsg string
	}{
		{
			name:    "single class",
			op:      "SVC.Fit",
			message: "the number of classes has to be greater than one; got 1 class",
			wantMsg: "mlsandbox: SVC.Fit: the number of classes has to be greater than one; got 1 class",
		},
		{
			name:    "unknown label",
			op:      "LogLoss",
			message: "y_true contains label 7 not seen in training",
			wantMsg: "mlsandbox: LogLoss: y_true contains label 7 not seen in training",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValueError(tt.op, tt.message)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			var valErr *ValueError
			if !As(err, &valErr) {
				t.Error("Error should be castable to *ValueError")
			}
		})
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("degree", "must be non-negative", -1)

	want := "mlsandbox: validation failed for parameter 'degree': must be non-negative (got: -1)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestNewInputShapeError(t *testing.T) {
	err := NewInputShapeError("training", 3, []int{8, 8}, []int{4, 4})

	if !strings.Contains(err.Error(), "at sample 3") {
		t.Errorf("Error() = %v, want sample index", err.Error())
	}

	var shapeErr *InputShapeError
	if !As(err, &shapeErr) {
		t.Fatal("Error should be castable to *InputShapeError")
	}
	if shapeErr.Phase != "training" {
		t.Errorf("Phase = %s, want training", shapeErr.Phase)
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("lbfgs", 10000, "maximum number of iterations reached")

	want := "lbfgs failed to converge after 10000 iterations: maximum number of iterations reached"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	var convWarn *ConvergenceWarning
	if !As(warn, &convWarn) {
		t.Error("Warning should be castable to *ConvergenceWarning")
	}
}

func TestWarnRouting(t *testing.T) {
	var (
		mu       sync.Mutex
		received []error
	)
	SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, w)
	})
	defer SetWarningHandler(func(w error) {})

	Warn(NewConvergenceWarning("smo", 10, ""))

	mu.Lock()
	if len(received) != 1 {
		t.Fatalf("handler received %d warnings, want 1", len(received))
	}
	mu.Unlock()

	// zerologが設定されている場合はそちらが優先される
	var zerologReceived int
	SetZerologWarnFunc(func(w error) { zerologReceived++ })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("smo", 10, ""))
	if zerologReceived != 1 {
		t.Errorf("zerolog func received %d warnings, want 1", zerologReceived)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Errorf("fallback handler should not be called when zerolog func is set")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Predict: expected 10, got 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}
