package model

import (
	"encoding/json"
	"testing"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("Ridge", "Predict")
	var nfe *errors.NotFittedError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	if nfe.ModelName != "Ridge" || nfe.Method != "Predict" {
		t.Errorf("unexpected error fields: %+v", nfe)
	}

	s.SetDimensions(3, 10)
	s.SetFitted()
	if err := s.RequireFitted("Ridge", "Predict"); err != nil {
		t.Errorf("RequireFitted after SetFitted: %v", err)
	}
	if err := s.CheckFeatures("Ridge.Predict", 3); err != nil {
		t.Errorf("CheckFeatures(3): %v", err)
	}
	var de *errors.DimensionError
	if err := s.CheckFeatures("Ridge.Predict", 4); !errors.As(err, &de) {
		t.Errorf("CheckFeatures(4) = %v, want DimensionError", err)
	}

	if f, n := s.GetDimensions(); f != 3 || n != 10 {
		t.Errorf("GetDimensions() = %d, %d, want 3, 10", f, n)
	}

	s.Reset()
	if s.IsFitted() {
		t.Error("Reset should clear fitted state")
	}
	if f, n := s.GetDimensions(); f != 0 || n != 0 {
		t.Errorf("Reset should clear dimensions, got %d, %d", f, n)
	}
}

func TestModelWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights *ModelWeights
		wantErr bool
	}{
		{"valid", NewModelWeights("Ridge", []float64{1, 2}, 0.5), false},
		{"missing type", NewModelWeights("", []float64{1}, 0), true},
		{"no coefficients", NewModelWeights("LinearRegression", nil, 0), true},
		{"feature count mismatch", func() *ModelWeights {
			w := NewModelWeights("Ridge", []float64{1, 2}, 0)
			w.Features = []string{"x0"}
			return w
		}(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelWeightsToJSON(t *testing.T) {
	w := NewModelWeights("Ridge", []float64{1.5, -2}, 3)
	w.Features = []string{"x0", "x0^2"}
	w.Hyperparameters["alpha"] = 1e-7

	data, err := w.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var decoded ModelWeights
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ModelType != "Ridge" || decoded.Intercept != 3 || decoded.Version != WeightsVersion {
		t.Errorf("decoded = %+v", decoded)
	}

	clone := w.Clone()
	clone.Coefficients[0] = 99
	clone.Hyperparameters["alpha"] = 1.0
	if w.Coefficients[0] != 1.5 || w.Hyperparameters["alpha"] != 1e-7 {
		t.Error("Clone must not share storage with the original")
	}
}
