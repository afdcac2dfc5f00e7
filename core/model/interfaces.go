// Package model provides the estimator interfaces and shared state used by
// every learner in mlsandbox.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
// Regressors return R², classifiers return mean accuracy.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
}

// Classifier combines interfaces for classification models.
//
// y passed to Fit is an n x 1 column of integer class labels stored as float64.
type Classifier interface {
	Estimator
	Scorer

	// PredictProba returns probability estimates for each class, with columns
	// ordered like Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted unique classes seen during fitting.
	Classes() []int
}

// WeightExporter is implemented by models whose fitted parameters can be
// exported as a ModelWeights record.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
}
