// Package mlsandbox is a small machine learning sandbox for Go built on gonum.
//
// It contains two experiments. The polynomial package fits polynomials of
// arbitrary degree to noisy samples of 10·sin(3.3πx) + 20x + 5 and plots the
// result, which makes under- and overfitting easy to see. The imagedata and
// classifiers packages train a polynomial-kernel SVM or a multilayer
// perceptron on noisy 8×8 digit images and report accuracy and log loss.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/mlsandbox/polynomial"
//	)
//
//	func main() {
//	    X, y := polynomial.TrainingData(20)
//	    m, err := polynomial.FitAndPlot(5, X, y, false, "fit.png")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    r2, _ := m.Score(X, y)
//	    fmt.Println("R²:", r2)
//	}
//
// # Packages
//
//   - polynomial: data generation, polynomial regression models and plots
//   - imagedata: noisy digit image dataset with train/test split
//   - classifiers: image classifiers with a common Train/Predict/Accuracy/Error contract
//   - sklearn/svm: support vector classifier (SMO solver, Platt scaling)
//   - sklearn/neural_network: MLPClassifier trained with L-BFGS
//   - sklearn/linear_model: LinearRegression and Ridge
//   - sklearn/pipeline, sklearn/model_selection, sklearn/datasets
//   - preprocessing: PolynomialFeatures and image flattening
//   - metrics: regression and classification metrics
//   - core/model, core/parallel: estimator state and shared helpers
//   - pkg/errors, pkg/log: structured errors and zerolog-based logging
//
// The cmd/mlsandbox command exposes both experiments on the command line.
package mlsandbox
