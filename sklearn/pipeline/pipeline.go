// Package pipeline chains transformers and a final estimator, in the manner of
// scikit-learn's Pipeline.
//
//	p, err := pipeline.New(
//	    pipeline.Step{Name: "polynomial_features", Estimator: poly},
//	    pipeline.Step{Name: "linear_regression", Estimator: linear_model.NewLinearRegression()},
//	)
//	err = p.Fit(X, y)
//	yPred, err := p.Predict(X)
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/core/model"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// Step is a named stage of a Pipeline. Every step but the last must
// implement model.Transformer; the last must implement model.Estimator.
type Step struct {
	Name      string
	Estimator interface{}
}

// Pipeline applies its transformers in order and hands the result to the
// final estimator.
type Pipeline struct {
	steps []Step
	state *model.StateManager
}

// New validates the steps and builds a Pipeline.
func New(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.NewValidationError("steps", "pipeline needs at least one step", 0)
	}

	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, errors.NewValidationError("steps", "step name must not be empty", i)
		}
		if seen[s.Name] {
			return nil, errors.NewValidationError("steps", "step names must be unique", s.Name)
		}
		seen[s.Name] = true

		if i < len(steps)-1 {
			if _, ok := s.Estimator.(model.Transformer); !ok {
				return nil, errors.NewValidationError("steps",
					fmt.Sprintf("intermediate step %q must implement Transformer", s.Name), fmt.Sprintf("%T", s.Estimator))
			}
			continue
		}
		if _, ok := s.Estimator.(model.Estimator); !ok {
			return nil, errors.NewValidationError("steps",
				fmt.Sprintf("final step %q must implement Fit and Predict", s.Name), fmt.Sprintf("%T", s.Estimator))
		}
	}

	return &Pipeline{
		steps: append([]Step(nil), steps...),
		state: model.NewStateManager(),
	}, nil
}

func (p *Pipeline) final() model.Estimator {
	return p.steps[len(p.steps)-1].Estimator.(model.Estimator)
}

func (p *Pipeline) transformers() []Step {
	return p.steps[:len(p.steps)-1]
}

// Fit fits every transformer on the output of the previous one, then fits
// the final estimator.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	p.state.Reset()

	Xt := X
	for _, s := range p.transformers() {
		out, err := s.Estimator.(model.Transformer).FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", s.Name)
		}
		Xt = out
	}
	if err := p.final().Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "pipeline step %q", p.steps[len(p.steps)-1].Name)
	}

	rows, cols := X.Dims()
	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	return nil
}

func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	Xt := X
	for _, s := range p.transformers() {
		out, err := s.Estimator.(model.Transformer).Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", s.Name)
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X through every transformer and predicts with the
// final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	return p.final().Predict(Xt)
}

// Score delegates to the final estimator's Score on transformed X.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	scorer, ok := p.final().(model.Scorer)
	if !ok {
		return 0, errors.NewValueError("Pipeline.Score",
			fmt.Sprintf("final step %q does not implement Score", p.steps[len(p.steps)-1].Name))
	}
	Xt, err := p.transform(X)
	if err != nil {
		return 0, err
	}
	return scorer.Score(Xt, y)
}

// NamedStep returns the estimator registered under name.
func (p *Pipeline) NamedStep(name string) (interface{}, bool) {
	for _, s := range p.steps {
		if s.Name == name {
			return s.Estimator, true
		}
	}
	return nil, false
}

// Steps returns a copy of the pipeline's steps.
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// IsFitted reports whether Fit has completed successfully.
func (p *Pipeline) IsFitted() bool {
	return p.state.IsFitted()
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.steps))
	for i, s := range p.steps {
		parts[i] = fmt.Sprintf("(%q, %v)", s.Name, s.Estimator)
	}
	return "Pipeline(steps=[" + strings.Join(parts, ", ") + "])"
}
