package neural_network

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// Activation names accepted by WithActivation.
const (
	ActivationIdentity = "identity"
	ActivationLogistic = "logistic"
	ActivationTanh     = "tanh"
	ActivationReLU     = "relu"
)

// activation applies a hidden-layer nonlinearity in place and multiplies a
// delta by its derivative, expressed through the activated output.
type activation struct {
	apply      func(z float64) float64
	derivative func(a float64) float64
}

var activations = map[string]activation{
	ActivationIdentity: {
		apply:      func(z float64) float64 { return z },
		derivative: func(float64) float64 { return 1 },
	},
	ActivationLogistic: {
		apply:      errors.Sigmoid,
		derivative: func(a float64) float64 { return a * (1 - a) },
	},
	ActivationTanh: {
		apply:      math.Tanh,
		derivative: func(a float64) float64 { return 1 - a*a },
	},
	ActivationReLU: {
		apply: func(z float64) float64 {
			if z > 0 {
				return z
			}
			return 0
		},
		derivative: func(a float64) float64 {
			if a > 0 {
				return 1
			}
			return 0
		},
	},
}

func (f activation) forward(Z *mat.Dense) {
	Z.Apply(func(_, _ int, v float64) float64 { return f.apply(v) }, Z)
}

// backward multiplies delta element-wise by f'(A).
func (f activation) backward(A, delta *mat.Dense) {
	delta.Apply(func(i, j int, v float64) float64 { return v * f.derivative(A.At(i, j)) }, delta)
}

// softmax normalises each row of Z in place.
func softmax(Z *mat.Dense) {
	r, _ := Z.Dims()
	for i := 0; i < r; i++ {
		row := Z.RawRowView(i)
		lse := errors.LogSumExp(row)
		for j, v := range row {
			row[j] = math.Exp(v - lse)
		}
	}
}
