package svm

import (
	"math"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
)

// Platt scaling constants.
const (
	plattMaxIter = 100
	plattMinStep = 1e-10
	plattSigma   = 1e-12
	plattEps     = 1e-5

	// minPairwiseProb bounds pairwise probabilities away from 0 and 1.
	minPairwiseProb = 1e-7
)

// sigmoidTrain fits P(y=1|f) = 1/(1+exp(A·f+B)) to decision values by
// Newton's method with backtracking (Lin, Lin and Weng, 2007). labels are
// +1 or -1.
func sigmoidTrain(dec, labels []float64, lg log.Logger) (A, B float64) {
	var prior1, prior0 float64
	for _, y := range labels {
		if y > 0 {
			prior1++
		} else {
			prior0++
		}
	}

	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	t := make([]float64, len(labels))
	for i, y := range labels {
		if y > 0 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	objective := func(a, b float64) float64 {
		var f float64
		for i, d := range dec {
			fApB := d*a + b
			if fApB >= 0 {
				f += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				f += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return f
	}

	A = 0
	B = math.Log((prior0 + 1) / (prior1 + 1))
	fval := objective(A, B)

	iter := 0
	for ; iter < plattMaxIter; iter++ {
		h11, h22, h21 := plattSigma, plattSigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, d := range dec {
			fApB := d*A + B
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p = e / (1 + e)
				q = 1 / (1 + e)
			} else {
				e := math.Exp(fApB)
				p = 1 / (1 + e)
				q = e / (1 + e)
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}

		if math.Abs(g1) < plattEps && math.Abs(g2) < plattEps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= plattMinStep {
			newA := A + step*dA
			newB := B + step*dB
			newf := objective(newA, newB)
			if newf < fval+0.0001*step*gd {
				A, B, fval = newA, newB, newf
				break
			}
			step /= 2
		}
		if step < plattMinStep {
			lg.Debug("Platt scaling line search failed", log.IterationKey, iter)
			break
		}
	}
	if iter >= plattMaxIter {
		errors.Warn(errors.NewConvergenceWarning("platt_scaling", iter, "reaching maximal iterations"))
	}
	return A, B
}

// sigmoidPredict evaluates the fitted sigmoid for decision value f.
func sigmoidPredict(f, A, B float64) float64 {
	fApB := f*A + B
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}

// multiclassProbability couples pairwise probabilities r[i][j] ≈ P(i | i or j)
// into class probabilities p by the second method of Wu, Lin and Weng (2004).
func multiclassProbability(r [][]float64, p []float64, lg log.Logger) {
	k := len(p)
	maxIter := max(100, k)
	eps := 0.005 / float64(k)

	Q := make([][]float64, k)
	for t := range Q {
		Q[t] = make([]float64, k)
	}
	Qp := make([]float64, k)

	for t := 0; t < k; t++ {
		p[t] = 1 / float64(k)
		Q[t][t] = 0
		for j := 0; j < t; j++ {
			Q[t][t] += r[j][t] * r[j][t]
			Q[t][j] = Q[j][t]
		}
		for j := t + 1; j < k; j++ {
			Q[t][t] += r[j][t] * r[j][t]
			Q[t][j] = -r[j][t] * r[t][j]
		}
	}

	iter := 0
	for ; iter < maxIter; iter++ {
		pQp := 0.0
		for t := 0; t < k; t++ {
			Qp[t] = 0
			for j := 0; j < k; j++ {
				Qp[t] += Q[t][j] * p[j]
			}
			pQp += p[t] * Qp[t]
		}

		maxError := 0.0
		for t := 0; t < k; t++ {
			maxError = math.Max(maxError, math.Abs(Qp[t]-pQp))
		}
		if maxError < eps {
			break
		}

		for t := 0; t < k; t++ {
			diff := (-Qp[t] + pQp) / Q[t][t]
			p[t] += diff
			pQp = (pQp + diff*(diff*Q[t][t]+2*Qp[t])) / (1 + diff) / (1 + diff)
			for j := 0; j < k; j++ {
				Qp[j] = (Qp[j] + diff*Q[t][j]) / (1 + diff)
				p[j] /= 1 + diff
			}
		}
	}
	if iter >= maxIter {
		lg.Debug("Pairwise coupling reached the iteration limit", log.IterationKey, iter)
	}
}
