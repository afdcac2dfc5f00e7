package svm

import "math"

const tau = 1e-12

// binaryProblem is a two-class C-SVC dual
//
//	min ½ αᵀQα - eᵀα   s.t. yᵀα = 0, 0 <= α_i <= C
//
// with Q_ij = y_i y_j K_ij over a subset of the training samples.
type binaryProblem struct {
	idx []int     // indices into the full kernel matrix
	y   []float64 // +1 or -1
}

// binarySolution holds the dual variables and bias of a solved problem.
type binarySolution struct {
	alpha      []float64
	rho        float64
	iterations int
	converged  bool
}

// smo solves binary problems against a precomputed kernel matrix using
// sequential minimal optimization with second-order working set selection
// (Fan, Chen and Lin, 2005).
type smo struct {
	K       func(i, j int) float64
	C       float64
	eps     float64
	maxIter int // <= 0 means unlimited
}

func (s *smo) solve(p binaryProblem) binarySolution {
	l := len(p.idx)
	y := p.y

	Q := make([]float64, l*l)
	QD := make([]float64, l)
	for i := 0; i < l; i++ {
		for j := i; j < l; j++ {
			q := y[i] * y[j] * s.K(p.idx[i], p.idx[j])
			Q[i*l+j] = q
			Q[j*l+i] = q
		}
		QD[i] = Q[i*l+i]
	}

	alpha := make([]float64, l)
	G := make([]float64, l)
	for i := range G {
		G[i] = -1
	}

	C := s.C
	isUpper := func(i int) bool { return alpha[i] >= C }
	isLower := func(i int) bool { return alpha[i] <= 0 }

	iter := 0
	converged := false
	for s.maxIter <= 0 || iter < s.maxIter {
		i, j, done := s.selectWorkingSet(y, G, Q, QD, l, isUpper, isLower)
		if done {
			converged = true
			break
		}
		iter++

		Qi := Q[i*l : (i+1)*l]
		Qj := Q[j*l : (j+1)*l]
		oldAi, oldAj := alpha[i], alpha[j]

		if y[i] != y[j] {
			quad := QD[i] + QD[j] + 2*Qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (-G[i] - G[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta

			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := QD[i] + QD[j] - 2*Qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (G[i] - G[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta

			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dAi := alpha[i] - oldAi
		dAj := alpha[j] - oldAj
		for k := 0; k < l; k++ {
			G[k] += Qi[k]*dAi + Qj[k]*dAj
		}
	}

	return binarySolution{
		alpha:      alpha,
		rho:        calculateRho(y, G, isUpper, isLower),
		iterations: iter,
		converged:  converged,
	}
}

// selectWorkingSet returns the maximal violating pair chosen by the
// second-order rule, or done when the KKT gap is below eps.
func (s *smo) selectWorkingSet(y, G, Q, QD []float64, l int, isUpper, isLower func(int) bool) (int, int, bool) {
	gmax := math.Inf(-1)
	gmax2 := math.Inf(-1)
	gmaxIdx, gminIdx := -1, -1
	objDiffMin := math.Inf(1)

	for t := 0; t < l; t++ {
		if y[t] == 1 {
			if !isUpper(t) && -G[t] >= gmax {
				gmax = -G[t]
				gmaxIdx = t
			}
		} else if !isLower(t) && G[t] >= gmax {
			gmax = G[t]
			gmaxIdx = t
		}
	}
	if gmaxIdx == -1 {
		return 0, 0, true
	}

	i := gmaxIdx
	Qi := Q[i*l : (i+1)*l]
	for j := 0; j < l; j++ {
		var gradDiff, quad float64
		if y[j] == 1 {
			if isLower(j) {
				continue
			}
			gradDiff = gmax + G[j]
			if G[j] >= gmax2 {
				gmax2 = G[j]
			}
			quad = QD[i] + QD[j] - 2*y[i]*Qi[j]
		} else {
			if isUpper(j) {
				continue
			}
			gradDiff = gmax - G[j]
			if -G[j] >= gmax2 {
				gmax2 = -G[j]
			}
			quad = QD[i] + QD[j] + 2*y[i]*Qi[j]
		}
		if gradDiff <= 0 {
			continue
		}
		if quad <= 0 {
			quad = tau
		}
		objDiff := -(gradDiff * gradDiff) / quad
		if objDiff <= objDiffMin {
			gminIdx = j
			objDiffMin = objDiff
		}
	}

	if gmax+gmax2 < s.eps || gminIdx == -1 {
		return 0, 0, true
	}
	return gmaxIdx, gminIdx, false
}

func calculateRho(y, G []float64, isUpper, isLower func(int) bool) float64 {
	ub := math.Inf(1)
	lb := math.Inf(-1)
	nFree := 0
	sumFree := 0.0

	for i := range y {
		yG := y[i] * G[i]
		switch {
		case isUpper(i):
			if y[i] == -1 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case isLower(i):
			if y[i] == 1 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// decision evaluates Σ α_k y_k K(x_k, x) - ρ for the sample at index t of
// the full kernel matrix.
func (sol binarySolution) decision(p binaryProblem, K func(i, j int) float64, t int) float64 {
	var sum float64
	for k, a := range sol.alpha {
		if a > 0 {
			sum += a * p.y[k] * K(p.idx[k], t)
		}
	}
	return sum - sol.rho
}
