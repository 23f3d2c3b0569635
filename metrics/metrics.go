// Package metrics implements the relative-error family used to validate
// reduced-order surrogate predictions against full-field solutions.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MSE returns the mean squared error between two equally-shaped matrices.
func MSE(v, vPred *mat.Dense) float64 {
	r, c := v.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := v.At(i, j) - vPred.At(i, j)
			sum += d * d
		}
	}
	return sum / float64(r*c)
}

// RE returns the relative error ||u - uPred|| / ||u||.
func RE(u, uPred []float64) float64 {
	return floats.Norm(diff(u, uPred), 2) / floats.Norm(u, 2)
}

// REMax is the max-normalized variant of RE: it divides by
// max(||u||, ||uPred||) so the value stays bounded when the reference norm
// is near zero.
func REMax(u, uPred []float64) float64 {
	return floats.Norm(diff(u, uPred), 2) / math.Max(floats.Norm(u, 2), floats.Norm(uPred, 2))
}

// RES averages the per-sample relative error over the columns of a
// sample-indexed solution ensemble. With divMax the max-normalized variant
// is used.
func RES(u, uPred *mat.Dense, divMax bool) float64 {
	nH, nS := u.Dims()
	err := 0.0
	col := make([]float64, nH)
	colPred := make([]float64, nH)
	for j := 0; j < nS; j++ {
		mat.Col(col, j, u)
		mat.Col(colPred, j, uPred)
		if divMax {
			err += REMax(col, colPred)
		} else {
			err += RE(col, colPred)
		}
	}
	return err / float64(nS)
}

// REMeanStd returns the relative errors between the sample-mean profiles
// and between the sample-std profiles of the two ensembles (samples along
// columns). It validates uncertainty calibration, not just point accuracy.
func REMeanStd(uS, uPredS *mat.Dense) (errMean, errStd float64) {
	nH, nS := uS.Dims()
	uMean := make([]float64, nH)
	uStd := make([]float64, nH)
	uPredMean := make([]float64, nH)
	uPredStd := make([]float64, nH)
	row := make([]float64, nS)
	rowPred := make([]float64, nS)
	for i := 0; i < nH; i++ {
		mat.Row(row, i, uS)
		mat.Row(rowPred, i, uPredS)
		uMean[i] = stat.Mean(row, nil)
		uStd[i] = popStd(row, uMean[i])
		uPredMean[i] = stat.Mean(rowPred, nil)
		uPredStd[i] = popStd(rowPred, uPredMean[i])
	}
	return RE(uMean, uPredMean), RE(uStd, uPredStd)
}

// RelErrorMean returns the element-wise relative error
// |u - uPred| / max(|u|, |uPred|) averaged over the matrix, ignoring
// undefined 0/0 entries.
func RelErrorMean(u, uPred *mat.Dense) float64 {
	r, c := u.Dims()
	sum := 0.0
	count := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			denom := math.Max(math.Abs(u.At(i, j)), math.Abs(uPred.At(i, j)))
			if denom == 0 {
				continue
			}
			sum += math.Abs(u.At(i, j)-uPred.At(i, j)) / denom
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

func diff(a, b []float64) []float64 {
	d := make([]float64, len(a))
	floats.SubTo(d, a, b)
	return d
}

// popStd is the population standard deviation about a known mean.
func popStd(x []float64, mean float64) float64 {
	return math.Sqrt(stat.MomentAbout(2, x, mean, nil))
}
